package bot

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// SetBanStatus changes the ban flag of a chat and tells the user when the
// flag actually changed
func (b *Bot) SetBanStatus(ctx context.Context, chatID int64, banned bool) error {
	changed, err := b.db.SetBanned(ctx, chatID, banned)
	if err != nil {
		return fmt.Errorf("failed to set ban status: %w", err)
	}
	if !changed {
		b.logger.Info("Ban status unchanged",
			zap.Int64("chat_id", chatID),
			zap.Bool("banned", banned),
		)
		return nil
	}

	return b.NotifyBanStatus(ctx, chatID, banned)
}

// NotifyBanStatus sends the ban or unban notice to a chat
func (b *Bot) NotifyBanStatus(ctx context.Context, chatID int64, banned bool) error {
	text := textUnban
	if banned {
		text = textBan
	}

	if err := b.sendMessage(chatID, text, nil); err != nil {
		b.logger.Error("Failed to send ban notification",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
			zap.Bool("banned", banned),
		)
		return err
	}

	b.logger.Info("Ban notification sent",
		zap.Int64("chat_id", chatID),
		zap.Bool("banned", banned),
	)
	return nil
}
