package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// ErrNoUpdatesSource is returned when the bot was built without a Telegram client
var ErrNoUpdatesSource = errors.New("bot has no telegram client")

// Start runs the bot in polling mode until ctx is cancelled
func (b *Bot) Start(ctx context.Context) error {
	if b.updates == nil {
		return ErrNoUpdatesSource
	}
	b.logger.Info("Starting bot in polling mode")

	// Remove webhook (if any was set previously)
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		b.logger.Warn("Failed to delete webhook", zap.Error(err))
	}
	b.publishCommands()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.updates.GetUpdatesChan(u)

	b.logger.Info("Bot started successfully. Waiting for updates...")

	defer b.Wait()

	for {
		select {
		case <-ctx.Done():
			b.updates.StopReceivingUpdates()
			b.logger.Info("Bot polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleAsync(ctx, update)
		}
	}
}

// handleAsync handles update in its own goroutine, tracked by Wait
func (b *Bot) handleAsync(ctx context.Context, update tgbotapi.Update) {
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()
		b.HandleUpdate(ctx, update)
	}()
}

// Wait blocks until every update being handled is done
func (b *Bot) Wait() {
	b.inflight.Wait()
}

// StartWebhook registers the webhook URL. Updates then arrive through
// WebhookHandler.
func (b *Bot) StartWebhook(publicURL, secret string) error {
	if b.updates == nil {
		return ErrNoUpdatesSource
	}
	b.logger.Info("Setting up webhook", zap.String("webhook_url", publicURL))

	webhookConfig, err := tgbotapi.NewWebhook(publicURL + WebhookPath(secret))
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	webhookConfig.MaxConnections = 40

	if _, err := b.api.Request(webhookConfig); err != nil {
		b.logger.Error("Failed to set webhook", zap.Error(err), zap.String("webhook_url", publicURL))
		return fmt.Errorf("failed to set webhook: %w", err)
	}

	info, err := b.updates.GetWebhookInfo()
	if err != nil {
		b.logger.Warn("Failed to get webhook info", zap.Error(err))
	} else {
		b.logger.Info("Webhook set successfully",
			zap.Int("pending_updates", info.PendingUpdateCount),
		)
	}

	b.publishCommands()
	b.logger.Info("Bot configured for webhook mode")
	return nil
}

// publishCommands sets the command list shown by Telegram clients
func (b *Bot) publishCommands() {
	if !b.setCommands {
		return
	}
	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(botCommands...)); err != nil {
		b.logger.Warn("Failed to set bot commands", zap.Error(err))
	}
}
