package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// sendMessage sends a new HTML message to a chat
func (b *Bot) sendMessage(chatID int64, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if markup != nil {
		msg.ReplyMarkup = *markup
	}

	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// reply answers the current turn. Button presses edit the message that
// carried the keyboard, text messages get a new message.
func (b *Bot) reply(t *turn, text string, markup *tgbotapi.InlineKeyboardMarkup) error {
	if t.query == nil || t.messageID == 0 {
		return b.sendMessage(t.chatID, text, markup)
	}

	edit := tgbotapi.NewEditMessageText(t.chatID, t.messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.ReplyMarkup = markup

	if _, err := b.api.Send(edit); err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

// answer stops the loading animation of a pressed button
func (b *Bot) answer(t *turn, text string) {
	if t.query == nil || t.answered {
		return
	}
	t.answered = true
	if _, err := b.api.Request(tgbotapi.NewCallback(t.query.ID, text)); err != nil {
		b.logger.Warn("Failed to answer callback query",
			zap.Error(err),
			zap.Int64("chat_id", t.chatID),
		)
	}
}

// deleteMessage removes a message, used for secrets typed by the user
func (b *Bot) deleteMessage(chatID int64, messageID int) {
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		b.logger.Warn("Failed to delete message",
			zap.Error(err),
			zap.Int64("chat_id", chatID),
			zap.Int("message_id", messageID),
		)
	}
}

func keyboard(m tgbotapi.InlineKeyboardMarkup) *tgbotapi.InlineKeyboardMarkup {
	return &m
}
