package bot

import (
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"market/internal/session"
)

// Commands shown in the Telegram client menu
var botCommands = []tgbotapi.BotCommand{
	{Command: "start", Description: "Start a dialog with the bot"},
	{Command: "menu", Description: "Open your menu"},
	{Command: "cancel", Description: "Cancel the current command"},
	{Command: "help", Description: "Show help"},
	{Command: "sign_out", Description: "Sign in again"},
}

// handleCommand routes a slash command. Any command interrupts a pending input.
func (b *Bot) handleCommand(t *turn, message *tgbotapi.Message) error {
	command := message.Command()
	b.logger.Info("Command received",
		zap.Int64("chat_id", t.chatID),
		zap.String("command", command),
		zap.String("username", t.profile().Username),
	)

	switch command {
	case "start":
		return b.handleStart(t)
	case "menu":
		return b.handleMenu(t)
	case "cancel":
		return b.handleCancel(t)
	case "help":
		return b.handleHelp(t)
	case "sign_out":
		return b.handleSignOut(t)
	default:
		return b.sendMessage(t.chatID, textUnexpectedCmd, nil)
	}
}

// handleStart picks the entry point of the conversation from the user statuses
func (b *Bot) handleStart(t *turn) error {
	t.sess.ClearInput()

	err := b.checkAccess(t)
	switch {
	case errors.Is(err, errLoginRequired):
		return b.askRole(t)
	case err != nil:
		return err
	}
	return b.displayUserMenu(t)
}

func (b *Bot) handleMenu(t *turn) error {
	t.sess.ClearInput()
	if err := b.checkAccess(t); err != nil {
		return err
	}
	return b.displayUserMenu(t)
}

// handleCancel drops pending input and ends the conversation
func (b *Bot) handleCancel(t *turn) error {
	b.answer(t, ansCancel)

	if t.sess.ExpectedInput == session.InputNone && t.state() == StateEnd {
		return b.reply(t, textUselessCancel, nil)
	}

	b.logger.Info("Conversation cancelled",
		zap.Int64("chat_id", t.chatID),
		zap.String("state", string(t.state())),
	)
	t.sess.ClearInput()
	t.setState(StateEnd)
	return b.reply(t, textCancel, nil)
}

func (b *Bot) handleHelp(t *turn) error {
	b.answer(t, ansHelp)
	return b.sendMessage(t.chatID, helpText, nil)
}

// handleSignOut forgets the login and starts over
func (b *Bot) handleSignOut(t *turn) error {
	if err := b.db.Logout(t.ctx, t.chatID); err != nil {
		return fmt.Errorf("failed to log out: %w", err)
	}
	b.logger.Info("User signed out", zap.Int64("chat_id", t.chatID))

	if err := b.sessions.Delete(t.ctx, t.chatID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	t.sess.Reset()
	return b.handleStart(t)
}
