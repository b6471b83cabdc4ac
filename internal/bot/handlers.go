package bot

import (
	"context"
	"errors"
	"fmt"
	"html"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"market/internal/models"
)

var (
	errLoginRequired = errors.New("login required")
	errBanned        = errors.New("user is banned")
	errNotActive     = errors.New("user subscription is not active")
)

// HandleUpdate processes a single update. Updates of one chat are handled
// one at a time, different chats run in parallel.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	chatID, user := updateOrigin(update)
	if chatID == 0 {
		return
	}

	unlock := b.locks.Lock(chatID)
	defer unlock()

	sess, err := b.sessions.Load(ctx, chatID)
	if err != nil {
		b.logger.Error("Failed to load session", zap.Error(err), zap.Int64("chat_id", chatID))
		if err := b.sendMessage(chatID, textInternalError, nil); err != nil {
			b.logger.Warn("Failed to send error message", zap.Error(err))
		}
		return
	}

	t := &turn{ctx: ctx, chatID: chatID, user: user, sess: sess}

	if err := b.safeDispatch(t, update); err != nil {
		b.handleFailure(t, err)
	}

	if err := b.sessions.Save(ctx, chatID, t.sess); err != nil {
		b.logger.Error("Failed to save session", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

func updateOrigin(update tgbotapi.Update) (int64, *tgbotapi.User) {
	switch {
	case update.Message != nil && update.Message.Chat != nil:
		return update.Message.Chat.ID, update.Message.From
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		// Inline keyboards live in private chats, the chat id equals the user id
		if update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil {
			return update.CallbackQuery.Message.Chat.ID, update.CallbackQuery.From
		}
		return update.CallbackQuery.From.ID, update.CallbackQuery.From
	default:
		return 0, nil
	}
}

// safeDispatch routes the update and turns a panic into an error
func (b *Bot) safeDispatch(t *turn, update tgbotapi.Update) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while handling update: %v", r)
		}
	}()

	switch {
	case update.Message != nil:
		return b.handleMessage(t, update.Message)
	case update.CallbackQuery != nil:
		return b.handleCallbackQuery(t, update.CallbackQuery)
	}
	return nil
}

// handleMessage processes commands and free text
func (b *Bot) handleMessage(t *turn, message *tgbotapi.Message) error {
	if message.IsCommand() {
		return b.handleCommand(t, message)
	}
	return b.handleText(t, message)
}

// handleCallbackQuery processes inline keyboard button clicks
func (b *Bot) handleCallbackQuery(t *turn, query *tgbotapi.CallbackQuery) error {
	t.query = query
	if query.Message != nil {
		t.messageID = query.Message.MessageID
	}

	cb, err := ParseCallback(query.Data)
	if err != nil {
		return err
	}
	return b.dispatchCallback(t, cb)
}

// handleFailure settles an error returned by a handler. Expected conditions
// get a corrective reply, anything else is reported as an internal error.
func (b *Bot) handleFailure(t *turn, err error) {
	var replyErr error
	switch {
	case errors.Is(err, errStaleButton), errors.Is(err, models.ErrInvalidPage):
		replyErr = b.displayInvalidButton(t)
	case errors.Is(err, errLoginRequired):
		replyErr = b.askRole(t)
	case errors.Is(err, errBanned):
		replyErr = b.displayBan(t)
	case errors.Is(err, errNotActive):
		replyErr = b.displayNotActive(t)
	default:
		b.reportFatal(t, err)
		return
	}

	if replyErr != nil {
		b.reportFatal(t, replyErr)
	}
}

// reportFatal logs the error, ends the conversation and tells the user and
// the report chat about it
func (b *Bot) reportFatal(t *turn, err error) {
	state := t.state()
	b.logger.Error("Failed to handle update",
		zap.Error(err),
		zap.Int64("chat_id", t.chatID),
		zap.String("state", string(state)),
	)

	t.sess.ClearInput()
	t.setState(StateEnd)
	b.answer(t, "")

	if sendErr := b.sendMessage(t.chatID, textInternalError, nil); sendErr != nil {
		b.logger.Warn("Failed to send error message", zap.Error(sendErr), zap.Int64("chat_id", t.chatID))
	}

	if b.reportChatID == 0 {
		return
	}
	report := fmt.Sprintf(textErrorReport, t.chatID, html.EscapeString(string(state)), html.EscapeString(err.Error()))
	if sendErr := b.sendMessage(b.reportChatID, report, nil); sendErr != nil {
		b.logger.Warn("Failed to send error report", zap.Error(sendErr))
	}
}

// checkAccess returns the access sentinel that stops the current action
func (b *Bot) checkAccess(t *turn) error {
	statuses, err := b.db.GetStatuses(t.ctx, t.chatID)
	if err != nil {
		return fmt.Errorf("failed to get user statuses: %w", err)
	}

	switch {
	case statuses.Exists && statuses.IsBanned:
		return errBanned
	case statuses.Exists && !statuses.IsActive:
		return errNotActive
	case !statuses.LoggedIn():
		return errLoginRequired
	}
	return nil
}

func (b *Bot) displayInvalidButton(t *turn) error {
	b.logger.Info("Invalid button pressed",
		zap.Int64("chat_id", t.chatID),
		zap.String("state", string(t.state())),
	)
	b.answer(t, ansInvalid)
	t.sess.ClearInput()
	t.setState(StateEnd)
	return b.reply(t, textInvalidButton, nil)
}

func (b *Bot) displayBan(t *turn) error {
	b.logger.Info("Banned user blocked", zap.Int64("chat_id", t.chatID))
	b.answer(t, "")
	t.sess.ClearInput()
	t.setState(StateEnd)
	return b.sendMessage(t.chatID, textBan, nil)
}

func (b *Bot) displayNotActive(t *turn) error {
	b.logger.Info("Inactive user blocked", zap.Int64("chat_id", t.chatID))
	b.answer(t, "")
	return b.sendMessage(t.chatID, textNotActive, nil)
}
