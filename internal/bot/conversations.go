package bot

import (
	"errors"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"market/internal/models"
	"market/internal/session"
	"market/internal/storage"
)

// handleText routes free text to the input the conversation is waiting for
func (b *Bot) handleText(t *turn, message *tgbotapi.Message) error {
	text := strings.TrimSpace(message.Text)

	switch t.sess.ExpectedInput {
	case session.InputUsername:
		return b.receiveUsername(t, text)
	case session.InputPassword:
		b.deleteMessage(t.chatID, message.MessageID)
		return b.receivePassword(t, text)
	case session.InputAPIKeyLogin:
		b.deleteMessage(t.chatID, message.MessageID)
		return b.receiveLoginAPIKey(t, text)
	case session.InputAPIKeyAdd:
		b.deleteMessage(t.chatID, message.MessageID)
		return b.receiveShopAPIKey(t, text)
	default:
		return b.sendMessage(t.chatID, textUnexpectedText, nil)
	}
}

func (b *Bot) receiveUsername(t *turn, username string) error {
	t.sess.PendingUsername = username
	t.sess.ExpectedInput = session.InputPassword
	return b.sendMessage(t.chatID, textAskPassword, keyboard(cancelKeyboard()))
}

// receivePassword checks the admin credentials. On failure the password is
// asked again unless the user chooses to start over.
func (b *Bot) receivePassword(t *turn, password string) error {
	if err := b.sendMessage(t.chatID, textPasswordGot, nil); err != nil {
		return err
	}

	username := t.sess.PendingUsername
	ok, err := b.db.Authenticate(t.ctx, username, password)
	if err != nil {
		return fmt.Errorf("failed to authenticate admin: %w", err)
	}

	if !ok {
		b.logger.Info("Wrong admin credentials",
			zap.Int64("chat_id", t.chatID),
			zap.String("admin_username", username),
		)
		return b.sendMessage(t.chatID, textWrongCreds, keyboard(yesNoKeyboard(tokNo)))
	}

	if err := b.db.LoginAdmin(t.ctx, t.chatID, t.profile()); err != nil {
		return fmt.Errorf("failed to log in admin: %w", err)
	}
	b.logger.Info("Admin logged in",
		zap.Int64("chat_id", t.chatID),
		zap.String("admin_username", username),
	)

	t.sess.ClearInput()
	t.sess.Role = models.RoleAdmin
	if err := b.sendMessage(t.chatID, textLoggedAdmin, nil); err != nil {
		return err
	}
	return b.displayUserMenu(t)
}

// receiveLoginAPIKey signs a seller in by the API key of one of their shops
func (b *Bot) receiveLoginAPIKey(t *turn, apiKey string) error {
	if err := b.sendMessage(t.chatID, textAPIKeyGot, nil); err != nil {
		return err
	}

	shop, err := b.db.GetShopByAPIKey(t.ctx, apiKey)
	if errors.Is(err, storage.ErrNotFound) {
		b.logger.Info("Unknown API key on login", zap.Int64("chat_id", t.chatID))
		return b.sendMessage(t.chatID, textWrongAPIKey, keyboard(cancelKeyboard()))
	}
	if err != nil {
		return fmt.Errorf("failed to find shop by api key: %w", err)
	}

	if err := b.db.LoginSeller(t.ctx, t.chatID, t.profile(), shop.ID); err != nil {
		return fmt.Errorf("failed to log in seller: %w", err)
	}
	b.logger.Info("Seller logged in",
		zap.Int64("chat_id", t.chatID),
		zap.Int64("shop_id", shop.ID),
	)

	t.sess.ClearInput()
	t.sess.Role = models.RoleSeller
	if err := b.sendMessage(t.chatID, textLoggedSeller, nil); err != nil {
		return err
	}
	return b.displayUserMenu(t)
}

// receiveShopAPIKey links one more shop to a signed in seller
func (b *Bot) receiveShopAPIKey(t *turn, apiKey string) error {
	if err := b.checkAccess(t); err != nil {
		return err
	}
	if err := b.sendMessage(t.chatID, textAPIKeyGot, nil); err != nil {
		return err
	}

	shop, err := b.db.GetShopByAPIKey(t.ctx, apiKey)
	if errors.Is(err, storage.ErrNotFound) {
		b.logger.Info("Unknown API key on add shop", zap.Int64("chat_id", t.chatID))
		return b.sendMessage(t.chatID, textWrongAPIKey, keyboard(backKeyboard(tokBack)))
	}
	if err != nil {
		return fmt.Errorf("failed to find shop by api key: %w", err)
	}

	if err := b.db.LinkShop(t.ctx, t.chatID, shop.ID); err != nil {
		return fmt.Errorf("failed to link shop: %w", err)
	}
	b.logger.Info("Shop linked",
		zap.Int64("chat_id", t.chatID),
		zap.Int64("shop_id", shop.ID),
	)

	if err := b.sendMessage(t.chatID, fmt.Sprintf(textShopAdded, html.EscapeString(shop.Name)), nil); err != nil {
		return err
	}
	return b.displayAddShop(t)
}
