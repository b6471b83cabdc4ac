package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"market/internal/models"
	"market/internal/session"
	"market/internal/storage"
)

// eventTimeout bounds the wait for the broker while the chat is locked
const eventTimeout = 10 * time.Second

// transition is one (trigger, handler) pair accepted by a state
type transition struct {
	match  func(Callback) bool
	handle func(b *Bot, t *turn, cb Callback) error

	// open transitions skip the ban/subscription/login check
	open bool
}

func onToken(tok string) func(Callback) bool {
	return func(cb Callback) bool {
		return cb.Kind == CallbackToken && cb.Token == tok
	}
}

func onShop(cb Callback) bool { return cb.Kind == CallbackShop }

func onPage(cb Callback) bool { return cb.Kind == CallbackPage }

// plain adapts a handler that ignores the callback payload
func plain(h func(b *Bot, t *turn) error) func(b *Bot, t *turn, cb Callback) error {
	return func(b *Bot, t *turn, _ Callback) error {
		return h(b, t)
	}
}

// sellerOnly treats the button as stale for other roles
func sellerOnly(h func(b *Bot, t *turn) error) func(b *Bot, t *turn, cb Callback) error {
	return func(b *Bot, t *turn, _ Callback) error {
		role, err := session.ResolveRole(t.ctx, b.db, t.chatID, t.sess)
		if err != nil {
			return fmt.Errorf("failed to resolve role: %w", err)
		}
		if role != models.RoleSeller {
			return errStaleButton
		}
		return h(b, t)
	}
}

// Accepted in every state. Menu buttons keep working after the conversation ended.
var globalTransitions = []transition{
	{match: onToken(tokNoop), handle: plain((*Bot).ignore), open: true},
	{match: onToken(tokCancel), handle: plain((*Bot).handleCancel), open: true},
	{match: onToken(tokHelp), handle: plain((*Bot).handleHelp), open: true},
	{match: onToken(tokMenu), handle: plain((*Bot).displayUserMenu)},
	{match: onToken(tokShopList), handle: plain((*Bot).displayFirstShopPage)},
	{match: onToken(tokAddShop), handle: sellerOnly((*Bot).displayAddShop)},
	{match: onToken(tokUnlinkShop), handle: sellerOnly((*Bot).displayFirstUnlinkPage)},
	{match: onToken(tokSubscription), handle: sellerOnly((*Bot).displaySubscription)},
}

var stateTransitions = map[State][]transition{
	StateLogin: {
		{match: onToken(tokAdminLogin), handle: plain((*Bot).startAdminLogin), open: true},
		{match: onToken(tokSellerLogin), handle: plain((*Bot).startSellerLogin), open: true},
		{match: onToken(tokYes), handle: plain((*Bot).retryPassword), open: true},
		{match: onToken(tokNo), handle: plain((*Bot).askRole), open: true},
		{match: onToken(tokBackToRole), handle: plain((*Bot).askRole), open: true},
	},
	StateShopList: {
		{match: onShop, handle: (*Bot).selectShop},
		{match: onPage, handle: func(b *Bot, t *turn, cb Callback) error { return b.displayShopList(t, cb.Page) }},
		{match: onToken(tokBack), handle: plain((*Bot).displayUserMenu)},
	},
	StateAddShop: {
		{match: onToken(tokBack), handle: plain((*Bot).displayUserMenu)},
	},
	StateUnlinkShop: {
		{match: onShop, handle: (*Bot).confirmUnlink},
		{match: onPage, handle: func(b *Bot, t *turn, cb Callback) error { return b.displayUnlinkShop(t, cb.Page) }},
		{match: onToken(tokYes), handle: plain((*Bot).unlinkShop)},
		{match: onToken(tokBack), handle: plain((*Bot).displayUserMenu)},
	},
	StateSubscription: {
		{match: onToken(tokPay), handle: plain((*Bot).displayPayMenu)},
		{match: onToken(tokBack), handle: plain((*Bot).displayUserMenu)},
	},
	StateShopMenu: {
		{match: onToken(tokShopInfo), handle: plain((*Bot).displayShopInfo)},
		{match: onToken(tokActivate), handle: plain((*Bot).displayActivate)},
		{match: onToken(tokPriceUpdating), handle: plain((*Bot).displayPriceUpdating)},
		{match: onToken(tokBack), handle: plain((*Bot).backToShopList)},
	},
	StateShopInfo: {
		{match: onToken(tokBack), handle: plain((*Bot).displayShopMenu)},
	},
	StateActivate: {
		{match: onToken(tokSwitchActivation), handle: plain((*Bot).switchActivation)},
		{match: onToken(tokBack), handle: plain((*Bot).displayShopMenu)},
	},
	StatePriceUpdating: {
		{match: onToken(tokSwitchPriceUpdating), handle: plain((*Bot).switchPriceUpdating)},
		{match: onToken(tokBack), handle: plain((*Bot).displayShopMenu)},
	},
}

// dispatchCallback runs the first transition of the current state, then of
// the global table, that accepts the callback
func (b *Bot) dispatchCallback(t *turn, cb Callback) error {
	tr, ok := findTransition(stateTransitions[t.state()], cb)
	if !ok {
		tr, ok = findTransition(globalTransitions, cb)
	}
	if !ok {
		return fmt.Errorf("%w: %q in state %s", errStaleButton, cb.Encode(), t.state())
	}

	if !tr.open {
		if err := b.checkAccess(t); err != nil {
			return err
		}
	}
	return tr.handle(b, t, cb)
}

func findTransition(table []transition, cb Callback) (transition, bool) {
	for _, tr := range table {
		if tr.match(cb) {
			return tr, true
		}
	}
	return transition{}, false
}

func (b *Bot) ignore(t *turn) error {
	b.answer(t, "")
	return nil
}

// Login

func (b *Bot) askRole(t *turn) error {
	b.answer(t, "")
	t.sess.ClearInput()
	t.setState(StateLogin)
	return b.reply(t, textChooseRole, keyboard(roleKeyboard()))
}

func (b *Bot) startAdminLogin(t *turn) error {
	b.answer(t, readableAdminRole)
	t.sess.ClearInput()
	t.sess.ExpectedInput = session.InputUsername
	t.setState(StateLogin)
	return b.reply(t, textAskUsername, keyboard(cancelKeyboard()))
}

func (b *Bot) startSellerLogin(t *turn) error {
	b.answer(t, readableSellerRole)
	t.sess.ClearInput()
	t.sess.ExpectedInput = session.InputAPIKeyLogin
	t.setState(StateLogin)
	return b.reply(t, textAskAPIKey, keyboard(cancelKeyboard()))
}

// retryPassword asks the password again for the username already given
func (b *Bot) retryPassword(t *turn) error {
	if t.sess.PendingUsername == "" {
		return errStaleButton
	}
	b.answer(t, "")
	t.sess.ExpectedInput = session.InputPassword
	return b.reply(t, textAskPassword, keyboard(cancelKeyboard()))
}

// Menus

func (b *Bot) displayUserMenu(t *turn) error {
	role, err := session.ResolveRole(t.ctx, b.db, t.chatID, t.sess)
	if err != nil {
		return fmt.Errorf("failed to resolve role: %w", err)
	}

	b.answer(t, ansUserMenu)
	t.sess.ClearInput()
	t.sess.SelectedShop = nil
	t.sess.ShopToUnlink = nil

	switch role {
	case models.RoleAdmin:
		t.setState(StateAdminMenu)
		text := fmt.Sprintf(textUserMenu, html.EscapeString(t.fullName()), readableAdminRole)
		return b.reply(t, text, keyboard(adminMenuKeyboard()))
	case models.RoleSeller:
		t.setState(StateSellerMenu)
		text := fmt.Sprintf(textUserMenu, html.EscapeString(t.fullName()), readableSellerRole)
		return b.reply(t, text, keyboard(sellerMenuKeyboard()))
	default:
		return fmt.Errorf("%w: %q", models.ErrUnknownRole, role)
	}
}

func (b *Bot) displaySubscription(t *turn) error {
	user, err := b.db.GetUser(t.ctx, t.chatID)
	if err != nil {
		return fmt.Errorf("failed to get user: %w", err)
	}

	b.answer(t, ansSubscription)
	t.setState(StateSubscription)
	text := fmt.Sprintf(textSubscription, html.EscapeString(user.Username), readableFlag(user.IsActive))
	return b.reply(t, text, keyboard(subscriptionKeyboard()))
}

func (b *Bot) displayPayMenu(t *turn) error {
	b.answer(t, ansPayMenu)
	return b.reply(t, textPayMenu, keyboard(backKeyboard(tokBack)))
}

func (b *Bot) displayAddShop(t *turn) error {
	b.answer(t, ansAddShop)
	t.sess.ExpectedInput = session.InputAPIKeyAdd
	t.setState(StateAddShop)
	return b.reply(t, textAddShop, keyboard(backKeyboard(tokBack)))
}

// Listings

// listScope maps the role to the shops the user may see
func (b *Bot) listScope(t *turn) (storage.ShopScope, error) {
	role, err := session.ResolveRole(t.ctx, b.db, t.chatID, t.sess)
	if err != nil {
		return storage.ShopScope{}, fmt.Errorf("failed to resolve role: %w", err)
	}

	switch role {
	case models.RoleAdmin:
		return storage.AllShops, nil
	case models.RoleSeller:
		return storage.LinkedTo(t.chatID), nil
	default:
		return storage.ShopScope{}, fmt.Errorf("%w: %q", models.ErrUnknownRole, role)
	}
}

func (b *Bot) firstPage() models.PageCursor {
	return models.PageCursor{Limit: b.listLimit}
}

func (b *Bot) displayFirstShopPage(t *turn) error {
	return b.displayShopList(t, b.firstPage())
}

func (b *Bot) displayShopList(t *turn, cursor models.PageCursor) error {
	scope, err := b.listScope(t)
	if err != nil {
		return err
	}

	markup, err := b.buildShopList(t.ctx, scope, cursor)
	if err != nil {
		return err
	}

	b.answer(t, ansShopList)
	t.sess.SelectedShop = nil
	t.sess.ListOffset = cursor.Offset
	t.setState(StateShopList)
	return b.reply(t, textShopList, &markup)
}

// backToShopList returns to the page the shop was picked from
func (b *Bot) backToShopList(t *turn) error {
	cursor := b.firstPage()
	cursor.Offset = t.sess.ListOffset
	return b.displayShopList(t, cursor)
}

func (b *Bot) displayFirstUnlinkPage(t *turn) error {
	return b.displayUnlinkShop(t, b.firstPage())
}

func (b *Bot) displayUnlinkShop(t *turn, cursor models.PageCursor) error {
	markup, err := b.buildShopList(t.ctx, storage.LinkedTo(t.chatID), cursor)
	if err != nil {
		return err
	}

	b.answer(t, ansUnlinkShop)
	t.sess.ShopToUnlink = nil
	t.setState(StateUnlinkShop)
	return b.reply(t, textUnlinkShop, &markup)
}

func (b *Bot) confirmUnlink(t *turn, cb Callback) error {
	shop, err := b.fetchShop(t, cb.ShopID)
	if err != nil {
		return err
	}

	summary := shop.Summary()
	t.sess.ShopToUnlink = &summary
	b.answer(t, ansUnlinkShop)
	text := fmt.Sprintf(textConfirmUnlink, html.EscapeString(shop.Name))
	return b.reply(t, text, keyboard(yesNoKeyboard(tokBack)))
}

func (b *Bot) unlinkShop(t *turn) error {
	target := t.sess.ShopToUnlink
	if target == nil {
		return errStaleButton
	}

	if err := b.db.UnlinkShop(t.ctx, t.chatID, target.ID); err != nil {
		return fmt.Errorf("failed to unlink shop: %w", err)
	}
	b.logger.Info("Shop unlinked",
		zap.Int64("chat_id", t.chatID),
		zap.Int64("shop_id", target.ID),
	)

	if t.query != nil && !t.answered {
		t.answered = true
		alert := tgbotapi.NewCallbackWithAlert(t.query.ID, fmt.Sprintf(textShopUnlinked, target.Name))
		if _, err := b.api.Request(alert); err != nil {
			b.logger.Warn("Failed to answer callback query", zap.Error(err), zap.Int64("chat_id", t.chatID))
		}
	}
	return b.displayFirstUnlinkPage(t)
}

// Shop menu

// fetchShop loads the current state of a shop. A shop removed since the
// keyboard was drawn, or one a seller is not linked to, makes the button stale.
func (b *Bot) fetchShop(t *turn, id int64) (models.Shop, error) {
	role, err := session.ResolveRole(t.ctx, b.db, t.chatID, t.sess)
	if err != nil {
		return models.Shop{}, fmt.Errorf("failed to resolve role: %w", err)
	}
	if role == models.RoleSeller {
		linked, err := b.db.IsLinked(t.ctx, t.chatID, id)
		if err != nil {
			return models.Shop{}, err
		}
		if !linked {
			b.logger.Warn("Seller pressed a shop it is not linked to",
				zap.Int64("chat_id", t.chatID),
				zap.Int64("shop_id", id),
			)
			return models.Shop{}, fmt.Errorf("%w: shop %d is not linked", errStaleButton, id)
		}
	}

	shop, err := b.db.GetShop(t.ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return models.Shop{}, fmt.Errorf("%w: shop %d is gone", errStaleButton, id)
	}
	if err != nil {
		return models.Shop{}, fmt.Errorf("failed to get shop: %w", err)
	}
	return shop, nil
}

func (b *Bot) selectedShop(t *turn) (models.Shop, error) {
	if t.sess.SelectedShop == nil {
		return models.Shop{}, errStaleButton
	}
	shop, err := b.fetchShop(t, t.sess.SelectedShop.ID)
	if err != nil {
		return models.Shop{}, err
	}
	summary := shop.Summary()
	t.sess.SelectedShop = &summary
	return shop, nil
}

func (b *Bot) selectShop(t *turn, cb Callback) error {
	shop, err := b.fetchShop(t, cb.ShopID)
	if err != nil {
		return err
	}
	summary := shop.Summary()
	t.sess.SelectedShop = &summary
	return b.displayShopMenu(t)
}

func (b *Bot) displayShopMenu(t *turn) error {
	if t.sess.SelectedShop == nil {
		return errStaleButton
	}
	if _, err := session.ResolveRole(t.ctx, b.db, t.chatID, t.sess); err != nil {
		return fmt.Errorf("failed to resolve role: %w", err)
	}

	b.answer(t, t.sess.SelectedShop.Name)
	t.setState(StateShopMenu)
	text := fmt.Sprintf(textShopMenu, html.EscapeString(t.sess.SelectedShop.Name))
	return b.reply(t, text, keyboard(shopMenuKeyboard()))
}

func (b *Bot) displayShopInfo(t *turn) error {
	shop, err := b.selectedShop(t)
	if err != nil {
		return err
	}

	b.answer(t, ansShopInfo)
	t.setState(StateShopInfo)
	text := fmt.Sprintf(textShopInfo,
		html.EscapeString(shop.Name),
		html.EscapeString(shop.VendorName),
		readableFlag(shop.IsActive),
		readableFlag(shop.PriceUpdating),
		readableFlag(shop.IndividualUpdatingTime),
	)
	return b.reply(t, text, keyboard(backKeyboard(tokBack)))
}

func (b *Bot) displayActivate(t *turn) error {
	shop, err := b.selectedShop(t)
	if err != nil {
		return err
	}
	b.answer(t, ansActivate)
	return b.renderActivate(t, shop)
}

func (b *Bot) renderActivate(t *turn, shop models.Shop) error {
	t.setState(StateActivate)
	text := fmt.Sprintf(textActivate, html.EscapeString(shop.Name), readableActivity(shop.IsActive))
	return b.reply(t, text, keyboard(activateKeyboard(shop.IsActive)))
}

func (b *Bot) switchActivation(t *turn) error {
	if t.sess.SelectedShop == nil {
		return errStaleButton
	}
	b.answer(t, ansSwitchActive)

	shop, err := b.db.ToggleActive(t.ctx, t.sess.SelectedShop.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: shop %d is gone", errStaleButton, t.sess.SelectedShop.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to switch activation: %w", err)
	}
	b.logger.Info("Shop activation switched",
		zap.Int64("chat_id", t.chatID),
		zap.Int64("shop_id", shop.ID),
		zap.Bool("is_active", shop.IsActive),
	)

	b.shopChanged(t, shop)
	return b.renderActivate(t, shop)
}

func (b *Bot) displayPriceUpdating(t *turn) error {
	shop, err := b.selectedShop(t)
	if err != nil {
		return err
	}
	b.answer(t, ansPriceUpdate)
	return b.renderPriceUpdating(t, shop)
}

func (b *Bot) renderPriceUpdating(t *turn, shop models.Shop) error {
	t.setState(StatePriceUpdating)
	text := fmt.Sprintf(textPriceUpdating, html.EscapeString(shop.Name), readableFlag(shop.PriceUpdating))
	return b.reply(t, text, keyboard(priceUpdatingKeyboard(shop.PriceUpdating)))
}

func (b *Bot) switchPriceUpdating(t *turn) error {
	if t.sess.SelectedShop == nil {
		return errStaleButton
	}
	b.answer(t, ansSwitchPrice)

	shop, err := b.db.TogglePriceUpdating(t.ctx, t.sess.SelectedShop.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: shop %d is gone", errStaleButton, t.sess.SelectedShop.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to switch price updating: %w", err)
	}
	b.logger.Info("Shop price updating switched",
		zap.Int64("chat_id", t.chatID),
		zap.Int64("shop_id", shop.ID),
		zap.Bool("price_updating", shop.PriceUpdating),
	)

	b.shopChanged(t, shop)
	return b.renderPriceUpdating(t, shop)
}

// shopChanged refreshes the snapshot and tells the peer service. A failed
// publish does not undo the local change.
func (b *Bot) shopChanged(t *turn, shop models.Shop) {
	summary := shop.Summary()
	t.sess.SelectedShop = &summary

	if b.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(t.ctx, eventTimeout)
	defer cancel()
	if err := b.events.ShopUpdated(ctx, shop); err != nil {
		b.logger.Error("Failed to publish shop update",
			zap.Error(err),
			zap.Int64("shop_id", shop.ID),
		)
	}
}
