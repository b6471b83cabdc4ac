package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"market/internal/models"
	"market/internal/storage"
)

func button(text string, cb Callback) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(text, cb.Encode())
}

func tokenButton(text, tok string) tgbotapi.InlineKeyboardButton {
	return button(text, tokenCallback(tok))
}

func backRow(tok string) []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(tokenButton("⬅ Back", tok))
}

func roleKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tokenButton("Admin", tokAdminLogin),
			tokenButton("Seller", tokSellerLogin),
		),
	)
}

func backKeyboard(tok string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(backRow(tok))
}

func cancelKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tokenButton("Cancel", tokCancel)),
	)
}

func yesNoKeyboard(noTok string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tokenButton("Yes", tokYes),
			tokenButton("No", noTok),
		),
	)
}

func adminMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tokenButton("🏪 Shop list", tokShopList)),
		tgbotapi.NewInlineKeyboardRow(tokenButton("❓ Help", tokHelp)),
	)
}

func sellerMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tokenButton("🏪 My shops", tokShopList)),
		tgbotapi.NewInlineKeyboardRow(
			tokenButton("➕ Add shop", tokAddShop),
			tokenButton("➖ Unlink shop", tokUnlinkShop),
		),
		tgbotapi.NewInlineKeyboardRow(tokenButton("💳 Subscription", tokSubscription)),
		tgbotapi.NewInlineKeyboardRow(tokenButton("❓ Help", tokHelp)),
	)
}

func subscriptionKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tokenButton("Pay", tokPay)),
		backRow(tokBack),
	)
}

func shopMenuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tokenButton("Shop info", tokShopInfo)),
		tgbotapi.NewInlineKeyboardRow(tokenButton("Activation", tokActivate)),
		tgbotapi.NewInlineKeyboardRow(tokenButton("Price updating", tokPriceUpdating)),
		backRow(tokBack),
	)
}

func activateKeyboard(isActive bool) tgbotapi.InlineKeyboardMarkup {
	text := "Activate"
	if isActive {
		text = "Deactivate"
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tokenButton(text, tokSwitchActivation)),
		backRow(tokBack),
	)
}

func priceUpdatingKeyboard(isOn bool) tgbotapi.InlineKeyboardMarkup {
	text := "Turn on"
	if isOn {
		text = "Turn off"
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tokenButton(text, tokSwitchPriceUpdating)),
		backRow(tokBack),
	)
}

func navigationRow(nav Navigation) []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(
		button("<<", pageCallback(nav.Back)),
		tokenButton(fmt.Sprintf("%d / %d", nav.Page, nav.Pages), tokNoop),
		button(">>", pageCallback(nav.Forward)),
	)
}

// buildShopList renders one page of the shops in scope: a button per shop,
// the pager row and a back row
func (b *Bot) buildShopList(ctx context.Context, scope storage.ShopScope, cursor models.PageCursor) (tgbotapi.InlineKeyboardMarkup, error) {
	if err := cursor.Validate(); err != nil {
		return tgbotapi.InlineKeyboardMarkup{}, err
	}

	shops, total, err := b.db.ListShops(ctx, scope, cursor.Limit, cursor.Offset)
	if err != nil {
		return tgbotapi.InlineKeyboardMarkup{}, fmt.Errorf("failed to list shops: %w", err)
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(shops)+2)
	for _, shop := range shops {
		label := fmt.Sprintf("%s %s", readableActivity(shop.IsActive), shop.Name)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button(label, shopCallback(shop.ID))))
	}
	rows = append(rows, navigationRow(ComputeNavigation(cursor, len(shops), total)))
	rows = append(rows, backRow(tokBack))

	return tgbotapi.NewInlineKeyboardMarkup(rows...), nil
}
