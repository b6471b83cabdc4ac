package bot

import (
	"fmt"
	"strconv"
	"strings"

	"market/internal/models"
)

// Button tokens
const (
	tokAdminLogin          = "admin"
	tokSellerLogin         = "seller"
	tokBackToRole          = "back_to_role"
	tokYes                 = "yes"
	tokNo                  = "no"
	tokBack                = "back"
	tokCancel              = "cancel"
	tokMenu                = "menu"
	tokShopList            = "shop_list"
	tokAddShop             = "add_shop"
	tokUnlinkShop          = "unlink_shop"
	tokSubscription        = "subscription"
	tokPay                 = "pay"
	tokHelp                = "help"
	tokShopInfo            = "shop_info"
	tokActivate            = "activate"
	tokPriceUpdating       = "price_updating"
	tokSwitchActivation    = "switch_activation"
	tokSwitchPriceUpdating = "switch_price_updating"
	tokNoop                = "noop"
)

const (
	shopPrefix = "shop:"
	pagePrefix = "page:"
)

// CallbackKind tags the variant of a Callback
type CallbackKind int

const (
	CallbackToken CallbackKind = iota
	CallbackShop
	CallbackPage
)

// Callback is the decoded payload of an inline button
type Callback struct {
	Kind   CallbackKind
	Token  string
	ShopID int64
	Page   models.PageCursor
}

func tokenCallback(tok string) Callback {
	return Callback{Kind: CallbackToken, Token: tok}
}

func shopCallback(id int64) Callback {
	return Callback{Kind: CallbackShop, ShopID: id}
}

func pageCallback(p models.PageCursor) Callback {
	return Callback{Kind: CallbackPage, Page: p}
}

// Encode renders the callback as button data, well under the 64 byte limit
func (c Callback) Encode() string {
	switch c.Kind {
	case CallbackShop:
		return shopPrefix + strconv.FormatInt(c.ShopID, 10)
	case CallbackPage:
		return fmt.Sprintf("%s%d:%d", pagePrefix, c.Page.Limit, c.Page.Offset)
	default:
		return c.Token
	}
}

// ParseCallback decodes button data
func ParseCallback(data string) (Callback, error) {
	switch {
	case data == "":
		return Callback{}, fmt.Errorf("%w: empty", ErrUnexpectedCallback)

	case strings.HasPrefix(data, shopPrefix):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, shopPrefix), 10, 64)
		if err != nil || id <= 0 {
			return Callback{}, fmt.Errorf("%w: %q", ErrUnexpectedCallback, data)
		}
		return shopCallback(id), nil

	case strings.HasPrefix(data, pagePrefix):
		parts := strings.Split(strings.TrimPrefix(data, pagePrefix), ":")
		if len(parts) != 2 {
			return Callback{}, fmt.Errorf("%w: %q", ErrUnexpectedCallback, data)
		}
		limit, err1 := strconv.Atoi(parts[0])
		offset, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			return Callback{}, fmt.Errorf("%w: %q", ErrUnexpectedCallback, data)
		}
		return pageCallback(models.PageCursor{Limit: limit, Offset: offset}), nil

	default:
		return tokenCallback(data), nil
	}
}
