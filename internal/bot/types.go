package bot

import (
	"context"
	"errors"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"market/internal/models"
	"market/internal/session"
	"market/internal/storage"
)

var (
	// ErrUnexpectedCallback is returned for callback data that cannot be decoded
	ErrUnexpectedCallback = errors.New("unexpected callback data")

	// errStaleButton means the pressed control no longer matches the conversation
	errStaleButton = errors.New("stale button")
)

// Sender is the part of the Telegram API the bot talks through
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// ShopEvents receives local shop changes for the peer service
type ShopEvents interface {
	ShopUpdated(ctx context.Context, shop models.Shop) error
}

// Bot represents the Telegram bot wrapper
type Bot struct {
	api          Sender
	updates      *tgbotapi.BotAPI
	db           storage.Storage
	sessions     session.Store
	locks        *session.Locker
	events       ShopEvents
	listLimit    int
	reportChatID int64
	setCommands  bool
	logger       *zap.Logger

	inflight sync.WaitGroup
}

// State is a named point of the conversation
type State string

const (
	StateEnd           State = "END"
	StateLogin         State = "LOGIN"
	StateAdminMenu     State = "ADMIN_MENU"
	StateSellerMenu    State = "SELLER_MENU"
	StateShopList      State = "SHOP_LIST"
	StateAddShop       State = "ADD_SHOP"
	StateUnlinkShop    State = "UNLINK_SHOP"
	StateShopMenu      State = "SHOP_MENU"
	StateShopInfo      State = "SHOP_INFO"
	StateActivate      State = "ACTIVATE"
	StatePriceUpdating State = "PRICE_UPDATING"
	StateSubscription  State = "SUBSCRIPTION"
)

// turn is the context of handling one update for one chat
type turn struct {
	ctx    context.Context
	chatID int64
	user   *tgbotapi.User
	sess   *session.Session

	// Set for callback queries; replies edit this message
	query     *tgbotapi.CallbackQuery
	messageID int
	answered  bool
}

func (t *turn) state() State {
	if t.sess.State == "" {
		return StateEnd
	}
	return State(t.sess.State)
}

func (t *turn) setState(s State) {
	t.sess.State = string(s)
}

func (t *turn) profile() models.Profile {
	if t.user == nil {
		return models.Profile{}
	}
	return models.Profile{
		FirstName: t.user.FirstName,
		LastName:  t.user.LastName,
		Username:  t.user.UserName,
	}
}

func (t *turn) fullName() string {
	if t.user == nil {
		return ""
	}
	if t.user.LastName == "" {
		return t.user.FirstName
	}
	return t.user.FirstName + " " + t.user.LastName
}
