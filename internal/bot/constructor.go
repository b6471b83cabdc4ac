package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"market/internal/session"
	"market/internal/storage"
)

// DefaultListLimit is the page size of shop listings
const DefaultListLimit = 5

// Options holds the collaborators of the bot
type Options struct {
	Storage      storage.Storage
	Sessions     session.Store
	Events       ShopEvents
	ListLimit    int
	ReportChatID int64
	SetCommands  bool // Publish the command list on start
}

// NewBot creates a new Telegram bot
func NewBot(token string, opts Options, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Error("Failed to create bot API", zap.Error(err))
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("Bot created", zap.String("bot_username", api.Self.UserName))

	b := newBot(api, opts, logger)
	b.updates = api
	return b, nil
}

// newBot wires a bot around any Sender
func newBot(api Sender, opts Options, logger *zap.Logger) *Bot {
	limit := opts.ListLimit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	sessions := opts.Sessions
	if sessions == nil {
		sessions = session.NewMemoryStore()
	}

	return &Bot{
		api:          api,
		db:           opts.Storage,
		sessions:     sessions,
		locks:        session.NewLocker(),
		events:       opts.Events,
		listLimit:    limit,
		reportChatID: opts.ReportChatID,
		setCommands:  opts.SetCommands,
		logger:       logger,
	}
}
