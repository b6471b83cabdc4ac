package bot

import (
	"context"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"market/internal/models"
	"market/internal/session"
	"market/internal/storage/stubs"
)

// sent is one outgoing text with its keyboard
type sent struct {
	chatID int64
	text   string
	edit   bool
	markup *tgbotapi.InlineKeyboardMarkup
}

// recordingSender records everything the bot sends to Telegram
type recordingSender struct {
	mu       sync.Mutex
	messages []sent
	requests []tgbotapi.Chattable
	nextID   int
}

func (s *recordingSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		rec := sent{chatID: m.ChatID, text: m.Text}
		if kb, ok := m.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); ok {
			rec.markup = &kb
		}
		s.messages = append(s.messages, rec)
	case tgbotapi.EditMessageTextConfig:
		s.messages = append(s.messages, sent{chatID: m.ChatID, text: m.Text, edit: true, markup: m.ReplyMarkup})
	default:
		s.requests = append(s.requests, c)
	}
	return tgbotapi.Message{MessageID: s.nextID}, nil
}

func (s *recordingSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (s *recordingSender) last(t *testing.T) sent {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.messages, "nothing was sent")
	return s.messages[len(s.messages)-1]
}

func (s *recordingSender) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.text
	}
	return out
}

// recordingEvents collects shop updates emitted by the bot
type recordingEvents struct {
	mu    sync.Mutex
	shops []models.Shop
}

func (e *recordingEvents) ShopUpdated(ctx context.Context, shop models.Shop) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shops = append(e.shops, shop)
	return nil
}

// deleteRecordingStore remembers which chats had their session deleted
type deleteRecordingStore struct {
	*session.MemoryStore
	deleted []int64
}

func (s *deleteRecordingStore) Delete(ctx context.Context, chatID int64) error {
	s.deleted = append(s.deleted, chatID)
	return s.MemoryStore.Delete(ctx, chatID)
}

// harness drives the bot through updates of a single chat
type harness struct {
	t      *testing.T
	bot    *Bot
	db     *stubs.MockDB
	api    *recordingSender
	events *recordingEvents
	chatID int64
	user   *tgbotapi.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := stubs.NewMockDB()
	require.NoError(t, db.Initialize(context.Background()))

	api := &recordingSender{}
	events := &recordingEvents{}
	b := newBot(api, Options{
		Storage:  db,
		Sessions: session.NewMemoryStore(),
		Events:   events,
	}, zap.NewNop())

	return &harness{
		t:      t,
		bot:    b,
		db:     db,
		api:    api,
		events: events,
		chatID: 456,
		user:   &tgbotapi.User{ID: 456, FirstName: "Sam", LastName: "Lee", UserName: "samlee"},
	}
}

func (h *harness) text(text string) {
	h.bot.HandleUpdate(context.Background(), tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: 1,
			From:      h.user,
			Chat:      &tgbotapi.Chat{ID: h.chatID},
			Text:      text,
		},
	})
}

func (h *harness) command(name string) {
	text := "/" + name
	h.bot.HandleUpdate(context.Background(), tgbotapi.Update{
		Message: &tgbotapi.Message{
			MessageID: 1,
			From:      h.user,
			Chat:      &tgbotapi.Chat{ID: h.chatID},
			Text:      text,
			Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}},
		},
	})
}

func (h *harness) press(data string) {
	h.bot.HandleUpdate(context.Background(), tgbotapi.Update{
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "query",
			From: h.user,
			Message: &tgbotapi.Message{
				MessageID: 10,
				Chat:      &tgbotapi.Chat{ID: h.chatID},
			},
			Data: data,
		},
	})
}

func (h *harness) session() *session.Session {
	h.t.Helper()
	s, err := h.bot.sessions.Load(context.Background(), h.chatID)
	require.NoError(h.t, err)
	return s
}

func (h *harness) state() State {
	s := h.session()
	if s.State == "" {
		return StateEnd
	}
	return State(s.State)
}

// loginAdmin stores a signed in admin without going through the dialog
func (h *harness) loginAdmin() {
	h.t.Helper()
	require.NoError(h.t, h.db.LoginAdmin(context.Background(), h.chatID, models.Profile{FirstName: "Sam"}))
}

// loginSeller stores a signed in seller linked to shopID
func (h *harness) loginSeller(shopID int64) {
	h.t.Helper()
	require.NoError(h.t, h.db.LoginSeller(context.Background(), h.chatID, models.Profile{FirstName: "Sam"}, shopID))
}

// buttons flattens a keyboard into its callback data
func buttons(kb *tgbotapi.InlineKeyboardMarkup) []string {
	if kb == nil {
		return nil
	}
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData != nil {
				out = append(out, *btn.CallbackData)
			}
		}
	}
	return out
}
