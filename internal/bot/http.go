package bot

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const webhookPrefix = "/telegram-webhook/"

// WebhookPath derives the secret path Telegram posts updates to. Only
// someone who knows the secret can deliver updates.
func WebhookPath(secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("telegram-webhook"))
	return webhookPrefix + hex.EncodeToString(mac.Sum(nil))
}

// WebhookHandler receives updates in webhook mode. Updates are handled in
// the background with ctx so Telegram gets its answer quickly.
type WebhookHandler struct {
	bot  *Bot
	ctx  context.Context
	path string
}

// NewWebhookHandler creates the receiver for the path of secret
func NewWebhookHandler(ctx context.Context, bot *Bot, secret string) *WebhookHandler {
	return &WebhookHandler{
		bot:  bot,
		ctx:  ctx,
		path: WebhookPath(secret),
	}
}

// RegisterRoutes registers the webhook route on the provided mux
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle(webhookPrefix, h)
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if !strings.HasPrefix(r.URL.Path, webhookPrefix) ||
		!hmac.Equal([]byte(r.URL.Path), []byte(h.path)) {
		h.bot.logger.Warn("Rejected webhook request",
			zap.String("remote_addr", r.RemoteAddr),
		)
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.bot.logger.Warn("Failed to decode webhook update", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.bot.handleAsync(h.ctx, update)

	w.WriteHeader(http.StatusOK)
}
