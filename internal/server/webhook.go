package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"setlistbot/internal/bot"
	"setlistbot/internal/shared"
)

// UpdateDispatcher receives decoded Telegram updates.
type UpdateDispatcher interface {
	HandleUpdate(ctx context.Context, update bot.Update)
}

// WebhookHandler receives Telegram webhook POSTs on /webhook/{secret}.
//
// Each update is dispatched on its own goroutine so concurrent user requests
// run as independent pipeline invocations; Telegram only needs the 200 ack.
type WebhookHandler struct {
	secret     string
	dispatcher UpdateDispatcher
	logger     *log.Logger
}

// NewWebhookHandler creates a webhook handler guarding dispatch with the
// given path secret.
func NewWebhookHandler(secret string, dispatcher UpdateDispatcher, logger *log.Logger) *WebhookHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &WebhookHandler{
		secret:     secret,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *WebhookHandler) Routes() []string {
	return []string{"/webhook/"}
}

// ServeHTTP validates the path secret, decodes the update and dispatches it.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := strings.TrimPrefix(r.URL.Path, "/webhook/")
	if subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) != 1 {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var update bot.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.logger.Warn("failed to decode webhook update", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	h.logger.Debug("received update", "update_id", update.UpdateID)

	// The pipeline outlives the webhook request; replies go out through the
	// bot client, not this response.
	go h.dispatcher.HandleUpdate(context.Background(), update)

	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, "ok")
}

// HealthHandler answers liveness probes.
type HealthHandler struct{}

func (h *HealthHandler) Routes() []string {
	return []string{"/health"}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"ok":true}`)
}
