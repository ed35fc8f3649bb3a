package httpserver

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"campaigner/internal/domain"
	"campaigner/internal/observability"
	"campaigner/internal/util"
)

const maxWebhookBody = 1 << 20

type Enqueuer interface {
	Enqueue(ctx context.Context, ev domain.ProviderEvent) error
}

// Webhook receives normalized ESP delivery callbacks, verifies the
// shared-secret signature over the raw body and hands each event to
// the queue. Processing happens out of band so the ESP gets a fast ack.
type Webhook struct {
	Queue  Enqueuer
	Secret string
}

func (wh *Webhook) Register(mux *mux.Router) {
	mux.HandleFunc("/v1/webhooks/events", wh.handleEvents).Methods(http.MethodPost)
}

// VerifySignature checks a hex HMAC-SHA256 of the raw body against the
// X-Webhook-Signature header value.
func VerifySignature(secret string, body []byte, provided string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(provided))
}

func (wh *Webhook) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}

	if wh.Secret != "" && !VerifySignature(wh.Secret, body, r.Header.Get("X-Webhook-Signature")) {
		http.Error(w, ErrInvalidSignature, http.StatusUnauthorized)
		return
	}

	events, err := decodeProviderEvents(body)
	if err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}

	now := util.NowUTC()
	for i := range events {
		events[i].ReceivedAt = now
		observability.WebhookEvents.WithLabelValues(events[i].Event).Inc()
		if err := wh.Queue.Enqueue(r.Context(), events[i]); err != nil {
			slog.Error("webhook enqueue failed",
				"err", err, "provider", events[i].Provider, "event", events[i].Event)
			http.Error(w, ErrDependency, http.StatusInternalServerError)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

// decodeProviderEvents accepts a single event object or an array of
// them; SendGrid posts batches while SES and Resend post one at a time.
func decodeProviderEvents(body []byte) ([]domain.ProviderEvent, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var events []domain.ProviderEvent
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil, err
		}
		return events, nil
	}
	var ev domain.ProviderEvent
	if err := json.Unmarshal(trimmed, &ev); err != nil {
		return nil, err
	}
	return []domain.ProviderEvent{ev}, nil
}
