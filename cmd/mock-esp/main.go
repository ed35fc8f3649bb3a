// mock-esp imitates the SendGrid and Resend send endpoints for local
// development and load testing. It can simulate failures and post
// signed delivery webhooks back to the receiver.
package main

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/kelseyhightower/envconfig"
)

type config struct {
	Port        string  `envconfig:"PORT" default:"8080"`
	APIKey      string  `envconfig:"MOCK_API_KEY" default:"mock_key"`
	OutcomeMode string  `envconfig:"MOCK_OUTCOME_MODE" default:"fixed"`
	SuccessRate float64 `envconfig:"MOCK_SUCCESS_RATE" default:"0.95"`
	DelayMs     int     `envconfig:"MOCK_DELAY_MS" default:"0"`

	WebhookURL     string `envconfig:"MOCK_WEBHOOK_URL" default:""`
	WebhookSecret  string `envconfig:"MOCK_WEBHOOK_SECRET" default:""`
	WebhookDelayMs int    `envconfig:"MOCK_WEBHOOK_DELAY_MS" default:"500"`
}

type server struct {
	cfg    config
	idx    uint64
	rng    *rand.Rand
	rngMu  sync.Mutex
	client *http.Client
}

func main() {
	var cfg config
	if err := envconfig.Process("", &cfg); err != nil {
		slog.Error("mock esp config load failed", "err", err)
		os.Exit(1)
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(h))

	s := &server{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		client: &http.Client{Timeout: 5 * time.Second},
	}

	router := mux.NewRouter()
	router.HandleFunc("/v3/mail/send", s.handleSendGrid).Methods(http.MethodPost)
	router.HandleFunc("/emails", s.handleResend).Methods(http.MethodPost)

	slog.Info("mock esp listening", "port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		slog.Error("mock esp server failed", "err", err)
		os.Exit(1)
	}
}

type sendgridRequest struct {
	Personalizations []struct {
		To []struct {
			Email string `json:"email"`
		} `json:"to"`
	} `json:"personalizations"`
	Subject string `json:"subject"`
}

type resendRequest struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
}

func (s *server) handleSendGrid(w http.ResponseWriter, r *http.Request) {
	if !s.checkBearer(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"errors": []map[string]string{{"message": "authorization required"}}})
		return
	}
	var req sendgridRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		len(req.Personalizations) == 0 || len(req.Personalizations[0].To) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []map[string]string{{"message": "invalid request"}}})
		return
	}

	s.delay(r.Context())
	if !s.nextOK() {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"errors": []map[string]string{{"message": "simulated failure"}}})
		return
	}

	email := req.Personalizations[0].To[0].Email
	msgID := s.nextMessageID()
	w.Header().Set("X-Message-Id", msgID)
	w.WriteHeader(http.StatusAccepted)

	s.maybeWebhook("sendgrid", email, msgID)
}

func (s *server) handleResend(w http.ResponseWriter, r *http.Request) {
	if !s.checkBearer(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "missing api key"})
		return
	}
	var req resendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.To) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid request"})
		return
	}

	s.delay(r.Context())
	if !s.nextOK() {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "simulated failure"})
		return
	}

	msgID := s.nextMessageID()
	writeJSON(w, http.StatusOK, map[string]string{"id": msgID})

	s.maybeWebhook("resend", req.To[0], msgID)
}

// maybeWebhook posts a normalized delivered event back to the webhook
// receiver after a delay, signed the same way real configuration expects.
func (s *server) maybeWebhook(provider, email, msgID string) {
	if s.cfg.WebhookURL == "" {
		return
	}
	go func() {
		time.Sleep(time.Duration(s.cfg.WebhookDelayMs) * time.Millisecond)

		body, _ := json.Marshal(map[string]string{
			"provider":  provider,
			"event":     "delivered",
			"email":     email,
			"messageId": msgID,
		})

		req, _ := http.NewRequest(http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if s.cfg.WebhookSecret != "" {
			mac := hmac.New(sha256.New, []byte(s.cfg.WebhookSecret))
			mac.Write(body)
			req.Header.Set("X-Webhook-Signature", hex.EncodeToString(mac.Sum(nil)))
		}

		resp, err := s.client.Do(req)
		if err != nil {
			slog.Error("mock webhook post failed", "url", s.cfg.WebhookURL, "err", err)
			return
		}
		_ = resp.Body.Close()
		if resp.StatusCode >= 300 {
			slog.Error("mock webhook post rejected", "url", s.cfg.WebhookURL, "status", resp.StatusCode)
		}
	}()
}

func (s *server) checkBearer(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.TrimPrefix(auth, "Bearer ") == s.cfg.APIKey
}

func (s *server) nextOK() bool {
	switch strings.ToLower(s.cfg.OutcomeMode) {
	case "weighted":
		s.rngMu.Lock()
		ok := s.rng.Float64() <= s.cfg.SuccessRate
		s.rngMu.Unlock()
		return ok
	case "fail":
		return false
	default:
		return true
	}
}

func (s *server) nextMessageID() string {
	return fmt.Sprintf("mock-%06d", atomic.AddUint64(&s.idx, 1))
}

func (s *server) delay(ctx context.Context) {
	if s.cfg.DelayMs <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(s.cfg.DelayMs) * time.Millisecond):
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
