// Package mailer abstracts over the configured transactional-email
// backends. Callers get exactly one capability: send one email and learn
// whether it worked.
package mailer

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"campaigner/internal/domain"
	"campaigner/internal/observability"
	"campaigner/internal/render"
)

// Backend is one transactional-email provider.
type Backend interface {
	Name() string
	Configured() bool
	Send(ctx context.Context, msg domain.EmailMessage) error
}

// Gateway selects the first configured backend in priority order and
// invokes it, converting every kind of provider trouble into a plain
// false. Running with zero configured backends is a normal state
// (local development), not an error.
type Gateway struct {
	backends []Backend
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
}

// NewGateway takes backends in priority order. Limiter and breaker are
// optional; pass nil to disable either.
func NewGateway(backends []Backend, limiter *rate.Limiter, breaker *gobreaker.CircuitBreaker) *Gateway {
	return &Gateway{backends: backends, limiter: limiter, breaker: breaker}
}

// Send makes exactly one network call through the selected backend and
// reports success. It never panics and never retries; retry policy, if
// any, belongs to the operator resending the failed subset.
func (g *Gateway) Send(ctx context.Context, msg domain.EmailMessage) bool {
	var backend Backend
	for _, b := range g.backends {
		if b.Configured() {
			backend = b
			break
		}
	}
	if backend == nil {
		slog.Debug("no email backend configured, dropping send", "to", msg.To)
		observability.EmailSends.WithLabelValues("none", "unconfigured").Inc()
		return false
	}

	if msg.Text == "" {
		msg.Text = render.StripHTML(msg.HTML)
	}

	if g.limiter != nil {
		waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := g.limiter.Wait(waitCtx)
		cancel()
		if err != nil {
			slog.Error("rate limiter wait failed", "backend", backend.Name(), "err", err)
			observability.EmailSends.WithLabelValues(backend.Name(), "rate_limited").Inc()
			return false
		}
	}

	start := time.Now()
	err := g.execute(ctx, backend, msg)
	observability.SendLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		slog.Error("email send failed", "backend", backend.Name(), "to", msg.To, "err", err)
		observability.EmailSends.WithLabelValues(backend.Name(), "error").Inc()
		return false
	}

	observability.EmailSends.WithLabelValues(backend.Name(), "ok").Inc()
	return true
}

func (g *Gateway) execute(ctx context.Context, backend Backend, msg domain.EmailMessage) error {
	if g.breaker == nil {
		return backend.Send(ctx, msg)
	}
	_, err := g.breaker.Execute(func() (any, error) {
		return nil, backend.Send(ctx, msg)
	})
	return err
}

// Configured reports whether any backend would accept a send. The API
// layer uses this to answer "not configured" up front instead of letting
// an entire run fail recipient by recipient.
func (g *Gateway) Configured() bool {
	for _, b := range g.backends {
		if b.Configured() {
			return true
		}
	}
	return false
}
