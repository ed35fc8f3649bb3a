// Package service contains the campaign orchestrator: it turns a
// persisted campaign plus a resolved audience into dispatch tasks,
// drives the batch dispatcher and records one email event per recipient.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"campaigner/internal/dispatch"
	"campaigner/internal/domain"
	"campaigner/internal/observability"
	"campaigner/internal/render"
	"campaigner/internal/store"
	"campaigner/internal/util"
)

// Store is the persistence the orchestrator needs, declared here so
// tests can hand in fakes.
type Store interface {
	CreateCampaign(ctx context.Context, c domain.Campaign) error
	GetCampaign(ctx context.Context, id string) (domain.Campaign, bool, error)
	ClaimCampaignForSending(ctx context.Context, id string, now time.Time) (bool, error)
	UpdateCampaignStatus(ctx context.Context, in store.StatusUpdate) (bool, error)
	FinalizeCampaign(ctx context.Context, in store.CampaignFinalize) error
	ListDueCampaigns(ctx context.Context, now time.Time) ([]domain.Campaign, error)
	ListSubscribedContacts(ctx context.Context, listID string) ([]domain.Contact, error)
	InsertEmailEvent(ctx context.Context, ev domain.EmailEvent) error
	IncrementCampaignCounter(ctx context.Context, campaignID string, kind domain.EventKind, now time.Time) (bool, error)
}

// Mailer is the provider gateway capability: send one email, learn
// whether it worked. Never errors, never panics.
type Mailer interface {
	Send(ctx context.Context, msg domain.EmailMessage) bool
	Configured() bool
}

type CampaignService struct {
	Store    Store
	Mailer   Mailer
	Renderer render.Renderer

	BatchSize  int
	BatchDelay time.Duration

	DefaultFromName  string
	DefaultFromEmail string

	// Now and IDGen exist for tests; zero values fall back to the
	// real clock and ULID generation.
	Now   func() time.Time
	IDGen func() string
}

func (s *CampaignService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return util.NowUTC()
}

func (s *CampaignService) eventID() string {
	if s.IDGen != nil {
		return s.IDGen()
	}
	return util.NewEventID()
}

// CreateCampaign validates and persists a new campaign. A scheduledAt in
// the payload creates it directly in 'scheduled'.
func (s *CampaignService) CreateCampaign(ctx context.Context, req domain.CreateCampaignRequest) (domain.Campaign, error) {
	if err := req.Validate(); err != nil {
		return domain.Campaign{}, err
	}

	now := s.now()
	status := domain.CampaignDraft
	if req.ScheduledAt != nil {
		status = domain.CampaignScheduled
	}
	c := domain.Campaign{
		ID:          util.NewCampaignID(),
		Name:        req.Name,
		Subject:     req.Subject,
		HTMLContent: req.HTMLContent,
		FromName:    s.fromName(req.FromName),
		FromEmail:   s.fromEmail(req.FromEmail),
		ListID:      req.ListID,
		Status:      status,
		ScheduledAt: req.ScheduledAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Store.CreateCampaign(ctx, c); err != nil {
		return domain.Campaign{}, fmt.Errorf("create campaign: %w", err)
	}
	return c, nil
}

func (s *CampaignService) GetCampaign(ctx context.Context, id string) (domain.Campaign, error) {
	c, found, err := s.Store.GetCampaign(ctx, id)
	if err != nil {
		return domain.Campaign{}, err
	}
	if !found {
		return domain.Campaign{}, domain.ErrCampaignNotFound
	}
	return c, nil
}

// PauseCampaign takes a scheduled campaign out of the scheduler's reach.
// It has no effect on a run that is already in flight; pausing is a
// scheduling-level interrupt only.
func (s *CampaignService) PauseCampaign(ctx context.Context, id string) error {
	return s.flipStatus(ctx, id, domain.CampaignScheduled, domain.CampaignPaused)
}

// ResumeCampaign puts a paused campaign back into 'scheduled'.
func (s *CampaignService) ResumeCampaign(ctx context.Context, id string) error {
	return s.flipStatus(ctx, id, domain.CampaignPaused, domain.CampaignScheduled)
}

func (s *CampaignService) flipStatus(ctx context.Context, id string, from, to domain.CampaignStatus) error {
	ok, err := s.Store.UpdateCampaignStatus(ctx, store.StatusUpdate{ID: id, From: from, To: to, Now: s.now()})
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotSendable
	}
	return nil
}

// SendCampaign runs a full dispatch for a persisted campaign:
//
//  1. resolve the audience (read-only; an empty audience rejects the
//     request before any state changes),
//  2. claim the campaign with a conditional status flip, the first
//     persisted effect, so overlapping triggers cannot double-send,
//  3. dispatch one task per recipient in paced batches,
//  4. one final atomic update: status 'sent', sentAt, counters, errors.
func (s *CampaignService) SendCampaign(ctx context.Context, campaignID string) (domain.SendSummary, error) {
	c, found, err := s.Store.GetCampaign(ctx, campaignID)
	if err != nil {
		return domain.SendSummary{}, err
	}
	if !found {
		return domain.SendSummary{}, domain.ErrCampaignNotFound
	}
	if !c.Sendable() {
		return domain.SendSummary{}, domain.ErrNotSendable
	}
	if c.ListID == "" {
		return domain.SendSummary{}, domain.ErrNoAudience
	}

	contacts, err := s.Store.ListSubscribedContacts(ctx, c.ListID)
	if err != nil {
		return domain.SendSummary{}, fmt.Errorf("resolve audience: %w", err)
	}
	if len(contacts) == 0 {
		return domain.SendSummary{}, domain.ErrEmptyAudience
	}

	claimed, err := s.Store.ClaimCampaignForSending(ctx, c.ID, s.now())
	if err != nil {
		return domain.SendSummary{}, fmt.Errorf("claim campaign: %w", err)
	}
	if !claimed {
		return domain.SendSummary{}, domain.ErrNotSendable
	}

	return s.dispatchToContacts(ctx, c, contacts)
}

func (s *CampaignService) dispatchToContacts(ctx context.Context, c domain.Campaign, contacts []domain.Contact) (domain.SendSummary, error) {
	tasks := make([]dispatch.Task, len(contacts))
	for i, contact := range contacts {
		tasks[i] = s.buildTask(c, contact)
	}

	slog.Info("campaign dispatch starting",
		"campaign_id", c.ID, "recipients", len(contacts),
		"batch_size", s.BatchSize, "batch_delay", s.BatchDelay)

	res := dispatch.Run(ctx, tasks, dispatch.Options{BatchSize: s.BatchSize, Delay: s.BatchDelay})

	// Ad hoc sends have no campaign row to finalize.
	if c.ID != "" {
		if err := s.Store.FinalizeCampaign(ctx, store.CampaignFinalize{
			ID:          c.ID,
			SentCount:   res.SentCount,
			FailedCount: res.FailedCount,
			Errors:      res.Errors,
			Now:         s.now(),
		}); err != nil {
			// The emails are out; losing the final counter write is an
			// observability gap, not a send failure.
			slog.Error("finalize campaign failed", "campaign_id", c.ID, "err", err)
		}
	}

	result := "ok"
	if res.FailedCount > 0 {
		result = "partial"
	}
	if res.SentCount == 0 {
		result = "failed"
	}
	observability.CampaignRuns.WithLabelValues(result).Inc()
	slog.Info("campaign dispatch finished",
		"campaign_id", c.ID, "sent", res.SentCount, "failed", res.FailedCount)

	return domain.SendSummary{
		SentCount:      res.SentCount,
		FailedCount:    res.FailedCount,
		RecipientCount: len(contacts),
	}, nil
}

// buildTask builds one recipient's render-and-transport unit of work.
// The event write happens regardless of outcome and never propagates
// past the task boundary.
func (s *CampaignService) buildTask(c domain.Campaign, contact domain.Contact) dispatch.Task {
	return func(ctx context.Context) error {
		msg := domain.EmailMessage{
			To:        []string{contact.Email},
			FromName:  c.FromName,
			FromEmail: c.FromEmail,
			Subject:   s.Renderer.Render(c.Subject, contact),
			HTML:      s.Renderer.Render(c.HTMLContent, contact),
		}

		ok := s.Mailer.Send(ctx, msg)

		ev := domain.EmailEvent{
			ID:         s.eventID(),
			CampaignID: c.ID,
			ContactID:  contact.ID,
			Email:      contact.Email,
			Kind:       domain.EventSent,
			OccurredAt: s.now(),
		}
		if !ok {
			ev.Kind = domain.EventFailed
			ev.Meta = map[string]string{"error": "provider send failed"}
		}
		if err := s.Store.InsertEmailEvent(ctx, ev); err != nil {
			slog.Error("insert email event failed",
				"campaign_id", c.ID, "email", contact.Email, "kind", ev.Kind, "err", err)
		}

		if !ok {
			return errors.New("provider send failed")
		}
		return nil
	}
}

// SendAdHoc handles the send-now payload. List sends create a campaign
// and go through the normal claim-and-dispatch path; ad hoc recipient
// arrays dispatch without a campaign record, so their events carry no
// campaign id.
func (s *CampaignService) SendAdHoc(ctx context.Context, req domain.SendRequest) (domain.SendSummary, error) {
	if err := req.Validate(); err != nil {
		return domain.SendSummary{}, err
	}

	if req.ListID != "" {
		contacts, err := s.Store.ListSubscribedContacts(ctx, req.ListID)
		if err != nil {
			return domain.SendSummary{}, fmt.Errorf("resolve audience: %w", err)
		}
		if len(contacts) == 0 {
			return domain.SendSummary{}, domain.ErrEmptyAudience
		}

		c, err := s.CreateCampaign(ctx, domain.CreateCampaignRequest{
			Name:        req.Subject,
			Subject:     req.Subject,
			HTMLContent: req.Content,
			FromName:    req.FromName,
			FromEmail:   req.FromEmail,
			ListID:      req.ListID,
		})
		if err != nil {
			return domain.SendSummary{}, err
		}
		claimed, err := s.Store.ClaimCampaignForSending(ctx, c.ID, s.now())
		if err != nil {
			return domain.SendSummary{}, fmt.Errorf("claim campaign: %w", err)
		}
		if !claimed {
			return domain.SendSummary{}, domain.ErrNotSendable
		}
		return s.dispatchToContacts(ctx, c, contacts)
	}

	// Ad hoc audience: addresses were validated, wrap them as contacts.
	contacts := make([]domain.Contact, len(req.To))
	for i, addr := range req.To {
		contacts[i] = domain.Contact{Email: addr, Subscribed: true}
	}
	c := domain.Campaign{
		Subject:     req.Subject,
		HTMLContent: req.Content,
		FromName:    s.fromName(req.FromName),
		FromEmail:   s.fromEmail(req.FromEmail),
	}
	return s.dispatchToContacts(ctx, c, contacts)
}

// SendOne pushes a single message straight through the gateway and
// records the outcome as a campaign-less event.
func (s *CampaignService) SendOne(ctx context.Context, req domain.SendOneRequest) (bool, error) {
	if err := req.Validate(); err != nil {
		return false, err
	}
	if !s.Mailer.Configured() {
		return false, ErrNotConfigured
	}

	ok := s.Mailer.Send(ctx, domain.EmailMessage{
		To:        []string{req.To},
		FromName:  s.fromName(req.FromName),
		FromEmail: s.fromEmail(req.FromEmail),
		Subject:   req.Subject,
		HTML:      req.Content,
	})

	ev := domain.EmailEvent{
		ID:         s.eventID(),
		Email:      req.To,
		Kind:       domain.EventSent,
		OccurredAt: s.now(),
	}
	if !ok {
		ev.Kind = domain.EventFailed
	}
	if err := s.Store.InsertEmailEvent(ctx, ev); err != nil {
		slog.Error("insert email event failed", "email", req.To, "kind", ev.Kind, "err", err)
	}
	return ok, nil
}

// ErrNotConfigured means every provider backend is missing credentials.
var ErrNotConfigured = errors.New("no email service configured")

func (s *CampaignService) fromName(name string) string {
	if name != "" {
		return name
	}
	return s.DefaultFromName
}

func (s *CampaignService) fromEmail(email string) string {
	if email != "" {
		return email
	}
	return s.DefaultFromEmail
}
