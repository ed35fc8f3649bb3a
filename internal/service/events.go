package service

import (
	"context"
	"fmt"
	"log/slog"

	"campaigner/internal/domain"
	"campaigner/internal/observability"
)

// ApplyProviderEvent turns an ESP delivery callback into an immutable
// email event and bumps the campaign's aggregate counter. Unknown and
// intermediate provider events are acknowledged without effect.
// Returning an error lets the queue redrive the callback later.
func (s *CampaignService) ApplyProviderEvent(ctx context.Context, pe domain.ProviderEvent) error {
	kind := domain.KindForProviderEvent(pe.Event)
	if kind == "" {
		slog.Debug("ignoring provider event", "provider", pe.Provider, "event", pe.Event)
		return nil
	}
	if pe.Email == "" {
		// Nothing to key the event on; redriving will not help.
		slog.Warn("provider event without recipient", "provider", pe.Provider, "event", pe.Event)
		return nil
	}

	observability.WebhookEvents.WithLabelValues(string(kind)).Inc()

	meta := map[string]string{"provider": pe.Provider}
	if pe.MessageID != "" {
		meta["messageId"] = pe.MessageID
	}
	if pe.ErrorCode != "" {
		meta["errorCode"] = pe.ErrorCode
	}

	occurred := pe.ReceivedAt
	if occurred.IsZero() {
		occurred = s.now()
	}
	if err := s.Store.InsertEmailEvent(ctx, domain.EmailEvent{
		ID:         s.eventID(),
		CampaignID: pe.CampaignID,
		Email:      pe.Email,
		Kind:       kind,
		Meta:       meta,
		OccurredAt: occurred,
	}); err != nil {
		return fmt.Errorf("insert email event: %w", err)
	}

	if pe.CampaignID == "" {
		return nil
	}
	found, err := s.Store.IncrementCampaignCounter(ctx, pe.CampaignID, kind, s.now())
	if err != nil {
		return fmt.Errorf("increment campaign counter: %w", err)
	}
	if !found {
		slog.Warn("provider event for unknown campaign", "campaign_id", pe.CampaignID, "event", pe.Event)
	}
	return nil
}
