package domain

import "time"

// EventKind enumerates the outcomes recorded for one recipient of one send.
type EventKind string

const (
	EventSent      EventKind = "sent"
	EventFailed    EventKind = "failed"
	EventDelivered EventKind = "delivered"
	EventOpened    EventKind = "opened"
	EventClicked   EventKind = "clicked"
	EventBounced   EventKind = "bounced"
)

// EmailEvent is an immutable, append-only record of one outcome for one
// (campaign, recipient) pair. Each dispatch attempt produces exactly one
// sent-or-failed event; provider webhooks may later append
// delivered/opened/clicked/bounced events keyed by the same pair.
// CampaignID and ContactID are empty for one-off sends.
type EmailEvent struct {
	ID         string            `json:"id"`
	CampaignID string            `json:"campaignId,omitempty"`
	ContactID  string            `json:"contactId,omitempty"`
	Email      string            `json:"email"`
	Kind       EventKind         `json:"kind"`
	Meta       map[string]string `json:"meta,omitempty"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// ProviderEvent is a delivery callback as received from an ESP webhook,
// before it is turned into an EmailEvent.
type ProviderEvent struct {
	Provider   string    `json:"provider"`
	Event      string    `json:"event"`
	Email      string    `json:"email"`
	CampaignID string    `json:"campaignId,omitempty"`
	MessageID  string    `json:"messageId,omitempty"`
	ErrorCode  string    `json:"errorCode,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// KindForProviderEvent maps an ESP webhook event name onto our event
// vocabulary. Unknown and intermediate events map to "", meaning
// "acknowledge and ignore".
func KindForProviderEvent(event string) EventKind {
	switch event {
	case "delivered", "delivery":
		return EventDelivered
	case "opened", "open":
		return EventOpened
	case "clicked", "click":
		return EventClicked
	case "bounced", "bounce", "hard_bounce":
		return EventBounced
	case "failed", "dropped":
		return EventFailed
	default:
		return ""
	}
}
