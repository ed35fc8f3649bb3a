package domain

import "time"

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending"
	CampaignSent      CampaignStatus = "sent"
	CampaignPaused    CampaignStatus = "paused"
)

// Campaign is a named, templated bulk send with aggregate delivery counters.
// Counters only ever grow once a send begins; sent/failed are written once
// by the orchestrator's final update, the rest by webhook ingestion.
type Campaign struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
	FromName    string         `json:"fromName"`
	FromEmail   string         `json:"fromEmail"`
	ListID      string         `json:"listId,omitempty"`
	Status      CampaignStatus `json:"status"`
	ScheduledAt *time.Time     `json:"scheduledAt,omitempty"`
	SentAt      *time.Time     `json:"sentAt,omitempty"`

	SentCount      int `json:"sentCount"`
	DeliveredCount int `json:"deliveredCount"`
	OpenedCount    int `json:"openedCount"`
	ClickedCount   int `json:"clickedCount"`
	BouncedCount   int `json:"bouncedCount"`
	FailedCount    int `json:"failedCount"`

	SendErrors []SendError `json:"sendErrors,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Sendable reports whether a send may be started from the current status.
func (c *Campaign) Sendable() bool {
	return c.Status == CampaignDraft || c.Status == CampaignScheduled
}

// SendError records one recipient's failure by absolute position in the
// dispatch run, so the operator can map it back to a specific recipient.
type SendError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// SendSummary is the orchestrator's answer to "how did the run go".
type SendSummary struct {
	SentCount      int `json:"sentCount"`
	FailedCount    int `json:"failedCount"`
	RecipientCount int `json:"recipientCount"`
}
