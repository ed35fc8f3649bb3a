package store

import (
	"time"

	"campaigner/internal/domain"
)

// CampaignFinalize is the orchestrator's single end-of-run write:
// status, timestamp and counters land atomically so readers never
// observe partial counts.
type CampaignFinalize struct {
	ID          string
	SentCount   int
	FailedCount int
	Errors      []domain.SendError
	Now         time.Time
}

// StatusUpdate flips a campaign between statuses, guarded by the
// expected current status so concurrent writers cannot clobber each
// other.
type StatusUpdate struct {
	ID   string
	From domain.CampaignStatus
	To   domain.CampaignStatus
	Now  time.Time
}
