// Package scheduler finds campaigns whose scheduled send time has
// arrived and hands each to the orchestrator exactly once.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"campaigner/internal/domain"
	"campaigner/internal/util"
)

type Store interface {
	ListDueCampaigns(ctx context.Context, now time.Time) ([]domain.Campaign, error)
}

type Orchestrator interface {
	SendCampaign(ctx context.Context, campaignID string) (domain.SendSummary, error)
}

type Scheduler struct {
	Store        Store
	Orchestrator Orchestrator
	Now          func() time.Time
}

// RunResult is one campaign's outcome within a scheduler tick.
type RunResult struct {
	CampaignID     string `json:"campaignId"`
	Name           string `json:"name"`
	SentCount      int    `json:"sentCount"`
	FailedCount    int    `json:"failedCount"`
	RecipientCount int    `json:"recipientCount"`
	Error          string `json:"error,omitempty"`
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return util.NowUTC()
}

// RunOnce scans for due campaigns and dispatches them sequentially,
// bounding outbound concurrency to one campaign's worth at a time.
// The orchestrator's conditional claim makes pickup exactly-once even
// when two ticks overlap: the loser sees ErrNotSendable, which is
// recorded as a skip rather than a failure. One campaign's failure
// never stops the rest of the run.
func (s *Scheduler) RunOnce(ctx context.Context) ([]RunResult, error) {
	due, err := s.Store.ListDueCampaigns(ctx, s.now())
	if err != nil {
		return nil, err
	}

	results := make([]RunResult, 0, len(due))
	for _, c := range due {
		r := RunResult{CampaignID: c.ID, Name: c.Name}

		summary, err := s.Orchestrator.SendCampaign(ctx, c.ID)
		switch {
		case errors.Is(err, domain.ErrNotSendable):
			// Claimed by a concurrent tick between our scan and now.
			r.Error = "already claimed"
			slog.Info("campaign already claimed, skipping", "campaign_id", c.ID)
		case err != nil:
			r.Error = err.Error()
			slog.Error("scheduled campaign failed", "campaign_id", c.ID, "err", err)
		default:
			r.SentCount = summary.SentCount
			r.FailedCount = summary.FailedCount
			r.RecipientCount = summary.RecipientCount
		}
		results = append(results, r)

		if ctx.Err() != nil {
			return results, ctx.Err()
		}
	}
	return results, nil
}

// Run polls RunOnce on a fixed interval until the context is canceled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			results, err := s.RunOnce(ctx)
			if err != nil {
				slog.Error("scheduler tick failed", "err", err)
				continue
			}
			if len(results) > 0 {
				slog.Info("scheduler tick finished", "campaigns", len(results))
			}
		}
	}
}
