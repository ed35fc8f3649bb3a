package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"campaigner/internal/domain"
)

type fakeStore struct {
	due []domain.Campaign
	err error
}

func (f *fakeStore) ListDueCampaigns(ctx context.Context, now time.Time) ([]domain.Campaign, error) {
	return f.due, f.err
}

type fakeOrchestrator struct {
	calls   []string
	results map[string]domain.SendSummary
	errs    map[string]error
}

func (f *fakeOrchestrator) SendCampaign(ctx context.Context, id string) (domain.SendSummary, error) {
	f.calls = append(f.calls, id)
	if err := f.errs[id]; err != nil {
		return domain.SendSummary{}, err
	}
	return f.results[id], nil
}

func TestRunOnceDispatchesAllDue(t *testing.T) {
	st := &fakeStore{due: []domain.Campaign{
		{ID: "cmp_1", Name: "a"},
		{ID: "cmp_2", Name: "b"},
	}}
	orch := &fakeOrchestrator{results: map[string]domain.SendSummary{
		"cmp_1": {SentCount: 10, RecipientCount: 10},
		"cmp_2": {SentCount: 4, FailedCount: 1, RecipientCount: 5},
	}}
	s := &Scheduler{Store: st, Orchestrator: orch}

	results, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].SentCount != 10 || results[1].FailedCount != 1 {
		t.Fatalf("unexpected results %+v", results)
	}
	if len(orch.calls) != 2 || orch.calls[0] != "cmp_1" || orch.calls[1] != "cmp_2" {
		t.Fatalf("campaigns not dispatched in order: %v", orch.calls)
	}
}

func TestRunOnceFailureIsolation(t *testing.T) {
	st := &fakeStore{due: []domain.Campaign{
		{ID: "cmp_1"}, {ID: "cmp_2"}, {ID: "cmp_3"},
	}}
	orch := &fakeOrchestrator{
		results: map[string]domain.SendSummary{
			"cmp_1": {SentCount: 1, RecipientCount: 1},
			"cmp_3": {SentCount: 1, RecipientCount: 1},
		},
		errs: map[string]error{"cmp_2": errors.New("audience lookup failed")},
	}
	s := &Scheduler{Store: st, Orchestrator: orch}

	results, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("one failure stopped the run: %d results", len(results))
	}
	if results[1].Error == "" {
		t.Fatalf("failure not recorded")
	}
	if results[2].SentCount != 1 {
		t.Fatalf("campaign after the failure was not dispatched")
	}
}

func TestRunOnceSkipsClaimedCampaigns(t *testing.T) {
	st := &fakeStore{due: []domain.Campaign{{ID: "cmp_1"}}}
	orch := &fakeOrchestrator{errs: map[string]error{"cmp_1": domain.ErrNotSendable}}
	s := &Scheduler{Store: st, Orchestrator: orch}

	results, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if len(results) != 1 || results[0].Error != "already claimed" {
		t.Fatalf("claim race not recorded as a skip: %+v", results)
	}
}

func TestRunOnceListError(t *testing.T) {
	st := &fakeStore{err: errors.New("db down")}
	s := &Scheduler{Store: st, Orchestrator: &fakeOrchestrator{}}

	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatalf("expected list error to surface")
	}
}

func TestRunOnceStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := &fakeStore{due: []domain.Campaign{{ID: "cmp_1"}, {ID: "cmp_2"}}}
	orch := &fakeOrchestrator{results: map[string]domain.SendSummary{}}
	s := &Scheduler{Store: st, Orchestrator: orch}

	results, err := s.RunOnce(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
	// The in-flight campaign settles, the rest is abandoned.
	if len(results) != 1 {
		t.Fatalf("expected 1 settled result, got %d", len(results))
	}
}
