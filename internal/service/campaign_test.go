package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"campaigner/internal/domain"
	"campaigner/internal/render"
	"campaigner/internal/store"
)

type fakeStore struct {
	mu sync.Mutex

	campaigns map[string]domain.Campaign
	contacts  map[string][]domain.Contact
	events    []domain.EmailEvent

	claimErr    error
	eventErr    error
	finalizes   []store.CampaignFinalize
	statusFlips []store.StatusUpdate
	counters    map[string]int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		campaigns: map[string]domain.Campaign{},
		contacts:  map[string][]domain.Contact{},
		counters:  map[string]int{},
	}
}

func (f *fakeStore) CreateCampaign(ctx context.Context, c domain.Campaign) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.campaigns[c.ID] = c
	return nil
}

func (f *fakeStore) GetCampaign(ctx context.Context, id string) (domain.Campaign, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	return c, ok, nil
}

func (f *fakeStore) ClaimCampaignForSending(ctx context.Context, id string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return false, f.claimErr
	}
	c, ok := f.campaigns[id]
	if !ok || !c.Sendable() {
		return false, nil
	}
	c.Status = domain.CampaignSending
	f.campaigns[id] = c
	return true, nil
}

func (f *fakeStore) UpdateCampaignStatus(ctx context.Context, in store.StatusUpdate) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusFlips = append(f.statusFlips, in)
	c, ok := f.campaigns[in.ID]
	if !ok || c.Status != in.From {
		return false, nil
	}
	c.Status = in.To
	f.campaigns[in.ID] = c
	return true, nil
}

func (f *fakeStore) FinalizeCampaign(ctx context.Context, in store.CampaignFinalize) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finalizes = append(f.finalizes, in)
	c, ok := f.campaigns[in.ID]
	if ok {
		c.Status = domain.CampaignSent
		c.SentCount = in.SentCount
		c.FailedCount = in.FailedCount
		c.SendErrors = in.Errors
		f.campaigns[in.ID] = c
	}
	return nil
}

func (f *fakeStore) ListDueCampaigns(ctx context.Context, now time.Time) ([]domain.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Campaign
	for _, c := range f.campaigns {
		if c.Status == domain.CampaignScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) ListSubscribedContacts(ctx context.Context, listID string) ([]domain.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Contact
	for _, c := range f.contacts[listID] {
		if c.Subscribed {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertEmailEvent(ctx context.Context, ev domain.EmailEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.eventErr != nil {
		return f.eventErr
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeStore) IncrementCampaignCounter(ctx context.Context, campaignID string, kind domain.EventKind, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.campaigns[campaignID]; !ok {
		return false, nil
	}
	f.counters[campaignID+"/"+string(kind)]++
	return true, nil
}

func (f *fakeStore) eventCount(kind domain.EventKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ev := range f.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

type fakeMailer struct {
	mu         sync.Mutex
	configured bool
	failFor    map[string]bool
	sent       []domain.EmailMessage
}

func (f *fakeMailer) Configured() bool { return f.configured }

func (f *fakeMailer) Send(ctx context.Context, msg domain.EmailMessage) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return !f.failFor[msg.To[0]]
}

func newService(st *fakeStore, m *fakeMailer) *CampaignService {
	return &CampaignService{
		Store:            st,
		Mailer:           m,
		Renderer:         render.Renderer{BaseURL: "https://example.com"},
		BatchSize:        100,
		BatchDelay:       time.Millisecond,
		DefaultFromName:  "Acme",
		DefaultFromEmail: "news@acme.test",
	}
}

func seedCampaign(st *fakeStore, id string, status domain.CampaignStatus, listID string) {
	st.campaigns[id] = domain.Campaign{
		ID:          id,
		Name:        "launch",
		Subject:     "Hi {{firstName}}",
		HTMLContent: "<p>Hello {{firstName}}</p>",
		FromName:    "Acme",
		FromEmail:   "news@acme.test",
		ListID:      listID,
		Status:      status,
	}
}

func seedContacts(st *fakeStore, listID string, n int) {
	for i := 0; i < n; i++ {
		st.contacts[listID] = append(st.contacts[listID], domain.Contact{
			ID:         fmt.Sprintf("ct_%03d", i),
			ListID:     listID,
			Email:      fmt.Sprintf("user%03d@example.com", i),
			FirstName:  "U",
			Subscribed: true,
		})
	}
}

func TestSendCampaignFullRun(t *testing.T) {
	st := newFakeStore()
	m := &fakeMailer{configured: true, failFor: map[string]bool{"user042@example.com": true}}
	svc := newService(st, m)

	seedCampaign(st, "cmp_1", domain.CampaignDraft, "list_1")
	seedContacts(st, "list_1", 250)

	summary, err := svc.SendCampaign(context.Background(), "cmp_1")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if summary.SentCount != 249 || summary.FailedCount != 1 || summary.RecipientCount != 250 {
		t.Fatalf("got summary %+v, want 249/1/250", summary)
	}

	if len(st.finalizes) != 1 {
		t.Fatalf("expected exactly one finalize, got %d", len(st.finalizes))
	}
	fin := st.finalizes[0]
	if fin.SentCount != 249 || fin.FailedCount != 1 {
		t.Fatalf("finalize counts %d/%d, want 249/1", fin.SentCount, fin.FailedCount)
	}
	if len(fin.Errors) != 1 || fin.Errors[0].Index != 42 {
		t.Fatalf("expected one error at index 42, got %+v", fin.Errors)
	}

	if got := st.eventCount(domain.EventSent); got != 249 {
		t.Fatalf("expected 249 sent events, got %d", got)
	}
	if got := st.eventCount(domain.EventFailed); got != 1 {
		t.Fatalf("expected 1 failed event, got %d", got)
	}

	if st.campaigns["cmp_1"].Status != domain.CampaignSent {
		t.Fatalf("campaign not finalized, status %s", st.campaigns["cmp_1"].Status)
	}
}

func TestSendCampaignRendersPerRecipient(t *testing.T) {
	st := newFakeStore()
	m := &fakeMailer{configured: true}
	svc := newService(st, m)

	seedCampaign(st, "cmp_1", domain.CampaignDraft, "list_1")
	st.contacts["list_1"] = []domain.Contact{
		{ID: "ct_1", Email: "ada@example.com", FirstName: "Ada", Subscribed: true},
	}

	if _, err := svc.SendCampaign(context.Background(), "cmp_1"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(m.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(m.sent))
	}
	if m.sent[0].Subject != "Hi Ada" {
		t.Fatalf("subject not rendered: %q", m.sent[0].Subject)
	}
	if !strings.Contains(m.sent[0].HTML, "Hello Ada") {
		t.Fatalf("body not rendered: %q", m.sent[0].HTML)
	}
}

func TestSendCampaignEmptyAudienceLeavesStatus(t *testing.T) {
	st := newFakeStore()
	svc := newService(st, &fakeMailer{configured: true})

	seedCampaign(st, "cmp_1", domain.CampaignDraft, "list_1")

	_, err := svc.SendCampaign(context.Background(), "cmp_1")
	if !errors.Is(err, domain.ErrEmptyAudience) {
		t.Fatalf("expected ErrEmptyAudience, got %v", err)
	}
	if st.campaigns["cmp_1"].Status != domain.CampaignDraft {
		t.Fatalf("status changed on empty audience: %s", st.campaigns["cmp_1"].Status)
	}
	if len(st.events) != 0 {
		t.Fatalf("events written for rejected send")
	}
}

func TestSendCampaignNotFound(t *testing.T) {
	svc := newService(newFakeStore(), &fakeMailer{configured: true})
	_, err := svc.SendCampaign(context.Background(), "cmp_missing")
	if !errors.Is(err, domain.ErrCampaignNotFound) {
		t.Fatalf("expected ErrCampaignNotFound, got %v", err)
	}
}

func TestSendCampaignAlreadySending(t *testing.T) {
	st := newFakeStore()
	svc := newService(st, &fakeMailer{configured: true})

	seedCampaign(st, "cmp_1", domain.CampaignSending, "list_1")
	seedContacts(st, "list_1", 1)

	_, err := svc.SendCampaign(context.Background(), "cmp_1")
	if !errors.Is(err, domain.ErrNotSendable) {
		t.Fatalf("expected ErrNotSendable, got %v", err)
	}
}

func TestSendCampaignEventWriteFailureDoesNotFlipOutcome(t *testing.T) {
	st := newFakeStore()
	st.eventErr = errors.New("db down")
	m := &fakeMailer{configured: true}
	svc := newService(st, m)

	seedCampaign(st, "cmp_1", domain.CampaignDraft, "list_1")
	seedContacts(st, "list_1", 3)

	summary, err := svc.SendCampaign(context.Background(), "cmp_1")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if summary.SentCount != 3 || summary.FailedCount != 0 {
		t.Fatalf("event write failure changed the outcome: %+v", summary)
	}
}

func TestSendAdHocListCreatesCampaign(t *testing.T) {
	st := newFakeStore()
	m := &fakeMailer{configured: true}
	svc := newService(st, m)
	seedContacts(st, "list_1", 5)

	summary, err := svc.SendAdHoc(context.Background(), domain.SendRequest{
		Subject: "Hello",
		Content: "<p>Hi</p>",
		ListID:  "list_1",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if summary.SentCount != 5 {
		t.Fatalf("got %+v, want 5 sent", summary)
	}
	if len(st.campaigns) != 1 {
		t.Fatalf("expected a campaign record for a list send, got %d", len(st.campaigns))
	}
	for _, c := range st.campaigns {
		if c.Status != domain.CampaignSent {
			t.Fatalf("campaign not finalized: %s", c.Status)
		}
	}
}

func TestSendAdHocRecipientsSkipCampaign(t *testing.T) {
	st := newFakeStore()
	m := &fakeMailer{configured: true}
	svc := newService(st, m)

	summary, err := svc.SendAdHoc(context.Background(), domain.SendRequest{
		Subject: "Hello",
		Content: "<p>Hi</p>",
		To:      []string{"a@example.com", "b@example.com"},
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if summary.SentCount != 2 {
		t.Fatalf("got %+v, want 2 sent", summary)
	}
	if len(st.campaigns) != 0 {
		t.Fatalf("ad hoc send created a campaign")
	}
	if len(st.finalizes) != 0 {
		t.Fatalf("ad hoc send finalized a campaign")
	}
	for _, ev := range st.events {
		if ev.CampaignID != "" {
			t.Fatalf("ad hoc event carries campaign id %q", ev.CampaignID)
		}
	}
}

func TestSendAdHocAmbiguousAudience(t *testing.T) {
	svc := newService(newFakeStore(), &fakeMailer{configured: true})
	_, err := svc.SendAdHoc(context.Background(), domain.SendRequest{
		Subject: "s", Content: "c",
		ListID: "list_1", To: []string{"a@example.com"},
	})
	if !errors.Is(err, domain.ErrAmbiguousAudience) {
		t.Fatalf("expected ErrAmbiguousAudience, got %v", err)
	}
}

func TestSendOneNotConfigured(t *testing.T) {
	st := newFakeStore()
	svc := newService(st, &fakeMailer{configured: false})

	_, err := svc.SendOne(context.Background(), domain.SendOneRequest{
		To: "a@example.com", Subject: "s", Content: "c",
	})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if len(st.events) != 0 {
		t.Fatalf("event written for refused send")
	}
}

func TestSendOneRecordsEvent(t *testing.T) {
	st := newFakeStore()
	svc := newService(st, &fakeMailer{configured: true})

	ok, err := svc.SendOne(context.Background(), domain.SendOneRequest{
		To: "a@example.com", Subject: "s", Content: "c",
	})
	if err != nil || !ok {
		t.Fatalf("send one: ok=%v err=%v", ok, err)
	}
	if len(st.events) != 1 || st.events[0].Kind != domain.EventSent || st.events[0].CampaignID != "" {
		t.Fatalf("unexpected event %+v", st.events)
	}
}

func TestCreateCampaignScheduled(t *testing.T) {
	st := newFakeStore()
	svc := newService(st, &fakeMailer{configured: true})

	at := time.Now().Add(time.Hour).UTC()
	c, err := svc.CreateCampaign(context.Background(), domain.CreateCampaignRequest{
		Name: "n", Subject: "s", HTMLContent: "<p>c</p>", ScheduledAt: &at,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if c.Status != domain.CampaignScheduled {
		t.Fatalf("got status %s, want scheduled", c.Status)
	}
	if c.FromEmail != "news@acme.test" {
		t.Fatalf("default from email not applied: %q", c.FromEmail)
	}
}

func TestPauseResume(t *testing.T) {
	st := newFakeStore()
	svc := newService(st, &fakeMailer{configured: true})

	seedCampaign(st, "cmp_1", domain.CampaignScheduled, "list_1")

	if err := svc.PauseCampaign(context.Background(), "cmp_1"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if st.campaigns["cmp_1"].Status != domain.CampaignPaused {
		t.Fatalf("got %s, want paused", st.campaigns["cmp_1"].Status)
	}

	if err := svc.ResumeCampaign(context.Background(), "cmp_1"); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if st.campaigns["cmp_1"].Status != domain.CampaignScheduled {
		t.Fatalf("got %s, want scheduled", st.campaigns["cmp_1"].Status)
	}

	// Pausing a campaign that is not scheduled is a conflict.
	seedCampaign(st, "cmp_2", domain.CampaignSending, "list_1")
	if err := svc.PauseCampaign(context.Background(), "cmp_2"); !errors.Is(err, domain.ErrNotSendable) {
		t.Fatalf("expected conflict pausing a sending campaign, got %v", err)
	}
}
