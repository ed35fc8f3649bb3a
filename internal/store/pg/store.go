package pg

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"campaigner/internal/domain"
	"campaigner/internal/store"
)

type Store struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

const campaignColumns = `
	id, name, subject, html_content, from_name, from_email, COALESCE(list_id,''),
	status, scheduled_at, sent_at,
	sent_count, delivered_count, opened_count, clicked_count, bounced_count, failed_count,
	COALESCE(send_errors, 'null'::jsonb),
	created_at, updated_at`

func scanCampaign(row pgx.Row) (domain.Campaign, error) {
	var c domain.Campaign
	var sendErrors []byte
	err := row.Scan(
		&c.ID, &c.Name, &c.Subject, &c.HTMLContent, &c.FromName, &c.FromEmail, &c.ListID,
		&c.Status, &c.ScheduledAt, &c.SentAt,
		&c.SentCount, &c.DeliveredCount, &c.OpenedCount, &c.ClickedCount, &c.BouncedCount, &c.FailedCount,
		&sendErrors,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.Campaign{}, err
	}
	_ = json.Unmarshal(sendErrors, &c.SendErrors)
	return c, nil
}

func (s *Store) CreateCampaign(ctx context.Context, c domain.Campaign) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO campaigns (id, name, subject, html_content, from_name, from_email, list_id,
		                       status, scheduled_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
	`, c.ID, c.Name, c.Subject, c.HTMLContent, c.FromName, c.FromEmail, nullIfEmpty(c.ListID),
		c.Status, c.ScheduledAt, c.CreatedAt)
	return err
}

func (s *Store) GetCampaign(ctx context.Context, id string) (domain.Campaign, bool, error) {
	row := s.DB.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id=$1`, id)
	c, err := scanCampaign(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Campaign{}, false, nil
		}
		return domain.Campaign{}, false, err
	}
	return c, true, nil
}

// ClaimCampaignForSending is the first persisted effect of every dispatch
// run: a conditional flip into 'sending' so two overlapping scheduler
// ticks can never pick up the same campaign twice.
func (s *Store) ClaimCampaignForSending(ctx context.Context, id string, now time.Time) (bool, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE campaigns SET status=$2, updated_at=$3
		WHERE id=$1 AND status IN ($4, $5)
	`, id, domain.CampaignSending, now, domain.CampaignDraft, domain.CampaignScheduled)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (s *Store) UpdateCampaignStatus(ctx context.Context, in store.StatusUpdate) (bool, error) {
	ct, err := s.DB.Exec(ctx, `
		UPDATE campaigns SET status=$2, updated_at=$3
		WHERE id=$1 AND status=$4
	`, in.ID, in.To, in.Now, in.From)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// FinalizeCampaign writes status, sent timestamp, run counters and the
// error list in one statement. Counters never move backwards; GREATEST
// guards the invariant against a stray double-finalize.
func (s *Store) FinalizeCampaign(ctx context.Context, in store.CampaignFinalize) error {
	var errsJSON any
	if len(in.Errors) > 0 {
		b, err := json.Marshal(in.Errors)
		if err != nil {
			return err
		}
		errsJSON = b
	}
	_, err := s.DB.Exec(ctx, `
		UPDATE campaigns
		SET status=$2, sent_at=$3,
		    sent_count=GREATEST(sent_count, $4),
		    failed_count=GREATEST(failed_count, $5),
		    send_errors=$6, updated_at=$3
		WHERE id=$1
	`, in.ID, domain.CampaignSent, in.Now, in.SentCount, in.FailedCount, errsJSON)
	return err
}

func (s *Store) ListDueCampaigns(ctx context.Context, now time.Time) ([]domain.Campaign, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE status=$1 AND scheduled_at IS NOT NULL AND scheduled_at <= $2
		ORDER BY scheduled_at ASC
	`, domain.CampaignScheduled, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListSubscribedContacts resolves a list's audience. Unsubscribed
// contacts are filtered here, before any task is built.
func (s *Store) ListSubscribedContacts(ctx context.Context, listID string) ([]domain.Contact, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, list_id, email, COALESCE(first_name,''), COALESCE(last_name,''), COALESCE(company,''), subscribed, created_at
		FROM contacts
		WHERE list_id=$1 AND subscribed
		ORDER BY created_at ASC
	`, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Contact
	for rows.Next() {
		var c domain.Contact
		if err := rows.Scan(&c.ID, &c.ListID, &c.Email, &c.FirstName, &c.LastName, &c.Company, &c.Subscribed, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) InsertEmailEvent(ctx context.Context, ev domain.EmailEvent) error {
	var meta any
	if len(ev.Meta) > 0 {
		b, err := json.Marshal(ev.Meta)
		if err != nil {
			return err
		}
		meta = b
	}
	_, err := s.DB.Exec(ctx, `
		INSERT INTO email_events (id, campaign_id, contact_id, email, kind, meta, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, ev.ID, nullIfEmpty(ev.CampaignID), nullIfEmpty(ev.ContactID), ev.Email, ev.Kind, meta, ev.OccurredAt)
	return err
}

// IncrementCampaignCounter bumps the aggregate for a webhook-driven event.
// Returns false when the campaign does not exist (stale callback).
func (s *Store) IncrementCampaignCounter(ctx context.Context, campaignID string, kind domain.EventKind, now time.Time) (bool, error) {
	var column string
	switch kind {
	case domain.EventDelivered:
		column = "delivered_count"
	case domain.EventOpened:
		column = "opened_count"
	case domain.EventClicked:
		column = "clicked_count"
	case domain.EventBounced:
		column = "bounced_count"
	case domain.EventFailed:
		column = "failed_count"
	default:
		return false, nil
	}
	ct, err := s.DB.Exec(ctx, `
		UPDATE campaigns SET `+column+` = `+column+` + 1, updated_at=$2 WHERE id=$1
	`, campaignID, now)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
