package domain

import (
	"regexp"
	"strings"
	"time"
)

var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidEmail is a light format check; real deliverability is the
// provider's problem.
func ValidEmail(addr string) bool {
	return emailRe.MatchString(strings.TrimSpace(addr))
}

// CreateCampaignRequest creates a draft campaign, or a scheduled one
// when ScheduledAt is set.
type CreateCampaignRequest struct {
	Name        string     `json:"name"`
	Subject     string     `json:"subject"`
	HTMLContent string     `json:"htmlContent"`
	FromName    string     `json:"fromName"`
	FromEmail   string     `json:"fromEmail"`
	ListID      string     `json:"listId"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
}

func (r CreateCampaignRequest) Validate() error {
	if r.Name == "" || r.Subject == "" || r.HTMLContent == "" {
		return ErrMissingFields
	}
	if r.FromEmail != "" && !ValidEmail(r.FromEmail) {
		return ErrInvalidEmail
	}
	return nil
}

// SendRequest is the send-now payload: a list send or an ad hoc batch.
// Exactly one of ListID / To must be set.
type SendRequest struct {
	Subject   string   `json:"subject"`
	Content   string   `json:"content"`
	ListID    string   `json:"listId,omitempty"`
	To        []string `json:"to,omitempty"`
	FromName  string   `json:"fromName,omitempty"`
	FromEmail string   `json:"fromEmail,omitempty"`
}

func (r SendRequest) Validate() error {
	if r.Subject == "" || r.Content == "" {
		return ErrMissingFields
	}
	if r.ListID == "" && len(r.To) == 0 {
		return ErrNoAudience
	}
	if r.ListID != "" && len(r.To) > 0 {
		return ErrAmbiguousAudience
	}
	for _, addr := range r.To {
		if !ValidEmail(addr) {
			return ErrInvalidEmail
		}
	}
	return nil
}

// SendOneRequest is a one-off transactional send, bypassing campaigns.
type SendOneRequest struct {
	To        string `json:"to"`
	Subject   string `json:"subject"`
	Content   string `json:"content"`
	FromName  string `json:"fromName,omitempty"`
	FromEmail string `json:"fromEmail,omitempty"`
}

func (r SendOneRequest) Validate() error {
	if r.To == "" || r.Subject == "" || r.Content == "" {
		return ErrMissingFields
	}
	if !ValidEmail(r.To) {
		return ErrInvalidEmail
	}
	return nil
}
