package domain

import "errors"

var (
	ErrMissingFields     = errors.New("missing required fields")
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrNoAudience        = errors.New("no audience: set listId or to")
	ErrAmbiguousAudience = errors.New("ambiguous audience: set listId or to, not both")
	ErrEmptyAudience     = errors.New("audience resolved to zero recipients")
	ErrCampaignNotFound  = errors.New("campaign not found")
	ErrNotSendable       = errors.New("campaign is not in a sendable status")
)
