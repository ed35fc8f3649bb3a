package util

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// ULIDs are sortable, which keeps DB indexes and dashboards tidy.
// The prefix tells humans what kind of row they are looking at.

func NewCampaignID() string { return "cmp_" + newULID() }

func NewEventID() string { return "evt_" + newULID() }

func newULID() string {
	t := time.Now().UTC()
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

func NowUTC() time.Time {
	return time.Now().UTC()
}
