package domain

import (
	"errors"
	"testing"
)

func TestValidEmail(t *testing.T) {
	for _, ok := range []string{"a@b.co", "first.last+tag@sub.domain.io", " padded@example.com "} {
		if !ValidEmail(ok) {
			t.Fatalf("expected %q valid", ok)
		}
	}
	for _, bad := range []string{"", "plain", "a@b", "a b@c.d", "@example.com"} {
		if ValidEmail(bad) {
			t.Fatalf("expected %q invalid", bad)
		}
	}
}

func TestSendRequestAudienceValidation(t *testing.T) {
	base := SendRequest{Subject: "s", Content: "c"}

	r := base
	if err := r.Validate(); !errors.Is(err, ErrNoAudience) {
		t.Fatalf("no audience: got %v", err)
	}

	r = base
	r.ListID = "l"
	r.To = []string{"a@example.com"}
	if err := r.Validate(); !errors.Is(err, ErrAmbiguousAudience) {
		t.Fatalf("both set: got %v", err)
	}

	r = base
	r.To = []string{"a@example.com", "nope"}
	if err := r.Validate(); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("bad address: got %v", err)
	}

	r = base
	r.ListID = "l"
	if err := r.Validate(); err != nil {
		t.Fatalf("valid list send rejected: %v", err)
	}
}

func TestKindForProviderEvent(t *testing.T) {
	cases := map[string]EventKind{
		"delivered":   EventDelivered,
		"delivery":    EventDelivered,
		"open":        EventOpened,
		"click":       EventClicked,
		"bounce":      EventBounced,
		"hard_bounce": EventBounced,
		"dropped":     EventFailed,
		"processed":   "",
		"deferred":    "",
	}
	for in, want := range cases {
		if got := KindForProviderEvent(in); got != want {
			t.Fatalf("%s: got %q, want %q", in, got, want)
		}
	}
}
