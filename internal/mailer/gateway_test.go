package mailer

import (
	"context"
	"errors"
	"testing"

	"campaigner/internal/domain"
)

type fakeBackend struct {
	name       string
	configured bool
	err        error

	calls int
	last  domain.EmailMessage
}

func (f *fakeBackend) Name() string     { return f.name }
func (f *fakeBackend) Configured() bool { return f.configured }
func (f *fakeBackend) Send(ctx context.Context, msg domain.EmailMessage) error {
	f.calls++
	f.last = msg
	return f.err
}

func msg() domain.EmailMessage {
	return domain.EmailMessage{
		To:        []string{"to@example.com"},
		FromEmail: "from@example.com",
		Subject:   "s",
		HTML:      "<p>hello</p>",
	}
}

func TestSendNoBackendConfigured(t *testing.T) {
	g := NewGateway([]Backend{
		&fakeBackend{name: "ses"},
		&fakeBackend{name: "sendgrid"},
	}, nil, nil)

	if g.Configured() {
		t.Fatalf("expected not configured")
	}
	for i := 0; i < 3; i++ {
		if g.Send(context.Background(), msg()) {
			t.Fatalf("send must report false with no configured backend")
		}
	}
}

func TestSendPriorityOrder(t *testing.T) {
	ses := &fakeBackend{name: "ses"}
	sg := &fakeBackend{name: "sendgrid", configured: true}
	rs := &fakeBackend{name: "resend", configured: true}
	g := NewGateway([]Backend{ses, sg, rs}, nil, nil)

	if !g.Send(context.Background(), msg()) {
		t.Fatalf("expected success")
	}
	if ses.calls != 0 || sg.calls != 1 || rs.calls != 0 {
		t.Fatalf("expected first configured backend only, got ses=%d sendgrid=%d resend=%d",
			ses.calls, sg.calls, rs.calls)
	}
}

func TestSendBackendErrorReturnsFalse(t *testing.T) {
	b := &fakeBackend{name: "sendgrid", configured: true, err: errors.New("451 try later")}
	g := NewGateway([]Backend{b}, nil, nil)

	if g.Send(context.Background(), msg()) {
		t.Fatalf("expected false on backend error")
	}
	if b.calls != 1 {
		t.Fatalf("expected exactly one attempt, got %d", b.calls)
	}
}

func TestSendFillsTextFallback(t *testing.T) {
	b := &fakeBackend{name: "resend", configured: true}
	g := NewGateway([]Backend{b}, nil, nil)

	m := msg()
	m.HTML = "<p>Hello <b>there</b></p>"
	if !g.Send(context.Background(), m) {
		t.Fatalf("expected success")
	}
	if b.last.Text == "" {
		t.Fatalf("expected derived text part")
	}
	if b.last.Text != "Hello there" {
		t.Fatalf("got text %q", b.last.Text)
	}
}

func TestSendKeepsExplicitText(t *testing.T) {
	b := &fakeBackend{name: "resend", configured: true}
	g := NewGateway([]Backend{b}, nil, nil)

	m := msg()
	m.Text = "custom plain"
	g.Send(context.Background(), m)
	if b.last.Text != "custom plain" {
		t.Fatalf("explicit text overwritten: %q", b.last.Text)
	}
}
