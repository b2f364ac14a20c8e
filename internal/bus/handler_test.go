package bus

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signedUp struct {
	Base
	Email string
}

func (signedUp) Kind() Kind { return "SignedUp" }

type loggedIn struct {
	Base
}

func (loggedIn) Kind() Kind { return "LoggedIn" }

type welcomeMailer struct {
	sent []string
}

func (m *welcomeMailer) Handle(_ context.Context, evt signedUp) error {
	m.sent = append(m.sent, evt.Email)
	return nil
}

type namedMailer struct {
	welcomeMailer
}

func (*namedMailer) Name() string { return "mailer" }

func TestNewBase(t *testing.T) {
	before := time.Now().UTC()
	a, b := NewBase(), NewBase()

	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.False(t, a.OccurredAt().Before(before))
	assert.Equal(t, time.UTC, a.OccurredAt().Location())
}

func TestAdapt(t *testing.T) {
	mailer := &welcomeMailer{}
	h := Adapt[signedUp](mailer)

	require.NoError(t, h.Handle(context.Background(), signedUp{Base: NewBase(), Email: "a@b.com"}))
	assert.Equal(t, []string{"a@b.com"}, mailer.sent)

	err := h.Handle(context.Background(), loggedIn{Base: NewBase()})
	assert.ErrorIs(t, err, ErrHandlerTypeMismatch)
	assert.Contains(t, err.Error(), "loggedIn")
	assert.Len(t, mailer.sent, 1)
}

func TestHandlerName(t *testing.T) {
	tests := []struct {
		name    string
		handler any
		want    string
	}{
		{name: "pointer type", handler: &welcomeMailer{}, want: "welcomeMailer"},
		{name: "named", handler: &namedMailer{}, want: "mailer"},
		{name: "adapted keeps inner name", handler: Adapt[signedUp](&namedMailer{}), want: "mailer"},
		{name: "adapted unnamed", handler: Adapt[signedUp](&welcomeMailer{}), want: "welcomeMailer"},
		{name: "func", handler: HandlerFunc(func(context.Context, Event) error { return nil }), want: "HandlerFunc"},
		{name: "nil", handler: nil, want: "<nil>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HandlerName(tt.handler))
		})
	}
}

func TestHandlerError(t *testing.T) {
	cause := errors.New("smtp unavailable")
	err := fmt.Errorf("dispatch: %w", &HandlerError{Kind: "SignedUp", EventID: "e1", Handler: "mailer", Err: cause})

	assert.ErrorIs(t, err, cause)

	var handlerErr *HandlerError
	require.ErrorAs(t, err, &handlerErr)
	assert.Equal(t, "handler mailer failed for SignedUp event e1: smtp unavailable", handlerErr.Error())
}

func TestResolverFunc(t *testing.T) {
	h := HandlerFunc(func(context.Context, Event) error { return nil })
	r := ResolverFunc(func(_ context.Context, kind Kind) []Handler {
		if kind == "SignedUp" {
			return []Handler{h}
		}
		return nil
	})

	assert.Len(t, r.Resolve(context.Background(), "SignedUp"), 1)
	assert.Empty(t, r.Resolve(context.Background(), "LoggedIn"))
}
