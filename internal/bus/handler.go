package bus

import (
	"context"
	"fmt"
	"reflect"
)

// Handler is a subscriber invoked once per event of its kind.
// Implementations must honor ctx cancellation.
type Handler interface {
	Handle(ctx context.Context, evt Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt Event) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

// HandlerFor is a handler for a single concrete event type.
type HandlerFor[E Event] interface {
	Handle(ctx context.Context, evt E) error
}

// Named is implemented by handlers that report their own identity in logs and metrics.
type Named interface {
	Name() string
}

// Resolver supplies the handlers that should process an event of a kind.
// It is queried once per dequeued event and may return a different set over time.
type Resolver interface {
	Resolve(ctx context.Context, kind Kind) []Handler
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, kind Kind) []Handler

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(ctx context.Context, kind Kind) []Handler {
	return f(ctx, kind)
}

// Adapt converts a typed handler into a Handler. Events of any other type fail with
// ErrHandlerTypeMismatch.
func Adapt[E Event](h HandlerFor[E]) Handler {
	return &typedHandler[E]{inner: h}
}

type typedHandler[E Event] struct {
	inner HandlerFor[E]
}

func (t *typedHandler[E]) Handle(ctx context.Context, evt Event) error {
	e, ok := evt.(E)
	if !ok {
		return fmt.Errorf("handle %s: %w", typeName(evt), ErrHandlerTypeMismatch)
	}

	return t.inner.Handle(ctx, e)
}

func (t *typedHandler[E]) Name() string {
	return HandlerName(t.inner)
}

// HandlerName returns the identity of a handler: its Name when it implements Named,
// otherwise its Go type name.
func HandlerName(h any) string {
	if n, ok := h.(Named); ok {
		return n.Name()
	}

	return typeName(h)
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "<nil>"
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	name := t.Name()
	if name == "" {
		name = t.String()
	}

	return name
}
