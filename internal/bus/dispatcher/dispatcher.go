// Package dispatcher runs one long-lived loop per event kind. Each loop drains its
// kind's queue in FIFO order and fans every event out to all resolved handlers,
// waiting for the whole fan-out before taking the next event.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"chanbus/internal/bus"
	"chanbus/internal/validator"
)

// State is the lifecycle state of a single kind's dispatch loop.
type State int32

const (
	// StateIdle means the loop is waiting for the next event.
	StateIdle State = iota
	// StateDraining means the loop is fanning an event out to its handlers.
	StateDraining
	// StateStopped means the loop has exited and will not restart.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type Dispatcher struct {
	queue    bus.MessageQueue
	resolver bus.Resolver
	logger   *zap.Logger

	kinds  []bus.Kind
	states map[bus.Kind]*atomic.Int32

	started atomic.Bool
	done    chan struct{}
}

// New creates a dispatcher that drains the given kinds of queue. Duplicate kinds
// are collapsed so each kind gets exactly one loop.
func New(queue bus.MessageQueue, resolver bus.Resolver, logger *zap.Logger, kinds ...bus.Kind) (*Dispatcher, error) {
	d := Dispatcher{
		queue:    queue,
		resolver: resolver,
		logger:   logger,
		states:   make(map[bus.Kind]*atomic.Int32, len(kinds)),
		done:     make(chan struct{}),
	}

	if err := validator.Validate("dispatcher", d.queue, d.resolver, d.logger); err != nil {
		return nil, fmt.Errorf("failed to validate dispatcher deps: %w", err)
	}
	if len(kinds) == 0 {
		return nil, errors.New("failed to validate dispatcher deps: no event kinds to dispatch")
	}

	for _, kind := range kinds {
		if _, ok := d.states[kind]; ok {
			continue
		}
		d.kinds = append(d.kinds, kind)
		d.states[kind] = new(atomic.Int32)
	}
	d.logger = d.logger.Named("dispatcher")

	return &d, nil
}

// Run starts one loop per kind and blocks until every loop has stopped. Loops stop
// when ctx is done or their queue is closed and drained; an event already being
// dispatched is finished first. Run returns nil on shutdown and may only be called
// once; later calls fail with bus.ErrDispatcherStopped.
func (d *Dispatcher) Run(ctx context.Context) error {
	if !d.started.CompareAndSwap(false, true) {
		return bus.ErrDispatcherStopped
	}
	defer close(d.done)

	d.logger.Info("starting dispatch loops", zap.Int("kinds", len(d.kinds)))

	var g errgroup.Group
	for _, kind := range d.kinds {
		g.Go(func() error {
			d.loop(ctx, kind)
			return nil
		})
	}
	_ = g.Wait()

	d.logger.Info("dispatch loops stopped")

	return nil
}

// Kinds returns the kinds this dispatcher drains, in registration order.
func (d *Dispatcher) Kinds() []bus.Kind {
	return slices.Clone(d.kinds)
}

// State reports the state of kind's loop. Kinds the dispatcher does not drain are
// reported as stopped.
func (d *Dispatcher) State(kind bus.Kind) State {
	state, ok := d.states[kind]
	if !ok {
		return StateStopped
	}

	return State(state.Load())
}

// Done is closed once Run has returned.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// Stopped reports whether Run has returned.
func (d *Dispatcher) Stopped() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

// Ready returns nil while the dispatcher is running.
func (d *Dispatcher) Ready() error {
	switch {
	case d.Stopped():
		return bus.ErrDispatcherStopped
	case !d.started.Load():
		return errors.New("dispatcher not started")
	default:
		return nil
	}
}

func (d *Dispatcher) loop(ctx context.Context, kind bus.Kind) {
	state := d.states[kind]
	defer state.Store(int32(StateStopped))

	logger := d.logger.With(zap.String("kind", kind.String()))
	logger.Debug("dispatch loop started")

	for evt := range d.queue.Dequeue(ctx, kind) {
		state.Store(int32(StateDraining))
		d.dispatch(ctx, logger, kind, evt)
		state.Store(int32(StateIdle))
	}

	logger.Debug("dispatch loop stopped", zap.Bool("canceled", ctx.Err() != nil))
}

func (d *Dispatcher) dispatch(ctx context.Context, logger *zap.Logger, kind bus.Kind, evt bus.Event) {
	logger = logger.With(zap.String("event_id", evt.ID()))

	handlers, err := d.resolve(ctx, kind)
	if err != nil {
		logger.Error("failed to resolve subscribers, dropping event", zap.Error(err))
		return
	}

	if len(handlers) == 0 {
		logger.Info("no subscribers for event, dropping")
		return
	}

	logger.Debug("dispatching event", zap.Int("subscribers", len(handlers)))

	// Handler failures never fail the group; every handler runs to completion.
	var g errgroup.Group
	for _, h := range handlers {
		g.Go(func() error {
			if err := invoke(ctx, kind, evt, h); err != nil {
				report(ctx, logger, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (d *Dispatcher) resolve(ctx context.Context, kind bus.Kind) (handlers []bus.Handler, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("resolver panicked: %v", r)
		}
	}()

	return d.resolver.Resolve(ctx, kind), nil
}

func invoke(ctx context.Context, kind bus.Kind, evt bus.Event, h bus.Handler) error {
	if err := call(ctx, h, evt); err != nil {
		return &bus.HandlerError{
			Kind:    kind,
			EventID: evt.ID(),
			Handler: bus.HandlerName(h),
			Err:     err,
		}
	}
	return nil
}

// call runs h and turns a panic into an error wrapping bus.ErrHandlerPanic.
func call(ctx context.Context, h bus.Handler, evt bus.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", bus.ErrHandlerPanic, r)
		}
	}()

	return h.Handle(ctx, evt)
}

func report(ctx context.Context, logger *zap.Logger, err error) {
	var handlerErr *bus.HandlerError
	handler := ""
	if errors.As(err, &handlerErr) {
		handler = handlerErr.Handler
	}

	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		logger.Debug("handler canceled", zap.String("handler", handler), zap.Error(err))
		return
	}

	logger.Error("failed to handle event", zap.String("handler", handler), zap.Error(err))
}
