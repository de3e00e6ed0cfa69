package embed

import (
	"context"
	"errors"
	"sync"
)

// State is the lifecycle of one embed interaction.
type State int

const (
	StateIdle State = iota
	StateSoliciting
	StateResolved
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSoliciting:
		return "soliciting"
	case StateResolved:
		return "resolved"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether the interaction has settled.
func (s State) Terminal() bool {
	return s == StateResolved || s == StateCancelled || s == StateFailed
}

// Interaction runs a handler asynchronously and exposes its state.
type Interaction struct {
	handler Handler
	current string

	mu    sync.Mutex
	state State
	value string
	err   error
	done  chan struct{}
	once  sync.Once
}

func NewInteraction(h Handler, current string) *Interaction {
	return &Interaction{handler: h, current: current, done: make(chan struct{})}
}

// Start moves Idle to Soliciting and runs the handler in a goroutine. Calling
// Start twice has no further effect.
func (i *Interaction) Start(ctx context.Context) *Interaction {
	i.once.Do(func() {
		i.mu.Lock()
		i.state = StateSoliciting
		i.mu.Unlock()

		go func() {
			value, err := i.handler.Handle(ctx, i.current)
			i.settle(value, err)
		}()
	})
	return i
}

func (i *Interaction) settle(value string, err error) {
	i.mu.Lock()
	switch {
	case err == nil:
		i.state = StateResolved
		i.value = value
	case errors.Is(err, ErrCancelled):
		i.state = StateCancelled
		i.err = err
	default:
		i.state = StateFailed
		i.err = err
	}
	i.mu.Unlock()
	close(i.done)
}

func (i *Interaction) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Done is closed once the interaction settles.
func (i *Interaction) Done() <-chan struct{} {
	return i.done
}

// Result returns the resolved value or the settling error. It must only be
// read after Done is closed.
func (i *Interaction) Result() (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.value, i.err
}

// Wait blocks until the interaction settles or ctx ends.
func (i *Interaction) Wait(ctx context.Context) (string, error) {
	select {
	case <-i.done:
		return i.Result()
	case <-ctx.Done():
		return "", cancelled(ctx)
	}
}

// Run starts an interaction and waits for it.
func Run(ctx context.Context, h Handler, current string) (string, error) {
	return NewInteraction(h, current).Start(ctx).Wait(ctx)
}
