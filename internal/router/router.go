// Package router dispatches a classified turn to exactly one terminal agent
// and streams progress events back to the caller.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"support-agent/internal/domain"
	"support-agent/internal/intent"
)

const defaultHandlerTimeout = 20 * time.Second

// apologyOutput is the reply used whenever an agent fails; agent faults never
// propagate to the caller.
const apologyOutput = "Sorry, something went wrong while handling your request. Please try again."

// Handler is a terminal agent node. It reads the turn's input, identity,
// preface, and memory, and populates Output. Expected business failures are
// returned as user-facing output, not as errors.
type Handler interface {
	Handle(ctx context.Context, state *domain.TurnState) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, state *domain.TurnState) error

func (f HandlerFunc) Handle(ctx context.Context, state *domain.TurnState) error {
	return f(ctx, state)
}

// Dispatcher maps each intent label to one registered agent. Labels without
// a registration route to the fallback agent. Agents are leaves: no agent
// hands a turn to another agent within the same turn.
type Dispatcher struct {
	handlers map[intent.Label]Handler
	fallback Handler
	timeout  time.Duration
	log      *slog.Logger
}

type Option func(*Dispatcher)

// WithTimeout bounds each agent invocation.
func WithTimeout(d time.Duration) Option {
	return func(r *Dispatcher) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(r *Dispatcher) {
		if log != nil {
			r.log = log
		}
	}
}

// New creates a Dispatcher with the given fallback agent.
func New(fallback Handler, opts ...Option) (*Dispatcher, error) {
	if fallback == nil {
		return nil, errors.New("router: fallback handler must not be nil")
	}
	d := &Dispatcher{
		handlers: map[intent.Label]Handler{},
		fallback: fallback,
		timeout:  defaultHandlerTimeout,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Register binds an agent to a label from the closed intent set.
func (d *Dispatcher) Register(label intent.Label, h Handler) error {
	if !intent.Known(label) {
		return fmt.Errorf("router: unknown intent label %q", label)
	}
	if h == nil {
		return fmt.Errorf("router: handler for %q must not be nil", label)
	}
	if _, exists := d.handlers[label]; exists {
		return fmt.Errorf("router: handler for %q already registered", label)
	}
	d.handlers[label] = h
	return nil
}

// Dispatch resolves the turn's agent, runs it, and streams events: a routing
// event first when the turn carries a routing message, then exactly one
// output event. The channel closes when the turn is done or the caller's
// context is canceled.
func (d *Dispatcher) Dispatch(ctx context.Context, state *domain.TurnState) <-chan domain.Event {
	events := make(chan domain.Event, 2)
	go func() {
		defer close(events)

		if state.RoutingMessage != "" {
			if !emit(ctx, events, domain.Event{Kind: domain.EventRouting, Text: state.RoutingMessage}) {
				return
			}
		}

		d.run(ctx, state)
		if state.Output == "" {
			state.Output = apologyOutput
		}
		emit(ctx, events, domain.Event{Kind: domain.EventOutput, Text: state.Output})
	}()
	return events
}

// run executes the agent for the turn's intent under the dispatch timeout,
// absorbing errors and panics into the apology output.
func (d *Dispatcher) run(ctx context.Context, state *domain.TurnState) {
	h, ok := d.handlers[state.Intent]
	if !ok {
		h = d.fallback
	}

	hctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := safeHandle(hctx, h, state); err != nil {
		d.log.Error("agent failed",
			"intent", string(state.Intent),
			"conversationId", state.ConversationID,
			"err", err,
		)
		state.Output = apologyOutput
	}
}

// safeHandle converts an agent panic into an error so a single bad agent
// cannot take the process down.
func safeHandle(ctx context.Context, h Handler, state *domain.TurnState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("router: agent panic: %v", r)
		}
	}()
	return h.Handle(ctx, state)
}

func emit(ctx context.Context, events chan<- domain.Event, ev domain.Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
