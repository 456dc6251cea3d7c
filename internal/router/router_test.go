package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"support-agent/internal/domain"
	"support-agent/internal/intent"
)

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func staticHandler(output string) Handler {
	return HandlerFunc(func(_ context.Context, state *domain.TurnState) error {
		state.Output = output
		return nil
	})
}

func collect(t *testing.T, events <-chan domain.Event) []domain.Event {
	t.Helper()
	var out []domain.Event
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestNew_NilFallback(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestRegister_Validation(t *testing.T) {
	d, err := New(staticHandler("fallback"))
	require.NoError(t, err)

	require.Error(t, d.Register(intent.Label("bogus"), staticHandler("x")))
	require.Error(t, d.Register(intent.Billing, nil))

	require.NoError(t, d.Register(intent.Billing, staticHandler("x")))
	require.Error(t, d.Register(intent.Billing, staticHandler("y")), "double registration must fail")
}

func TestDispatch_RoutingThenOutput(t *testing.T) {
	d, err := New(staticHandler("fallback"), WithLogger(quiet()))
	require.NoError(t, err)
	require.NoError(t, d.Register(intent.Refund, staticHandler("refund started")))

	state := &domain.TurnState{
		Input:          "I want a refund",
		Intent:         intent.Refund,
		RoutingMessage: "Routing to **refund** agent...",
	}
	events := collect(t, d.Dispatch(context.Background(), state))

	require.Equal(t, []domain.Event{
		{Kind: domain.EventRouting, Text: "Routing to **refund** agent..."},
		{Kind: domain.EventOutput, Text: "refund started"},
	}, events)
}

func TestDispatch_NoRoutingMessage(t *testing.T) {
	d, err := New(staticHandler("fallback"), WithLogger(quiet()))
	require.NoError(t, err)

	state := &domain.TurnState{Input: "hi", Intent: intent.Other}
	events := collect(t, d.Dispatch(context.Background(), state))

	require.Len(t, events, 1)
	require.Equal(t, domain.EventOutput, events[0].Kind)
	require.Equal(t, "fallback", events[0].Text)
}

func TestDispatch_UnregisteredIntentUsesFallback(t *testing.T) {
	d, err := New(staticHandler("fallback"), WithLogger(quiet()))
	require.NoError(t, err)
	require.NoError(t, d.Register(intent.Refund, staticHandler("refund")))

	state := &domain.TurnState{Input: "invoice question", Intent: intent.Billing}
	events := collect(t, d.Dispatch(context.Background(), state))
	require.Equal(t, "fallback", events[len(events)-1].Text)
}

func TestDispatch_HandlerErrorYieldsApology(t *testing.T) {
	failing := HandlerFunc(func(_ context.Context, _ *domain.TurnState) error {
		return errors.New("backend down")
	})
	d, err := New(staticHandler("fallback"), WithLogger(quiet()))
	require.NoError(t, err)
	require.NoError(t, d.Register(intent.Billing, failing))

	state := &domain.TurnState{Input: "invoice", Intent: intent.Billing}
	events := collect(t, d.Dispatch(context.Background(), state))

	require.Len(t, events, 1)
	require.Equal(t, domain.EventOutput, events[0].Kind)
	require.Equal(t, apologyOutput, events[0].Text)
}

func TestDispatch_HandlerPanicIsContained(t *testing.T) {
	panicking := HandlerFunc(func(_ context.Context, _ *domain.TurnState) error {
		panic("agent bug")
	})
	d, err := New(staticHandler("fallback"), WithLogger(quiet()))
	require.NoError(t, err)
	require.NoError(t, d.Register(intent.Memory, panicking))

	state := &domain.TurnState{Input: "history please", Intent: intent.Memory}
	events := collect(t, d.Dispatch(context.Background(), state))

	require.Len(t, events, 1)
	require.Equal(t, apologyOutput, events[0].Text)
	require.Equal(t, apologyOutput, state.Output)
}

func TestDispatch_EmptyOutputBecomesApology(t *testing.T) {
	noop := HandlerFunc(func(_ context.Context, _ *domain.TurnState) error { return nil })
	d, err := New(noop, WithLogger(quiet()))
	require.NoError(t, err)

	state := &domain.TurnState{Input: "hi", Intent: intent.Other}
	events := collect(t, d.Dispatch(context.Background(), state))
	require.Equal(t, apologyOutput, events[0].Text)
}

func TestDispatch_HandlerTimeout(t *testing.T) {
	slow := HandlerFunc(func(ctx context.Context, state *domain.TurnState) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
			state.Output = "too late"
			return nil
		}
	})
	d, err := New(slow, WithLogger(quiet()), WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	state := &domain.TurnState{Input: "hi", Intent: intent.Other}
	start := time.Now()
	events := collect(t, d.Dispatch(context.Background(), state))
	require.Less(t, time.Since(start), 2*time.Second)
	require.Equal(t, apologyOutput, events[len(events)-1].Text)
}

func TestDispatch_CanceledContextClosesStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	blocked := HandlerFunc(func(ctx context.Context, _ *domain.TurnState) error {
		<-ctx.Done()
		return ctx.Err()
	})
	d, err := New(blocked, WithLogger(quiet()))
	require.NoError(t, err)

	state := &domain.TurnState{Input: "hi", Intent: intent.Other}
	events := d.Dispatch(ctx, state)

	done := make(chan struct{})
	go func() {
		for range events {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("event stream did not close after cancellation")
	}
}
