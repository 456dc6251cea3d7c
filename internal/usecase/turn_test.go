package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"support-agent/internal/agents"
	"support-agent/internal/domain"
	"support-agent/internal/intent"
	"support-agent/internal/router"
	"support-agent/internal/session"
)

// fakeState is an in-memory HistoryStore tracking saves.
type fakeState struct {
	history    []domain.ChatMessage
	historyErr error
	turns      int
	turnsErr   error

	savedConvID  string
	savedInput   string
	savedOutput  string
	savedIntent  string
	savedTurns   int
	saveErr      error
	saveHappened bool
}

func (f *fakeState) GetRecentMessages(_ context.Context, _ string, _ int) ([]domain.ChatMessage, error) {
	return f.history, f.historyErr
}

func (f *fakeState) GetConversationTurnCount(_ context.Context, _ string) (int, error) {
	return f.turns, f.turnsErr
}

func (f *fakeState) SaveCompletedTurn(_ context.Context, conversationID, userInput, assistantOutput, lastIntent string, turns int) error {
	f.saveHappened = true
	f.savedConvID = conversationID
	f.savedInput = userInput
	f.savedOutput = assistantOutput
	f.savedIntent = lastIntent
	f.savedTurns = turns
	return f.saveErr
}

// fakeClassifier returns canned labels per input text.
type fakeClassifier struct {
	labels map[string]intent.Label
}

func (f *fakeClassifier) Classify(_ context.Context, text string) intent.Label {
	if l, ok := f.labels[text]; ok {
		return l
	}
	return intent.Other
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, classifier IntentClassifier, state HistoryStore, opts ...ServiceOption) *Service {
	t.Helper()
	echo := router.HandlerFunc(func(_ context.Context, s *domain.TurnState) error {
		s.Output = "handled " + string(s.Intent)
		return nil
	})
	d, err := router.New(echo, router.WithLogger(quiet()))
	require.NoError(t, err)

	opts = append(opts, WithLogger(quiet()))
	svc, err := NewService(classifier, session.NewStore(), d, state, opts...)
	require.NoError(t, err)
	return svc
}

func TestNewService_Validation(t *testing.T) {
	d, err := router.New(agents.Live())
	require.NoError(t, err)
	store := session.NewStore()
	state := &fakeState{}
	classifier := &fakeClassifier{}

	_, err = NewService(nil, store, d, state)
	require.Error(t, err)
	_, err = NewService(classifier, nil, d, state)
	require.Error(t, err)
	_, err = NewService(classifier, store, nil, state)
	require.Error(t, err)
	_, err = NewService(classifier, store, d, nil)
	require.Error(t, err)
}

func TestAsk_EmptyMessage(t *testing.T) {
	svc := newTestService(t, &fakeClassifier{}, &fakeState{})
	_, err := svc.Ask(context.Background(), TurnInput{Message: "   "})

	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, ErrorInvalidInput, ucErr.Code)
	require.Equal(t, "empty_message", ucErr.Reason)
}

func TestAsk_MessageTooLong(t *testing.T) {
	svc := newTestService(t, &fakeClassifier{}, &fakeState{}, WithMaxInputLength(10))
	_, err := svc.Ask(context.Background(), TurnInput{Message: strings.Repeat("x", 11)})

	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, "message_too_long", ucErr.Reason)
}

func TestAsk_NewConversationGetsID(t *testing.T) {
	orig := newUUID
	newUUID = func() string { return "fixed-uuid" }
	defer func() { newUUID = orig }()

	state := &fakeState{}
	svc := newTestService(t, &fakeClassifier{labels: map[string]intent.Label{"hello": intent.Other}}, state)

	out, err := svc.Ask(context.Background(), TurnInput{Message: "hello"})
	require.NoError(t, err)
	require.Equal(t, "fixed-uuid", out.ConversationID)
	require.Equal(t, "fixed-uuid", state.savedConvID)
}

func TestAsk_FirstTurnEmitsRoutingMessage(t *testing.T) {
	svc := newTestService(t, &fakeClassifier{labels: map[string]intent.Label{
		"my invoice is wrong": intent.Billing,
	}}, &fakeState{})

	out, err := svc.Ask(context.Background(), TurnInput{Message: "my invoice is wrong", ConversationID: "conv-1"})
	require.NoError(t, err)
	require.Equal(t, intent.Billing, out.Intent)
	require.Equal(t, "Routing to **billing** agent...", out.RoutingMessage)
	require.Equal(t, "handled billing", out.Output)
}

func TestAsk_StickyIntentAbsorbsAmbiguousFollowUp(t *testing.T) {
	classifier := &fakeClassifier{labels: map[string]intent.Label{
		"my invoice is wrong": intent.Billing,
		// the bare follow-up value classifies to nothing on its own
		"INV-2209": intent.Other,
	}}
	svc := newTestService(t, classifier, &fakeState{})

	first, err := svc.Ask(context.Background(), TurnInput{Message: "my invoice is wrong", ConversationID: "conv-1"})
	require.NoError(t, err)
	require.Equal(t, intent.Billing, first.Intent)
	require.NotEmpty(t, first.RoutingMessage)

	second, err := svc.Ask(context.Background(), TurnInput{Message: "INV-2209", ConversationID: "conv-1"})
	require.NoError(t, err)
	require.Equal(t, intent.Billing, second.Intent, "ambiguous follow-up must stay with the active agent")
	require.Empty(t, second.RoutingMessage, "unchanged intent must not re-announce routing")
}

func TestAsk_NonStickyIntentDoesNotAbsorb(t *testing.T) {
	classifier := &fakeClassifier{labels: map[string]intent.Label{
		"where is my order": intent.CheckOrder,
		"hmm":               intent.Other,
	}}
	svc := newTestService(t, classifier, &fakeState{})

	_, err := svc.Ask(context.Background(), TurnInput{Message: "where is my order", ConversationID: "conv-1"})
	require.NoError(t, err)

	second, err := svc.Ask(context.Background(), TurnInput{Message: "hmm", ConversationID: "conv-1"})
	require.NoError(t, err)
	require.Equal(t, intent.Other, second.Intent)
	require.NotEmpty(t, second.RoutingMessage, "an intent change announces routing again")
}

func TestAsk_IntentChangeReannouncesRouting(t *testing.T) {
	classifier := &fakeClassifier{labels: map[string]intent.Label{
		"my invoice is wrong": intent.Billing,
		"actually refund it":  intent.Refund,
	}}
	svc := newTestService(t, classifier, &fakeState{})

	_, err := svc.Ask(context.Background(), TurnInput{Message: "my invoice is wrong", ConversationID: "conv-1"})
	require.NoError(t, err)

	second, err := svc.Ask(context.Background(), TurnInput{Message: "actually refund it", ConversationID: "conv-1"})
	require.NoError(t, err)
	require.Equal(t, intent.Refund, second.Intent)
	require.Equal(t, "Routing to **refund** agent...", second.RoutingMessage)
}

func TestEvents_StreamOrder(t *testing.T) {
	svc := newTestService(t, &fakeClassifier{labels: map[string]intent.Label{
		"refund this": intent.Refund,
	}}, &fakeState{})

	events, state, err := svc.Events(context.Background(), TurnInput{Message: "refund this", ConversationID: "conv-1"})
	require.NoError(t, err)

	var got []domain.Event
	for ev := range events {
		got = append(got, ev)
	}
	require.Len(t, got, 2)
	require.Equal(t, domain.EventRouting, got[0].Kind)
	require.Equal(t, domain.EventOutput, got[1].Kind)
	require.Equal(t, state.Output, got[1].Text)
}

func TestAsk_PersistsCompletedTurn(t *testing.T) {
	state := &fakeState{turns: 2}
	classifier := &fakeClassifier{labels: map[string]intent.Label{
		"refund this": intent.Refund,
	}}
	svc := newTestService(t, classifier, state)

	out, err := svc.Ask(context.Background(), TurnInput{Message: "refund this", ConversationID: "conv-1"})
	require.NoError(t, err)

	require.True(t, state.saveHappened)
	require.Equal(t, "conv-1", state.savedConvID)
	require.Equal(t, "refund this", state.savedInput)
	require.Equal(t, out.Output, state.savedOutput)
	require.Equal(t, "refund", state.savedIntent)
	require.Equal(t, 3, state.savedTurns, "existing turn count plus the new turn")
}

func TestAsk_NewConversationSkipsTurnCountLookup(t *testing.T) {
	state := &fakeState{turnsErr: errors.New("must not be called")}
	svc := newTestService(t, &fakeClassifier{}, state)

	_, err := svc.Ask(context.Background(), TurnInput{Message: "hello"})
	require.NoError(t, err)
	require.True(t, state.saveHappened)
	require.Equal(t, 1, state.savedTurns)
}

func TestAsk_HistoryFailureDegrades(t *testing.T) {
	state := &fakeState{historyErr: errors.New("dynamo down")}
	svc := newTestService(t, &fakeClassifier{}, state)

	out, err := svc.Ask(context.Background(), TurnInput{Message: "hello", ConversationID: "conv-1"})
	require.NoError(t, err, "a history outage must not fail the turn")
	require.NotEmpty(t, out.Output)
}

func TestAsk_SaveFailureDoesNotFailTurn(t *testing.T) {
	state := &fakeState{saveErr: errors.New("dynamo down")}
	svc := newTestService(t, &fakeClassifier{}, state)

	out, err := svc.Ask(context.Background(), TurnInput{Message: "hello", ConversationID: "conv-1"})
	require.NoError(t, err)
	require.NotEmpty(t, out.Output)
}

func TestAsk_ContextDigestReachesAgent(t *testing.T) {
	state := &fakeState{history: []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "I ordered ORD-5005 last week"},
		{Role: domain.RoleAssistant, Content: "ORD-5005 ships tomorrow"},
	}}
	var seen domain.TurnState
	capture := router.HandlerFunc(func(_ context.Context, s *domain.TurnState) error {
		seen = *s
		s.Output = "ok"
		return nil
	})
	d, err := router.New(capture, router.WithLogger(quiet()))
	require.NoError(t, err)
	svc, err := NewService(&fakeClassifier{}, session.NewStore(), d, state, WithLogger(quiet()))
	require.NoError(t, err)

	_, err = svc.Ask(context.Background(), TurnInput{Message: "any news on order ORD-5005?", ConversationID: "conv-1"})
	require.NoError(t, err)

	require.Contains(t, seen.Memory.Entities.Orders, "ord-5005")
	require.NotEmpty(t, seen.Memory.Links)
	require.Contains(t, seen.Preface, "Context Summary")
	require.NotEmpty(t, seen.ContextRefs)
}

func TestAsk_CanceledContext(t *testing.T) {
	slow := router.HandlerFunc(func(ctx context.Context, s *domain.TurnState) error {
		<-ctx.Done()
		return ctx.Err()
	})
	d, err := router.New(slow, router.WithLogger(quiet()))
	require.NoError(t, err)
	svc, err := NewService(&fakeClassifier{}, session.NewStore(), d, &fakeState{}, WithLogger(quiet()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = svc.Ask(ctx, TurnInput{Message: "hello", ConversationID: "conv-1"})
	require.Error(t, err)
	var ucErr *Error
	require.ErrorAs(t, err, &ucErr)
	require.Equal(t, ErrorInternal, ucErr.Code)
}
