package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"support-agent/internal/domain"
	"support-agent/internal/intent"
	"support-agent/internal/memory"
	"support-agent/internal/session"
)

const (
	defaultMaxInput = 2000
	saveTimeout     = 5 * time.Second
)

// HistoryStore persists conversation turns and serves back recent history.
type HistoryStore interface {
	GetRecentMessages(ctx context.Context, conversationID string, limit int) ([]domain.ChatMessage, error)
	GetConversationTurnCount(ctx context.Context, conversationID string) (int, error)
	SaveCompletedTurn(ctx context.Context, conversationID, userInput, assistantOutput, lastIntent string, turns int) error
}

// IntentClassifier resolves free text to an intent label. It never fails;
// unclassifiable input comes back as intent.Other.
type IntentClassifier interface {
	Classify(ctx context.Context, text string) intent.Label
}

// TurnRouter hands a prepared turn to the matching agent and streams the
// resulting events.
type TurnRouter interface {
	Dispatch(ctx context.Context, state *domain.TurnState) <-chan domain.Event
}

// Service runs the full turn pipeline: validate, index memory, classify,
// route, and persist the completed turn.
type Service struct {
	classifier IntentClassifier
	sessions   *session.Store
	router     TurnRouter
	state      HistoryStore
	indexer    memory.Indexer
	maxInput   int
	log        *slog.Logger
}

type TurnInput struct {
	Message        string
	ConversationID string
	Identity       string
}

type TurnOutput struct {
	ConversationID string
	Intent         intent.Label
	RoutingMessage string
	Output         string
}

type ServiceOption func(*Service)

func WithMaxInputLength(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxInput = n
		}
	}
}

func WithIndexer(ix memory.Indexer) ServiceOption {
	return func(s *Service) { s.indexer = ix }
}

func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func NewService(classifier IntentClassifier, sessions *session.Store, router TurnRouter, state HistoryStore, opts ...ServiceOption) (*Service, error) {
	if classifier == nil {
		return nil, errors.New("usecase: classifier must not be nil")
	}
	if sessions == nil {
		return nil, errors.New("usecase: session store must not be nil")
	}
	if router == nil {
		return nil, errors.New("usecase: router must not be nil")
	}
	if state == nil {
		return nil, errors.New("usecase: history store must not be nil")
	}
	s := &Service{
		classifier: classifier,
		sessions:   sessions,
		router:     router,
		state:      state,
		indexer:    memory.DefaultIndexer(),
		maxInput:   defaultMaxInput,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Events runs one turn and streams its events. The returned channel carries
// at most one routing event followed by exactly one output event, then
// closes. Validation failures surface as an error before any work starts.
func (s *Service) Events(ctx context.Context, in TurnInput) (<-chan domain.Event, *domain.TurnState, error) {
	state, err := s.prepare(ctx, in)
	if err != nil {
		return nil, nil, err
	}

	isNew := strings.TrimSpace(in.ConversationID) == ""
	inner := s.router.Dispatch(ctx, state)
	out := make(chan domain.Event)
	go func() {
		defer close(out)
		for ev := range inner {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
		s.saveTurn(ctx, state, isNew)
	}()
	return out, state, nil
}

// Ask runs one turn to completion and returns the final output, discarding
// intermediate events.
func (s *Service) Ask(ctx context.Context, in TurnInput) (TurnOutput, error) {
	events, state, err := s.Events(ctx, in)
	if err != nil {
		return TurnOutput{}, err
	}
	for range events {
	}
	if err := ctx.Err(); err != nil {
		return TurnOutput{}, newError(ErrorInternal, "turn_cancelled", err)
	}
	return TurnOutput{
		ConversationID: state.ConversationID,
		Intent:         state.Intent,
		RoutingMessage: state.RoutingMessage,
		Output:         state.Output,
	}, nil
}

func (s *Service) prepare(ctx context.Context, in TurnInput) (*domain.TurnState, error) {
	input := strings.TrimSpace(in.Message)
	if input == "" {
		return nil, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if len(input) > s.maxInput {
		return nil, newError(ErrorInvalidInput, "message_too_long", nil)
	}

	convID := strings.TrimSpace(in.ConversationID)
	if convID == "" {
		convID = newUUID()
	}

	state := &domain.TurnState{
		Input:          input,
		ConversationID: convID,
		Identity:       strings.TrimSpace(in.Identity),
	}

	history := s.loadHistory(ctx, convID)
	digest := s.indexer.Build(append(history, domain.ChatMessage{
		Role:    domain.RoleUser,
		Content: input,
	}))
	state.ContextSummary = digest.Summary
	state.ContextRefs = digest.Refs
	state.Memory = digest.Memory
	state.Preface = digest.Preface()

	prev, hadPrev, resolved := s.sessions.Update(convID, func(prev intent.Label, ok bool) intent.Label {
		label := s.classifier.Classify(ctx, input)
		if label == intent.Other && ok && intent.Sticky(prev) {
			return prev
		}
		return label
	})
	state.Intent = resolved
	if !hadPrev || prev != resolved {
		state.RoutingMessage = fmt.Sprintf("Routing to **%s** agent...", resolved)
	}
	return state, nil
}

// loadHistory degrades to an empty context rather than failing the turn.
func (s *Service) loadHistory(ctx context.Context, conversationID string) []domain.ChatMessage {
	limit := s.indexer.Window
	if limit <= 0 {
		limit = memory.DefaultWindow
	}
	history, err := s.state.GetRecentMessages(ctx, conversationID, limit)
	if err != nil {
		s.log.Warn("history load failed, continuing without context",
			"conversation_id", conversationID, "error", err)
		return nil
	}
	return history
}

// saveTurn persists the completed exchange. Persistence runs detached from
// the caller's cancellation so a consumer that stops reading mid-stream does
// not lose the turn.
func (s *Service) saveTurn(ctx context.Context, state *domain.TurnState, isNew bool) {
	if strings.TrimSpace(state.Output) == "" {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()

	turns := 0
	if !isNew {
		count, err := s.state.GetConversationTurnCount(saveCtx, state.ConversationID)
		if err != nil {
			s.log.Warn("turn count load failed, assuming first turn",
				"conversation_id", state.ConversationID, "error", err)
		} else {
			turns = count
		}
	}
	if err := s.state.SaveCompletedTurn(saveCtx, state.ConversationID, state.Input, state.Output, string(state.Intent), turns+1); err != nil {
		s.log.Error("turn persistence failed",
			"conversation_id", state.ConversationID, "error", err)
	}
}

var newUUID = func() string {
	return uuid.NewString()
}
