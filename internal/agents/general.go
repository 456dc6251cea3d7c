// Package agents holds the built-in terminal agents. Specialist agents
// (orders, billing, returns, account changes) live outside this module and
// plug in through the router.Handler contract.
package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"support-agent/internal/domain"
)

const fallbackAnswer = "I don't have additional details to share yet."

// LLMChat is the chat collaborator the general agent answers with.
type LLMChat interface {
	Chat(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// General is the fallback agent: any turn whose intent has no registered
// specialist lands here and is answered by the LLM with the turn's context
// preface in view.
type General struct {
	llm LLMChat
}

func NewGeneral(llm LLMChat) (*General, error) {
	if llm == nil {
		return nil, errors.New("agents: llm chat client must not be nil")
	}
	return &General{llm: llm}, nil
}

func (g *General) Handle(ctx context.Context, state *domain.TurnState) error {
	state.RecordToolCall("llm:chat")
	answer, err := g.llm.Chat(ctx, buildGeneralMessages(state))
	if err != nil {
		state.RecordToolResult("error: " + err.Error())
		return fmt.Errorf("agents: general chat: %w", err)
	}
	state.RecordToolResult("ok")

	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = fallbackAnswer
	}
	state.Output = answer
	return nil
}
