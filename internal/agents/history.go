package agents

import (
	"context"
	"strings"

	"support-agent/internal/domain"
	"support-agent/internal/router"
)

// History returns the agent that answers "what were we talking about" style
// requests straight from the turn's context digest, without an LLM call.
func History() router.Handler {
	return router.HandlerFunc(func(_ context.Context, state *domain.TurnState) error {
		if state.ContextSummary == "" && len(state.ContextRefs) == 0 {
			state.Output = "I don't have any saved conversation history for this chat yet."
			return nil
		}

		var b strings.Builder
		b.WriteString("Here's what we've covered so far: ")
		b.WriteString(state.ContextSummary)
		for _, ref := range state.ContextRefs {
			b.WriteString("\n- ")
			b.WriteString(ref)
		}
		state.Output = b.String()
		return nil
	})
}
