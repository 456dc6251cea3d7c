package agents

import (
	"context"

	"support-agent/internal/domain"
	"support-agent/internal/router"
)

// Live returns the live-agent escalation handler. Actual handoff happens
// outside this module; this agent only acknowledges the request.
func Live() router.Handler {
	return router.HandlerFunc(func(_ context.Context, state *domain.TurnState) error {
		state.Output = "Connecting you with a live agent now. Please hold on for a moment."
		return nil
	})
}
