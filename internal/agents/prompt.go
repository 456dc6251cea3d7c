package agents

import (
	"fmt"
	"strings"

	"support-agent/internal/domain"
)

func buildGeneralMessages(state *domain.TurnState) []domain.ChatMessage {
	messages := []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: buildPolicyPrompt()},
		{Role: domain.RoleSystem, Content: buildTurnContextPrompt(state)},
	}
	return append(messages, domain.ChatMessage{
		Role:    domain.RoleUser,
		Content: state.Input,
	})
}

func buildPolicyPrompt() string {
	return strings.Join([]string{
		"Role:",
		"You are a customer support assistant.",
		"",
		"Behavior Rules:",
		behaviorRules(),
	}, "\n")
}

func buildTurnContextPrompt(state *domain.TurnState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Intent: %s\n", state.Intent)
	if state.Identity != "" {
		fmt.Fprintf(&b, "Customer: %s\n", state.Identity)
	}
	if state.Preface != "" {
		b.WriteString("\n")
		b.WriteString(state.Preface)
	}
	return strings.TrimSpace(b.String())
}

func behaviorRules() string {
	return strings.Join([]string{
		"1) Answer only the current customer question in this request.",
		"2) Answer politely, and only about our products, services, or company policies.",
		"3) Use the context summary and references when the question follows up on them.",
		"4) If a lookup needs the customer's email and it is missing, politely ask for it at the end.",
		"5) If you don't know, say you will connect the customer to a live agent.",
		"6) Never make up answers.",
	}, "\n")
}
