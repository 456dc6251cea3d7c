package domain

import "support-agent/internal/intent"

// Entities holds the structured values extracted from free text, one ordered
// list per kind. Absent kinds are empty lists, never an error.
type Entities struct {
	Orders    []string
	Payments  []string
	Emails    []string
	Dates     []string
	Addresses []string
}

// Empty reports whether no entity of any kind was extracted.
func (e Entities) Empty() bool {
	return len(e.Orders) == 0 && len(e.Payments) == 0 && len(e.Emails) == 0 &&
		len(e.Dates) == 0 && len(e.Addresses) == 0
}

// Memory is the compact cross-message context attached to a turn: the union
// of entities seen in the trailing window plus the window indices of the
// messages most relevant to the newest one.
type Memory struct {
	Entities Entities
	Links    []int
}

// TurnState is the unit of work passed through the pipeline: one user input
// plus everything classification, memory indexing, and the agent populate
// while producing one output.
type TurnState struct {
	Input          string
	ConversationID string
	Identity       string
	Intent         intent.Label
	Reasoning      string
	ToolCalls      []string
	ToolResults    []string
	Output         string
	RoutingMessage string
	ContextSummary string
	ContextRefs    []string
	Memory         Memory
	Preface        string
}

// RecordToolCall appends a tool invocation to the turn's action log.
func (s *TurnState) RecordToolCall(call string) {
	s.ToolCalls = append(s.ToolCalls, call)
}

// RecordToolResult appends the outcome of the most recent tool call.
func (s *TurnState) RecordToolResult(result string) {
	s.ToolResults = append(s.ToolResults, result)
}
