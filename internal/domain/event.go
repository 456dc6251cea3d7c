package domain

// EventKind discriminates the progress events a dispatched turn emits.
type EventKind string

const (
	// EventRouting announces the agent a turn was routed to. Emitted at most
	// once per intent change.
	EventRouting EventKind = "routing"
	// EventOutput carries the final user-facing reply. Emitted exactly once
	// per turn.
	EventOutput EventKind = "output"
)

// Event is a single progress notification streamed to the caller.
type Event struct {
	Kind EventKind
	Text string
}
