package core

import "time"

// EventKind names an observable side effect of a successful operation.
type EventKind string

const (
	EventOwnershipTransferred EventKind = "ownership-transferred"
	EventProviderAdded        EventKind = "provider-added"
	EventProviderRemoved      EventKind = "provider-removed"
	EventCooldownUpdated      EventKind = "cooldown-updated"
	EventPaused               EventKind = "paused"
	EventUnpaused             EventKind = "unpaused"
	EventOracleRegistered     EventKind = "oracle-registered"
	EventBatchOpened          EventKind = "batch-opened"
	EventBatchClosed          EventKind = "batch-closed"
	EventGraphSubmitted       EventKind = "graph-submitted"
	EventDecryptionRequested  EventKind = "decryption-requested"
	EventSimilarityComputed   EventKind = "similarity-computed"
)

// Event is a notification emitted after an operation commits. Events are
// observable side effects only; the contract never reads them back.
type Event struct {
	Kind EventKind `json:"kind"`
	At   time.Time `json:"at"`

	Actor           string `json:"actor,omitempty"`
	Subject         string `json:"subject,omitempty"` // new owner, provider, user or oracle key
	BatchID         uint64 `json:"batch_id,omitempty"`
	RequestID       string `json:"request_id,omitempty"`
	Score           int64  `json:"score,omitempty"`
	CooldownSeconds int64  `json:"cooldown_seconds,omitempty"`
}

// Sink receives emitted events. Implementations must not block the caller
// for long; the contract holds its state lock while emitting.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Event)

// Emit implements Sink.
func (f SinkFunc) Emit(e Event) { f(e) }

// NopSink discards all events.
var NopSink Sink = SinkFunc(func(Event) {})
