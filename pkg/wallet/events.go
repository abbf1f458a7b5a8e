package wallet

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventType identifies a wallet lifecycle event.
type EventType string

const (
	EventTransactionSubmitted EventType = "transaction_submitted"
	EventTransactionApproved  EventType = "transaction_approved"
	EventTransactionExecuted  EventType = "transaction_executed"
	EventOwnerAdded           EventType = "owner_added"
	EventOwnerRemoved         EventType = "owner_removed"
	EventRequirementChanged   EventType = "requirement_changed"
)

// Event describes a state change on the wallet. Actor is the recovered
// signer for submissions, the approving/executing owner, or the governance
// authority. Index is only meaningful for transaction events.
type Event struct {
	ID    string         `json:"id"`
	Type  EventType      `json:"type"`
	Index uint64         `json:"index,omitempty"`
	Actor common.Address `json:"actor"`
	At    time.Time      `json:"at"`
}

// EventSink receives wallet events. Emit is called synchronously while the
// wallet lock is held, after the state change and any persistence write have
// succeeded; sinks must not call back into the wallet.
type EventSink interface {
	Emit(event Event)
}

func newEvent(typ EventType, index uint64, actor common.Address) Event {
	return Event{
		ID:    uuid.NewString(),
		Type:  typ,
		Index: index,
		Actor: actor,
		At:    time.Now().UTC(),
	}
}

// LogSink writes events to a structured logger. This is the default sink.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink that logs each event at info level.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Emit(event Event) {
	s.logger.Sugar().Infow("wallet event",
		"event_id", event.ID,
		"type", string(event.Type),
		"index", event.Index,
		"actor", event.Actor.Hex(),
	)
}

// MemorySink records events in memory for inspection in tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Emit(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

// Events returns a copy of all recorded events in emission order.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
