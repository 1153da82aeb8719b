package interfaces

import (
	"context"
	"encoding/json"
)

// Event names, as they appear in sink envelopes.
const (
	EventComplianceCreated = "ComplianceCreated"
	EventComplianceRevoked = "ComplianceRevoked"
)

// Event is a domain event emitted by a successful registry call.
type Event interface {
	EventName() string
	Account() AccountID
	ProofBytes() Proof
}

// ComplianceCreated is emitted when a proof has been registered. [who, proof]
type ComplianceCreated struct {
	Who   AccountID
	Proof Proof
}

func (e ComplianceCreated) EventName() string { return EventComplianceCreated }
func (e ComplianceCreated) Account() AccountID { return e.Who }
func (e ComplianceCreated) ProofBytes() Proof { return e.Proof }

// ComplianceRevoked is emitted when a proof is revoked by its owner. [who, proof]
type ComplianceRevoked struct {
	Who   AccountID
	Proof Proof
}

func (e ComplianceRevoked) EventName() string { return EventComplianceRevoked }
func (e ComplianceRevoked) Account() AccountID { return e.Who }
func (e ComplianceRevoked) ProofBytes() Proof { return e.Proof }

// EventRecord is the serialized form of an event handed to sinks.
type EventRecord struct {
	Name        string      `json:"name"`
	Who         AccountID   `json:"who"`
	Proof       Proof       `json:"proof"`
	BlockNumber BlockNumber `json:"block_number"`
	Index       uint64      `json:"index"`
}

// NewEventRecord wraps an event with the position it was emitted at.
func NewEventRecord(ev Event, block BlockNumber, index uint64) EventRecord {
	return EventRecord{
		Name:        ev.EventName(),
		Who:         ev.Account(),
		Proof:       ev.ProofBytes(),
		BlockNumber: block,
		Index:       index,
	}
}

// JSON returns the JSON encoding of the record.
func (r EventRecord) JSON() ([]byte, error) {
	return json.Marshal(r)
}

// ExecutionContext is what a registry call consumes from its host.
type ExecutionContext interface {
	// Caller is the verified identity of the account issuing the call.
	Caller() AccountID

	// BlockNumber is the sequence number assigned to the call.
	BlockNumber() BlockNumber

	// Emit records an event. Hosts publish emitted events only if the call succeeds.
	Emit(Event)
}

// EventSink receives events of successful calls in execution order.
type EventSink interface {
	// Publish delivers a record. Delivery is best-effort; callers log errors.
	Publish(ctx context.Context, record EventRecord) error

	// Name returns identifier for logging.
	Name() string

	// Close releases connections.
	Close() error
}

// BlockSource supplies block numbers to the host executor.
type BlockSource interface {
	// Next returns the block number for the next call. It must never return a value
	// lower than current.
	Next(ctx context.Context, current BlockNumber) (BlockNumber, error)

	// Name returns identifier for logging.
	Name() string
}
