package events

import (
	"context"
	"sync"

	"github.com/ruteri/proof-compliance-registry/interfaces"
)

// Recorder keeps published events in memory, in delivery order.
type Recorder struct {
	mu      sync.Mutex
	records []interfaces.EventRecord
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(ctx context.Context, record interfaces.EventRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []interfaces.EventRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]interfaces.EventRecord, len(r.records))
	copy(out, r.records)
	return out
}

// Reset drops all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
}

func (r *Recorder) Name() string { return "memory" }

func (r *Recorder) Close() error { return nil }
