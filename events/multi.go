package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ruteri/proof-compliance-registry/interfaces"
)

// MultiSink fans every event out to all wrapped sinks. A failing sink does not prevent
// delivery to the others; failures are logged and returned joined.
type MultiSink struct {
	sinks []interfaces.EventSink
	log   *slog.Logger
}

func NewMultiSink(log *slog.Logger, sinks ...interfaces.EventSink) *MultiSink {
	return &MultiSink{sinks: sinks, log: log}
}

func (m *MultiSink) Publish(ctx context.Context, record interfaces.EventRecord) error {
	var errs []error
	for _, sink := range m.sinks {
		if err := sink.Publish(ctx, record); err != nil {
			m.log.Warn("Failed to publish event",
				slog.String("sink", sink.Name()),
				slog.String("event", record.Name),
				slog.Uint64("block_number", uint64(record.BlockNumber)),
				"err", err)
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) Name() string { return "multi" }

func (m *MultiSink) Close() error {
	var errs []error
	for _, sink := range m.sinks {
		errs = append(errs, sink.Close())
	}
	return errors.Join(errs...)
}
