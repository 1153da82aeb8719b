package events

import (
	"context"
	"log/slog"

	"github.com/ruteri/proof-compliance-registry/interfaces"
)

// LogSink writes every event to a structured logger at info level.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Publish(ctx context.Context, record interfaces.EventRecord) error {
	s.log.InfoContext(ctx, "Registry event",
		slog.String("event", record.Name),
		slog.String("who", record.Who.String()),
		slog.String("proof", record.Proof.String()),
		slog.Uint64("block_number", uint64(record.BlockNumber)),
		slog.Uint64("index", record.Index))
	return nil
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Close() error { return nil }
