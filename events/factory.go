package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/ruteri/proof-compliance-registry/interfaces"
)

// NewSinkFromURI creates a sink from a location URI. See the package documentation for
// the supported schemes.
func NewSinkFromURI(ctx context.Context, uri string, log *slog.Logger) (interfaces.EventSink, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid sink URI %q: %w", uri, err)
	}
	query := u.Query()

	switch strings.ToLower(u.Scheme) {
	case "log":
		return NewLogSink(log), nil
	case "memory":
		return NewRecorder(), nil
	case "redis":
		cfg := RedisStreamConfig{
			Address: u.Host,
			Stream:  query.Get("stream"),
		}
		if u.User != nil {
			cfg.Password, _ = u.User.Password()
		}
		if db := strings.Trim(u.Path, "/"); db != "" {
			if cfg.DB, err = strconv.Atoi(db); err != nil {
				return nil, fmt.Errorf("invalid redis database %q", db)
			}
		}
		if maxLen := query.Get("maxlen"); maxLen != "" {
			if cfg.MaxLen, err = strconv.ParseInt(maxLen, 10, 64); err != nil {
				return nil, fmt.Errorf("invalid redis maxlen %q", maxLen)
			}
		}
		return NewRedisSink(ctx, cfg)
	case "amqp", "amqps":
		cfg := AMQPConfig{
			Exchange:   query.Get("exchange"),
			RoutingKey: query.Get("routing_key"),
			Durable:    query.Get("durable") == "true",
		}
		// Sink options are not broker URL parameters.
		stripped := *u
		stripped.RawQuery = ""
		cfg.URL = stripped.String()
		return NewAMQPSink(cfg)
	default:
		return nil, fmt.Errorf("unsupported sink scheme: %q", u.Scheme)
	}
}

// NewSinks creates every sink in uris. A single sink is returned as is, several are
// wrapped in a MultiSink. Already created sinks are closed if a later one fails.
func NewSinks(ctx context.Context, uris []string, log *slog.Logger) (interfaces.EventSink, error) {
	if len(uris) == 0 {
		return NewLogSink(log), nil
	}

	sinks := make([]interfaces.EventSink, 0, len(uris))
	for _, uri := range uris {
		sink, err := NewSinkFromURI(ctx, uri, log)
		if err != nil {
			if closeErr := closeSinks(sinks); closeErr != nil {
				log.Warn("Failed to close sinks after a build error", "err", closeErr)
				return nil, errors.Join(err, closeErr)
			}
			return nil, err
		}
		sinks = append(sinks, sink)
	}

	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return NewMultiSink(log, sinks...), nil
}

func closeSinks(sinks []interfaces.EventSink) error {
	var errs []error
	for _, sink := range sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing sink %s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}
