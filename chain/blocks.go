package chain

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ruteri/proof-compliance-registry/interfaces"
)

// LocalBlockSource derives block numbers from wall-clock time:
//
//	block = floor((now - genesis) / blockTime)
//
// With a fixed genesis the numbering survives restarts.
type LocalBlockSource struct {
	genesis   time.Time
	blockTime time.Duration
	now       func() time.Time
}

// NewLocalBlockSource creates a clock-driven block source.
func NewLocalBlockSource(genesis time.Time, blockTime time.Duration) *LocalBlockSource {
	if blockTime <= 0 {
		blockTime = time.Second
	}
	return &LocalBlockSource{genesis: genesis, blockTime: blockTime, now: time.Now}
}

// WithClock replaces the time source, used in tests.
func (s *LocalBlockSource) WithClock(now func() time.Time) *LocalBlockSource {
	s.now = now
	return s
}

func (s *LocalBlockSource) Next(ctx context.Context, current interfaces.BlockNumber) (interfaces.BlockNumber, error) {
	elapsed := s.now().Sub(s.genesis)
	if elapsed < 0 {
		return current, nil
	}
	block := interfaces.BlockNumber(elapsed / s.blockTime)
	if block < current {
		return current, nil
	}
	return block, nil
}

func (s *LocalBlockSource) Name() string {
	return fmt.Sprintf("local-%s", s.blockTime)
}

// HeadReader is the part of an Ethereum client the block source needs.
type HeadReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// EthereumBlockSource anchors block numbers to the head of an Ethereum chain. The head is
// cached for pollInterval so bursts of calls share one RPC round-trip.
type EthereumBlockSource struct {
	client       HeadReader
	closer       func()
	pollInterval time.Duration
	log          *slog.Logger
	now          func() time.Time

	mu        sync.Mutex
	head      uint64
	fetchedAt time.Time
}

// DialEthereumBlockSource connects to an Ethereum JSON-RPC endpoint.
func DialEthereumBlockSource(ctx context.Context, rpcURL string, pollInterval time.Duration, log *slog.Logger) (*EthereumBlockSource, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ethereum rpc: %w", err)
	}
	src := NewEthereumBlockSource(client, pollInterval, log)
	src.closer = client.Close
	return src, nil
}

// NewEthereumBlockSource wraps an existing client.
func NewEthereumBlockSource(client HeadReader, pollInterval time.Duration, log *slog.Logger) *EthereumBlockSource {
	if log == nil {
		log = slog.Default()
	}
	return &EthereumBlockSource{
		client:       client,
		pollInterval: pollInterval,
		log:          log,
		now:          time.Now,
	}
}

func (s *EthereumBlockSource) Next(ctx context.Context, current interfaces.BlockNumber) (interfaces.BlockNumber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fetchedAt.IsZero() || s.now().Sub(s.fetchedAt) >= s.pollInterval {
		head, err := s.client.BlockNumber(ctx)
		if err != nil {
			if s.fetchedAt.IsZero() {
				return current, fmt.Errorf("failed to read chain head: %w", err)
			}
			// Keep serving the last known head while the node is unreachable.
			s.log.Warn("Failed to refresh chain head", "err", err, slog.Uint64("head", s.head))
		} else {
			if head < s.head {
				s.log.Warn("Chain head went backwards, keeping previous head",
					slog.Uint64("previous", s.head),
					slog.Uint64("reported", head))
			} else {
				s.head = head
			}
			s.fetchedAt = s.now()
		}
	}

	if interfaces.BlockNumber(s.head) < current {
		return current, nil
	}
	return interfaces.BlockNumber(s.head), nil
}

func (s *EthereumBlockSource) Name() string { return "ethereum" }

// Close releases the RPC connection if the source dialed it.
func (s *EthereumBlockSource) Close() {
	if s.closer != nil {
		s.closer()
	}
}
