package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/proof-compliance-registry/interfaces"
	"github.com/ruteri/proof-compliance-registry/registry"
	"go.uber.org/atomic"
)

var (
	// ErrExecutorStopped is returned for calls submitted to, or still queued in, a stopped executor.
	ErrExecutorStopped = errors.New("executor stopped")

	// ErrUnknownCall is returned for a call kind the executor cannot dispatch.
	ErrUnknownCall = errors.New("unknown call")
)

// CallKind selects the registry operation a call invokes.
type CallKind int

const (
	CallCreate CallKind = iota
	CallRevoke
)

func (k CallKind) String() string {
	switch k {
	case CallCreate:
		return "create"
	case CallRevoke:
		return "revoke"
	default:
		return fmt.Sprintf("call(%d)", int(k))
	}
}

// Call is a state-changing request by an authenticated caller.
type Call struct {
	Kind   CallKind
	Caller interfaces.AccountID
	Proof  interfaces.Proof
}

// Receipt describes where a committed call was applied and what it emitted.
type Receipt struct {
	BlockNumber interfaces.BlockNumber   `json:"block_number"`
	Index       uint64                   `json:"index"`
	Events      []interfaces.EventRecord `json:"events"`
}

// Observer receives execution metrics.
type Observer interface {
	ObserveCall(call, result string, duration time.Duration)
	SetCurrentBlock(block uint64)
	IncPublishFailure(sink string)
}

type nopObserver struct{}

func (nopObserver) ObserveCall(string, string, time.Duration) {}
func (nopObserver) SetCurrentBlock(uint64) {}
func (nopObserver) IncPublishFailure(string) {}

// ExecutorOpts holds optional executor dependencies.
type ExecutorOpts struct {
	Log         *slog.Logger
	Observer    Observer
	QueueSize   int
	SinkTimeout time.Duration
}

const (
	pendingQueued int32 = iota
	pendingRunning
	pendingCancelled
)

type pending struct {
	ctx    context.Context
	call   Call
	state  atomic.Int32
	result chan result
}

type result struct {
	receipt *Receipt
	err     error
}

// Executor applies registry calls one at a time, in submission order.
type Executor struct {
	registry *registry.Registry
	blocks   interfaces.BlockSource
	sink     interfaces.EventSink
	log      *slog.Logger
	observer Observer

	sinkTimeout time.Duration
	queue       chan *pending
	stopped     chan struct{}
	running     atomic.Bool

	// Owned by the Run goroutine.
	current    interfaces.BlockNumber
	callIndex  uint64
	eventIndex uint64

	head atomic.Uint64
}

// NewExecutor creates an executor. Run must be started before calls are submitted.
func NewExecutor(reg *registry.Registry, blocks interfaces.BlockSource, sink interfaces.EventSink, opts ExecutorOpts) *Executor {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.SinkTimeout <= 0 {
		opts.SinkTimeout = 5 * time.Second
	}

	return &Executor{
		registry:    reg,
		blocks:      blocks,
		sink:        sink,
		log:         opts.Log,
		observer:    opts.Observer,
		sinkTimeout: opts.SinkTimeout,
		queue:       make(chan *pending, opts.QueueSize),
		stopped:     make(chan struct{}),
	}
}

// Run applies submitted calls until ctx is cancelled. Calls still queued at that point
// fail with ErrExecutorStopped.
func (e *Executor) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("executor already running")
	}
	defer close(e.stopped)

	e.log.Info("Executor started", slog.String("block_source", e.blocks.Name()))

	for {
		select {
		case <-ctx.Done():
			e.drain()
			e.log.Info("Executor stopped", slog.Uint64("block", uint64(e.current)))
			return nil
		case p := <-e.queue:
			if !p.state.CompareAndSwap(pendingQueued, pendingRunning) {
				// Submitter gave up before the call started.
				continue
			}
			receipt, err := e.apply(p.ctx, p.call)
			p.result <- result{receipt: receipt, err: err}
		}
	}
}

func (e *Executor) drain() {
	for {
		select {
		case p := <-e.queue:
			if p.state.CompareAndSwap(pendingQueued, pendingCancelled) {
				p.result <- result{err: ErrExecutorStopped}
			}
		default:
			return
		}
	}
}

// Submit enqueues a call and waits for its receipt. If ctx is done before the call
// starts, the call is dropped and ctx.Err() returned; once started, it runs to completion
// and Submit waits for the result.
func (e *Executor) Submit(ctx context.Context, call Call) (*Receipt, error) {
	p := &pending{
		ctx:    context.WithoutCancel(ctx),
		call:   call,
		result: make(chan result, 1),
	}

	select {
	case e.queue <- p:
	case <-e.stopped:
		return nil, ErrExecutorStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-p.result:
		return res.receipt, res.err
	case <-ctx.Done():
		if p.state.CompareAndSwap(pendingQueued, pendingCancelled) {
			return nil, ctx.Err()
		}
		res := <-p.result
		return res.receipt, res.err
	case <-e.stopped:
		if p.state.CompareAndSwap(pendingQueued, pendingCancelled) {
			return nil, ErrExecutorStopped
		}
		res := <-p.result
		return res.receipt, res.err
	}
}

// Lookup reads a record. Reads are not ordered with respect to queued calls.
func (e *Executor) Lookup(ctx context.Context, proof interfaces.Proof) (interfaces.ProofRecord, error) {
	return e.registry.Lookup(ctx, proof)
}

// CurrentBlock returns the block number of the most recently applied call.
func (e *Executor) CurrentBlock() interfaces.BlockNumber {
	return interfaces.BlockNumber(e.head.Load())
}

func (e *Executor) apply(ctx context.Context, call Call) (*Receipt, error) {
	start := time.Now()

	block, err := e.nextBlock(ctx)
	if err != nil {
		e.observer.ObserveCall(call.Kind.String(), "block_source_error", time.Since(start))
		return nil, err
	}

	exec := NewCallContext(call.Caller, block)
	switch call.Kind {
	case CallCreate:
		err = e.registry.Create(ctx, exec, call.Proof)
	case CallRevoke:
		err = e.registry.Revoke(ctx, exec, call.Proof)
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownCall, call.Kind)
	}

	resultLabel := "ok"
	if err != nil {
		resultLabel = registry.ErrorCode(err)
		if resultLabel == "" {
			resultLabel = "error"
		}
	}
	e.observer.ObserveCall(call.Kind.String(), resultLabel, time.Since(start))

	if err != nil {
		e.log.Debug("Call failed",
			slog.String("call", call.Kind.String()),
			slog.String("caller", call.Caller.String()),
			slog.String("proof", call.Proof.String()),
			slog.Uint64("block", uint64(block)),
			"err", err)
		return nil, err
	}

	receipt := &Receipt{
		BlockNumber: block,
		Index:       e.callIndex,
		Events:      make([]interfaces.EventRecord, 0, len(exec.Events())),
	}
	e.callIndex++

	for _, ev := range exec.Events() {
		record := interfaces.NewEventRecord(ev, block, e.eventIndex)
		e.eventIndex++
		receipt.Events = append(receipt.Events, record)
		e.publish(ctx, record)
	}

	return receipt, nil
}

// nextBlock asks the block source for the next number and clamps it so it never
// decreases. Per-block counters reset when the block advances.
func (e *Executor) nextBlock(ctx context.Context) (interfaces.BlockNumber, error) {
	block, err := e.blocks.Next(ctx, e.current)
	if err != nil {
		return 0, fmt.Errorf("block source %s: %w", e.blocks.Name(), err)
	}
	if block < e.current {
		e.log.Warn("Block source went backwards",
			slog.Uint64("current", uint64(e.current)),
			slog.Uint64("reported", uint64(block)))
		block = e.current
	}
	if block > e.current {
		e.callIndex = 0
		e.eventIndex = 0
	}
	e.current = block
	e.head.Store(uint64(block))
	e.observer.SetCurrentBlock(uint64(block))
	return block, nil
}

func (e *Executor) publish(ctx context.Context, record interfaces.EventRecord) {
	if e.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, e.sinkTimeout)
	defer cancel()

	if err := e.sink.Publish(ctx, record); err != nil {
		e.observer.IncPublishFailure(e.sink.Name())
		e.log.Warn("Failed to publish event",
			slog.String("sink", e.sink.Name()),
			slog.String("event", record.Name),
			slog.Uint64("block", uint64(record.BlockNumber)),
			"err", err)
	}
}
