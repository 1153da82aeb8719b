// Package chain is the host execution environment for the registry.
//
// The host owns everything the registry treats as external: it numbers blocks, applies
// calls one at a time in submission order, and publishes the events of successful calls.
//
//	blocks := chain.NewLocalBlockSource(genesis, 6*time.Second)
//	exec := chain.NewExecutor(reg, blocks, sink, chain.ExecutorOpts{Log: logger})
//	go exec.Run(ctx)
//
//	receipt, err := exec.Submit(ctx, chain.Call{Kind: chain.CallCreate, Caller: alice, Proof: proof})
//
// Block numbers handed to calls never decrease, even if the block source goes backwards.
// Events are buffered per call and flushed to the sink only when the call returns
// without error, so a failed call is never observable.
package chain
