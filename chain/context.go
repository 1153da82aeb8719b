package chain

import (
	"github.com/ruteri/proof-compliance-registry/interfaces"
)

// CallContext is the execution context of a single call. Emitted events are buffered
// until the executor decides whether the call committed.
type CallContext struct {
	caller interfaces.AccountID
	block  interfaces.BlockNumber
	events []interfaces.Event
}

// NewCallContext creates a context for one call by caller at block.
func NewCallContext(caller interfaces.AccountID, block interfaces.BlockNumber) *CallContext {
	return &CallContext{caller: caller, block: block}
}

func (c *CallContext) Caller() interfaces.AccountID { return c.caller }

func (c *CallContext) BlockNumber() interfaces.BlockNumber { return c.block }

func (c *CallContext) Emit(ev interfaces.Event) {
	c.events = append(c.events, ev)
}

// Events returns the events emitted so far.
func (c *CallContext) Events() []interfaces.Event {
	return c.events
}
