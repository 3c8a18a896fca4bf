package session

import "sync/atomic"

// Stats is a snapshot of dispatch counters.
//
// Counters are only maintained for sessions created WithStats(true);
// otherwise every counter reads zero. Registered is always filled in.
type Stats struct {
	Entered     uint64 // calls seen by Enter
	Intercepted uint64 // Enter returned an Invoke call
	Identity    uint64 // Enter returned an Identity call
	GuardSkips  uint64 // Enter skipped a delegated original call
	Passthrough uint64 // Enter skipped for any other reason
	Delegations uint64 // OriginalCall.Invoke runs
	Registered  int    // instances currently registered
}

type counters struct {
	entered     atomic.Uint64
	intercepted atomic.Uint64
	identity    atomic.Uint64
	guardSkips  atomic.Uint64
	passthrough atomic.Uint64
	delegations atomic.Uint64
}

// record counts the outcome of one Enter.
func (c *counters) record(call Call) {
	c.entered.Add(1)
	switch call.kind {
	case CallInvoke:
		c.intercepted.Add(1)
	case CallIdentity:
		c.identity.Add(1)
	default:
		if call.reason == ReasonGuard {
			c.guardSkips.Add(1)
		} else {
			c.passthrough.Add(1)
		}
	}
}

func (c *counters) snapshot() Stats {
	return Stats{
		Entered:     c.entered.Load(),
		Intercepted: c.intercepted.Load(),
		Identity:    c.identity.Load(),
		GuardSkips:  c.guardSkips.Load(),
		Passthrough: c.passthrough.Load(),
		Delegations: c.delegations.Load(),
	}
}

func (c *counters) reset() {
	c.entered.Store(0)
	c.intercepted.Store(0)
	c.identity.Store(0)
	c.guardSkips.Store(0)
	c.passthrough.Store(0)
	c.delegations.Store(0)
}
