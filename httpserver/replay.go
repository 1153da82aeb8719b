package httpserver

import (
	"sync"
	"time"

	"github.com/ruteri/proof-compliance-registry/interfaces"
)

// pruneInterval limits how often expired nonces are swept.
const pruneInterval = 10 * time.Second

type nonceKey struct {
	caller interfaces.AccountID
	nonce  string
}

// replayGuard remembers the nonces of signed calls until they expire, so a captured
// request is accepted at most once by this process.
type replayGuard struct {
	mu        sync.Mutex
	seen      map[nonceKey]time.Time
	lastPrune time.Time
}

func newReplayGuard() *replayGuard {
	return &replayGuard{seen: make(map[nonceKey]time.Time)}
}

// claim records the nonce and reports whether it was unused.
func (g *replayGuard) claim(caller interfaces.AccountID, nonce string, expires, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if now.Sub(g.lastPrune) >= pruneInterval {
		for key, exp := range g.seen {
			if !exp.After(now) {
				delete(g.seen, key)
			}
		}
		g.lastPrune = now
	}

	key := nonceKey{caller: caller, nonce: nonce}
	if _, used := g.seen[key]; used {
		return false
	}
	g.seen[key] = expires
	return true
}

func (g *replayGuard) size() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}
