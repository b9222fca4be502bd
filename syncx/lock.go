package syncx

import (
	"sync"
)

// Gate is a mutex that can be switched off.
// A disabled gate makes Lock and Unlock no-ops.
type Gate struct {
	mu *sync.Mutex
}

func NewGate(enabled bool) Gate {
	if !enabled {
		return Gate{}
	}
	return Gate{mu: new(sync.Mutex)}
}

func (g Gate) Enabled() bool {
	return g.mu != nil
}

func (g Gate) Lock() {
	if g.mu != nil {
		g.mu.Lock()
	}
}

func (g Gate) Unlock() {
	if g.mu != nil {
		g.mu.Unlock()
	}
}
