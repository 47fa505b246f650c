package watch

import (
	"sync"
	"time"
)

// DefaultCooldown is the minimum gap between two notifications for the same rule and asset.
const DefaultCooldown = 60 * time.Second

type pairKey struct {
	ruleID string
	symbol string
}

// Cooldown tracks the last trigger per (rule, asset). It lives for the whole process
// and only forgets a rule when the rule is deleted.
type Cooldown struct {
	mu     sync.Mutex
	window time.Duration
	last   map[pairKey]time.Time
}

func NewCooldown(window time.Duration) *Cooldown {
	if window <= 0 {
		window = DefaultCooldown
	}
	return &Cooldown{window: window, last: make(map[pairKey]time.Time)}
}

// Allow reports whether the pair may fire at now, and records the trigger when it may.
func (c *Cooldown) Allow(ruleID, symbol string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := pairKey{ruleID, symbol}
	if last, ok := c.last[k]; ok && now.Sub(last) < c.window {
		return false
	}
	c.last[k] = now
	return true
}

// Forget drops every pair of ruleID.
func (c *Cooldown) Forget(ruleID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.last {
		if k.ruleID == ruleID {
			delete(c.last, k)
		}
	}
}

func (c *Cooldown) Window() time.Duration { return c.window }
