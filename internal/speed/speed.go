// Package speed maintains the playback-rate multiplier.
package speed

import (
	"fmt"
	"strings"
	"sync"
)

// DefaultMultipliers is the built-in rate cycle.
var DefaultMultipliers = []float64{1.0, 1.2, 1.5, 1.75, 2.0, 0.8}

// Controller cycles through a fixed ordered multiplier set. Primitives
// reset their rate to 1.0 on every source change, so the session
// controller reapplies Current after each episode load.
type Controller struct {
	mu          sync.Mutex
	multipliers []float64
	index       int
}

// New creates a controller over the given multiplier set. An empty set
// falls back to DefaultMultipliers.
func New(multipliers []float64) *Controller {
	if len(multipliers) == 0 {
		multipliers = DefaultMultipliers
	}
	return &Controller{multipliers: multipliers}
}

// Cycle advances to the next multiplier, wrapping, and returns it.
func (c *Controller) Cycle() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = (c.index + 1) % len(c.multipliers)
	return c.multipliers[c.index]
}

// Current returns the active multiplier.
func (c *Controller) Current() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.multipliers[c.index]
}

// Label returns a display label for the active multiplier, e.g. "1.5x".
func (c *Controller) Label() string {
	v := c.Current()
	s := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
	return s + "x"
}
