package connection

import "sync"

// RetryCounter counts connection attempts within one connection cycle.
type RetryCounter struct {
	mu        sync.Mutex
	attempts  int
	max       int
	exhausted bool
}

// NewRetryCounter creates a counter allowing maxAttempts attempts.
func NewRetryCounter(maxAttempts int) *RetryCounter {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryCounter{max: maxAttempts}
}

// Reset starts a fresh cycle with zero attempts.
func (c *RetryCounter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts = 0
	c.exhausted = false
}

// Increment records a failed attempt and returns the new count.
func (c *RetryCounter) Increment() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attempts++
	return c.attempts
}

// Attempts returns the number of failed attempts in the current cycle.
func (c *RetryCounter) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Max returns the attempt budget.
func (c *RetryCounter) Max() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.max
}

// Exhaust marks the budget as spent so that no further attempt is made.
func (c *RetryCounter) Exhaust() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exhausted = true
}

// Exhausted reports whether no further attempt may be made.
func (c *RetryCounter) Exhausted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exhausted || c.attempts >= c.max
}
