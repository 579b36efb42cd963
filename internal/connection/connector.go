package connection

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// Default timing of a connection cycle.
const (
	DefaultConnectDelay = 1 * time.Second
	DefaultDialTimeout  = 2 * time.Second
	DefaultMaxAttempts  = 5
)

var (
	// ErrConnectionExhausted is matched by errors returned when every attempt failed.
	ErrConnectionExhausted = errors.New("connection attempts exhausted")
	// ErrAborted is returned when the retry budget was exhausted from outside the loop.
	ErrAborted = errors.New("connection cycle aborted")
)

// ExhaustedError reports a connection cycle that ran out of attempts.
type ExhaustedError struct {
	Addr     string
	Attempts int
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("connect to %s: gave up after %d attempts: %v", e.Addr, e.Attempts, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }

// Is reports whether target is ErrConnectionExhausted.
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrConnectionExhausted
}

// Dialer opens network connections.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Config holds the timing of a connection cycle.
type Config struct {
	// ConnectDelay is waited before every attempt.
	ConnectDelay time.Duration
	// DialTimeout bounds a single attempt.
	DialTimeout time.Duration
}

// DefaultConfig returns a Config with the standard timing.
func DefaultConfig() Config {
	return Config{
		ConnectDelay: DefaultConnectDelay,
		DialTimeout:  DefaultDialTimeout,
	}
}

// Connector dials the recognizer with a constant delay between attempts.
type Connector struct {
	config Config
	dialer Dialer
	logger *zap.Logger

	// OnAttempt, if set, is called after every attempt with its 1-based
	// number and result.
	OnAttempt func(attempt int, err error)
}

// NewConnector creates a Connector. A nil dialer uses net.Dialer.
func NewConnector(config Config, dialer Dialer, logger *zap.Logger) *Connector {
	if dialer == nil {
		dialer = &net.Dialer{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = DefaultDialTimeout
	}
	if config.ConnectDelay < 0 {
		config.ConnectDelay = 0
	}
	return &Connector{
		config: config,
		dialer: dialer,
		logger: logger.Named("connection"),
	}
}

// Connect dials host:port until it succeeds, counter runs out, or ctx is done.
//
// Every attempt waits ConnectDelay first, then dials with DialTimeout. Each
// failure increments counter; once counter reaches its maximum an
// *ExhaustedError is returned. Exhausting counter from another goroutine
// aborts the cycle before its next attempt with ErrAborted.
func (c *Connector) Connect(ctx context.Context, host string, port int, counter *RetryCounter) (*Socket, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	var lastErr error

	for {
		if counter.Exhausted() {
			if lastErr == nil {
				return nil, ErrAborted
			}
			return nil, &ExhaustedError{Addr: addr, Attempts: counter.Attempts(), LastErr: lastErr}
		}

		if err := sleep(ctx, c.config.ConnectDelay); err != nil {
			return nil, err
		}
		if counter.Exhausted() {
			return nil, ErrAborted
		}

		attempt := counter.Attempts() + 1
		c.logger.Debug("Connecting to recognizer",
			zap.String("addr", addr),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", counter.Max()))

		conn, err := c.dial(ctx, addr)
		if c.OnAttempt != nil {
			c.OnAttempt(attempt, err)
		}

		if err == nil {
			if counter.Exhausted() {
				conn.Close()
				return nil, ErrAborted
			}
			counter.Reset()
			c.logger.Info("Connected to recognizer", zap.String("addr", addr), zap.Int("attempt", attempt))
			return NewSocket(conn), nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		lastErr = err
		n := counter.Increment()
		c.logger.Warn("Connection attempt failed",
			zap.String("addr", addr),
			zap.Int("attempt", n),
			zap.Int("max_attempts", counter.Max()),
			zap.Error(err))

		if n >= counter.Max() {
			return nil, &ExhaustedError{Addr: addr, Attempts: n, LastErr: lastErr}
		}
	}
}

func (c *Connector) dial(ctx context.Context, addr string) (net.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.config.DialTimeout)
	defer cancel()
	return c.dialer.DialContext(dialCtx, "tcp", addr)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
