// Package lifecycle coordinates the recognizer process, the connection to it
// and the message relay, and reports what happens as typed events.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/connection"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/process"
	"github.com/ayusman/mudra/internal/protocol"
	"github.com/ayusman/mudra/internal/relay"
)

var (
	// ErrInvalidState is returned when an operation is not allowed in the current state.
	ErrInvalidState = errors.New("invalid lifecycle state")
	// ErrNotConnected is returned by commands issued without a connection.
	ErrNotConnected = errors.New("not connected to recognizer")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("coordinator closed")
	// ErrProcessExited is reported when the recognizer exits on its own.
	ErrProcessExited = errors.New("recognizer process exited")
)

// Process is a running recognizer.
type Process interface {
	PID() int
	StreamOutput(onLine func(string))
	Done() <-chan struct{}
	Stop(timeout time.Duration) error
}

// Launcher starts the recognizer.
type Launcher interface {
	Launch(ctx context.Context) (Process, error)
}

// LauncherFunc adapts a function to a Launcher.
type LauncherFunc func(ctx context.Context) (Process, error)

// Launch calls f.
func (f LauncherFunc) Launch(ctx context.Context) (Process, error) { return f(ctx) }

// SupervisorLauncher launches executable with script through s.
func SupervisorLauncher(s *process.Supervisor, executable, script string) Launcher {
	return LauncherFunc(func(ctx context.Context) (Process, error) {
		h, err := s.Start(ctx, executable, script)
		if err != nil {
			return nil, err
		}
		return h, nil
	})
}

// Connector opens the socket to the recognizer.
type Connector interface {
	Connect(ctx context.Context, host string, port int, counter *connection.RetryCounter) (*connection.Socket, error)
}

// Config holds Coordinator settings.
type Config struct {
	Host        string
	Port        int
	MaxAttempts int
	StopTimeout time.Duration
}

// Status is a point-in-time view of the Coordinator.
type Status struct {
	State           State            `json:"state"`
	ConnectionState connection.State `json:"-"`
	Connection      string           `json:"connection"`
	SessionID       string           `json:"session_id,omitempty"`
	PID             int              `json:"pid,omitempty"`
	Attempts        int              `json:"attempts"`
	MaxAttempts     int              `json:"max_attempts"`
	LastError       string           `json:"last_error,omitempty"`
}

// Coordinator owns one recognizer session at a time: it starts the process,
// connects to it, relays messages and tears everything down in reverse order.
type Coordinator struct {
	config    Config
	launcher  Launcher
	connector Connector
	logger    *zap.Logger
	recLogger *zap.Logger
	metrics   *metrics.Metrics

	// pool runs connection cycles one at a time.
	pool   *workerpool.WorkerPool
	events *broker

	// teardownMu serializes manual stops and failure teardowns.
	teardownMu sync.Mutex

	mu        sync.Mutex
	state     State
	connState connection.State
	gen       uint64
	closed    bool
	cancel    context.CancelFunc
	counter   *connection.RetryCounter
	proc      Process
	socket    *connection.Socket
	relay     *relay.Relay
	loopDone  chan struct{}
	sessionID string
	lastErr   error
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// New creates an idle Coordinator.
func New(config Config, launcher Launcher, connector Connector, opts ...Option) *Coordinator {
	if config.Host == "" {
		config.Host = "localhost"
	}
	if config.Port == 0 {
		config.Port = 5000
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = connection.DefaultMaxAttempts
	}
	if config.StopTimeout <= 0 {
		config.StopTimeout = process.DefaultStopTimeout
	}

	c := &Coordinator{
		config:    config,
		launcher:  launcher,
		connector: connector,
		logger:    zap.NewNop(),
		pool:      workerpool.New(1),
		events:    newBroker(),
		state:     StateIdle,
		connState: connection.StateDisconnected,
		counter:   connection.NewRetryCounter(config.MaxAttempts),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.recLogger = c.logger.Named("recognizer")
	c.logger = c.logger.Named("lifecycle")
	c.metrics.SetState(StateIdle.String(), stateNames())
	return c
}

// Subscribe returns a channel receiving every event in order, and a function
// that cancels the subscription. The channel is closed by Close.
func (c *Coordinator) Subscribe() (<-chan Event, func()) {
	return c.events.subscribe()
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ConnectionState returns the current connection state.
func (c *Coordinator) ConnectionState() connection.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connState
}

// Status returns a snapshot of the Coordinator.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Status{
		State:           c.state,
		ConnectionState: c.connState,
		Connection:      c.connState.String(),
		SessionID:       c.sessionID,
		Attempts:        c.counter.Attempts(),
		MaxAttempts:     c.config.MaxAttempts,
	}
	if c.proc != nil {
		st.PID = c.proc.PID()
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	return st
}

// Start begins a connection cycle. It is only valid from Idle and returns
// without waiting; the outcome is reported through events.
func (c *Coordinator) Start() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: cannot start while %s", ErrInvalidState, state)
	}

	c.gen++
	gen := c.gen
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	counter := connection.NewRetryCounter(c.config.MaxAttempts)
	c.counter = counter
	c.sessionID = uuid.NewString()
	c.lastErr = nil
	c.connState = connection.StateConnecting
	c.setStateLocked(StateStarting)
	sessionID := c.sessionID
	c.mu.Unlock()

	c.logger.Info("Starting recognition",
		zap.String("session_id", sessionID),
		zap.String("host", c.config.Host),
		zap.Int("port", c.config.Port))

	c.pool.Submit(func() {
		c.runCycle(ctx, gen, counter)
	})
	return nil
}

// runCycle launches the process and connects to it. It runs on the worker pool.
func (c *Coordinator) runCycle(ctx context.Context, gen uint64, counter *connection.RetryCounter) {
	proc, err := c.launcher.Launch(ctx)
	c.metrics.ProcessStarted(err)
	if err != nil {
		c.failStart(gen, err)
		return
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		c.logger.Debug("Start cancelled during launch, stopping process")
		_ = proc.Stop(c.config.StopTimeout)
		return
	}
	c.proc = proc
	c.mu.Unlock()

	proc.StreamOutput(func(line string) {
		c.recLogger.Info(line)
		if c.isCurrent(gen) {
			c.emit(Event{Type: EventProcessOutput, Message: line})
		}
	})

	// Stop dialing as soon as the process dies.
	connectCtx, cancelConnect := context.WithCancel(ctx)
	defer cancelConnect()
	go func() {
		select {
		case <-proc.Done():
			cancelConnect()
		case <-connectCtx.Done():
		}
	}()

	sock, err := c.connector.Connect(connectCtx, c.config.Host, c.config.Port, counter)
	if err != nil {
		if ctx.Err() == nil && connectCtx.Err() != nil {
			err = fmt.Errorf("%w before accepting connections", ErrProcessExited)
		}
		if !c.isCurrent(gen) || ctx.Err() != nil {
			c.logger.Debug("Connection cycle abandoned", zap.Error(err))
			return
		}

		c.mu.Lock()
		owned := c.gen == gen && c.proc == proc
		if owned {
			c.proc = nil
		}
		c.mu.Unlock()
		if owned {
			_ = proc.Stop(c.config.StopTimeout)
		}
		c.failStart(gen, err)
		return
	}

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		sock.Close()
		return
	}
	rel := relay.New(sock, c.logger)
	rel.OnUnrecognized = func(string) { c.metrics.UnrecognizedMessage() }
	loopDone := make(chan struct{})
	c.socket = sock
	c.relay = rel
	c.loopDone = loopDone
	c.connState = connection.StateConnected
	c.setStateLocked(StateConnected)
	c.mu.Unlock()

	c.logger.Info("Recognition connected", zap.String("addr", sock.RemoteAddr().String()))
	c.emit(Event{Type: EventConnected})

	go c.receive(ctx, gen, rel, loopDone)
	go c.watchProcess(ctx, gen, proc)

	if err := c.RequestGestures(); err != nil {
		c.logger.Warn("Failed to request gesture list", zap.Error(err))
	}
}

// failStart returns a failed cycle to Idle and reports err.
func (c *Coordinator) failStart(gen uint64, err error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.lastErr = err
	if errors.Is(err, connection.ErrConnectionExhausted) {
		c.connState = connection.StateFailed
	} else {
		c.connState = connection.StateDisconnected
	}
	c.setStateLocked(StateIdle)
	c.mu.Unlock()

	c.logger.Error("Failed to start recognition", zap.Error(err))
	c.emit(Event{Type: EventError, Err: err, Message: err.Error()})
}

func (c *Coordinator) receive(ctx context.Context, gen uint64, rel *relay.Relay, loopDone chan struct{}) {
	err := rel.ReceiveLoop(ctx, func(msg protocol.Message) {
		c.handleMessage(gen, msg)
	})
	close(loopDone)

	if err != nil {
		c.connectionLost(gen, err)
	}
}

func (c *Coordinator) watchProcess(ctx context.Context, gen uint64, proc Process) {
	select {
	case <-ctx.Done():
	case <-proc.Done():
		if ctx.Err() == nil {
			c.connectionLost(gen, ErrProcessExited)
		}
	}
}

// connectionLost tears down a connected session after a failure. The
// session goes straight from Connected to Idle.
func (c *Coordinator) connectionLost(gen uint64, cause error) {
	c.teardownMu.Lock()
	defer c.teardownMu.Unlock()

	c.mu.Lock()
	if c.gen != gen || c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	res := c.detachLocked()
	c.lastErr = cause
	c.mu.Unlock()

	c.logger.Error("Connection to recognizer lost, shutting down", zap.Error(cause))
	c.metrics.ConnectionLost()
	c.release(res)

	c.mu.Lock()
	c.setStateLocked(StateIdle)
	c.mu.Unlock()

	c.emit(Event{Type: EventDisconnected, Err: cause, Message: cause.Error()})
}

// Stop tears down the current session from any state. Calling Stop while
// Idle only confirms the state. If another stop is already in progress, Stop
// returns without waiting for it.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.state == StateIdle || c.state == StateStopping {
		state := c.state
		c.mu.Unlock()
		c.logger.Debug("Recognition already stopped", zap.Stringer("state", state))
		return
	}
	c.mu.Unlock()

	c.teardownMu.Lock()
	defer c.teardownMu.Unlock()

	c.mu.Lock()
	if c.state == StateIdle || c.state == StateStopping {
		c.mu.Unlock()
		return
	}
	wasConnected := c.state == StateConnected
	c.setStateLocked(StateStopping)
	res := c.detachLocked()
	c.mu.Unlock()

	c.logger.Info("Stopping recognition")
	c.release(res)

	c.mu.Lock()
	c.setStateLocked(StateIdle)
	c.mu.Unlock()

	if wasConnected {
		c.emit(Event{Type: EventDisconnected})
	}
	c.logger.Info("Recognition stopped")
}

// Close stops the session and releases the worker pool and event broker.
func (c *Coordinator) Close() {
	c.Stop()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.pool.StopWait()
	c.events.close()
}

type resources struct {
	socket   *connection.Socket
	proc     Process
	loopDone chan struct{}
}

// detachLocked invalidates the running cycle and takes ownership of its
// resources. c.mu must be held.
func (c *Coordinator) detachLocked() resources {
	c.gen++
	c.counter.Exhaust()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	res := resources{
		socket:   c.socket,
		proc:     c.proc,
		loopDone: c.loopDone,
	}
	c.socket = nil
	c.relay = nil
	c.proc = nil
	c.loopDone = nil
	c.connState = connection.StateDisconnected
	return res
}

// release closes the socket, stops the process and waits for the receive loop.
func (c *Coordinator) release(res resources) {
	func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("Panic while closing connection", zap.Any("panic", r))
			}
		}()
		if res.socket != nil {
			if err := res.socket.Close(); err != nil {
				c.logger.Warn("Error closing connection", zap.Error(err))
			}
		}
	}()

	if res.proc != nil {
		if err := res.proc.Stop(c.config.StopTimeout); err != nil {
			c.logger.Warn("Error stopping recognizer process", zap.Error(err))
		}
	}

	if res.loopDone != nil {
		<-res.loopDone
	}
}

func (c *Coordinator) isCurrent(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == gen
}

// setStateLocked transitions to state and publishes the change. c.mu must be held.
func (c *Coordinator) setStateLocked(state State) {
	prev := c.state
	if prev == state {
		return
	}
	c.state = state
	c.metrics.SetState(state.String(), stateNames())
	c.events.publish(Event{
		Type:      EventStateChanged,
		SessionID: c.sessionID,
		State:     state,
		Previous:  prev,
	})
}

func (c *Coordinator) emit(ev Event) {
	c.mu.Lock()
	ev.SessionID = c.sessionID
	c.mu.Unlock()
	c.events.publish(ev)
}
