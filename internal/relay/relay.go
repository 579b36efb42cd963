// Package relay moves newline-delimited messages between mudra and the
// recognizer over an established connection.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ayusman/mudra/internal/connection"
	"github.com/ayusman/mudra/internal/protocol"
)

// TransportError reports a read or write failure on an established connection.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Relay sends commands over a socket and dispatches the lines it receives.
type Relay struct {
	socket *connection.Socket
	logger *zap.Logger
	mu     sync.Mutex

	// OnUnrecognized, if set, is called with every line that fails to decode.
	OnUnrecognized func(line string)
}

// New creates a Relay over socket.
func New(socket *connection.Socket, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		socket: socket,
		logger: logger.Named("relay"),
	}
}

// Send writes line followed by a newline. No acknowledgement is awaited.
func (r *Relay) Send(line string) error {
	line = strings.TrimRight(line, "\r\n")

	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.socket.Closed():
		return &TransportError{Op: "send", Err: net.ErrClosed}
	default:
	}

	w := r.socket.Writer()
	if _, err := w.WriteString(line + "\n"); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	if err := w.Flush(); err != nil {
		return &TransportError{Op: "send", Err: err}
	}

	r.logger.Debug("Sent command", zap.String("line", line))
	return nil
}

// ReceiveLoop reads lines until ctx is done, the socket is closed, or a read fails.
//
// Each recognized line is passed to onMessage. Unrecognized lines are logged
// and skipped. A read failure or end of stream while the loop is still active
// returns a *TransportError; a cooperative stop returns nil. onMessage is not
// called after ctx is done.
func (r *Relay) ReceiveLoop(ctx context.Context, onMessage func(protocol.Message)) error {
	reader := r.socket.Reader()

	for {
		line, err := reader.ReadString('\n')

		if ctx.Err() != nil || r.isClosed() {
			return nil
		}

		if line != "" {
			r.dispatch(line, onMessage)
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				return &TransportError{Op: "receive", Err: io.ErrUnexpectedEOF}
			}
			return &TransportError{Op: "receive", Err: err}
		}
	}
}

func (r *Relay) dispatch(line string, onMessage func(protocol.Message)) {
	if strings.TrimSpace(line) == "" {
		return
	}

	msg, err := protocol.Parse(line)
	if err != nil {
		r.logger.Warn("Ignoring unrecognized message", zap.String("line", msg.Raw))
		if r.OnUnrecognized != nil {
			r.OnUnrecognized(msg.Raw)
		}
		return
	}

	onMessage(msg)
}

func (r *Relay) isClosed() bool {
	select {
	case <-r.socket.Closed():
		return true
	default:
		return false
	}
}
