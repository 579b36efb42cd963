// Package testutil provides an in-process stand-in for the external
// recognizer and a fake process handle for tests.
package testutil

import (
	"bufio"
	"net"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// Recognizer is a TCP server speaking the recognizer's line protocol.
// It keeps a gesture list and answers commands the way the real process does.
type Recognizer struct {
	t  testing.TB
	ln net.Listener

	mu        sync.Mutex
	conns     []net.Conn
	lines     []string
	gestures  []string
	recording string
	silent    bool
	accepted  chan struct{}
	received  chan struct{}
	closed    atomic.Bool
	wg        sync.WaitGroup
}

// NewRecognizer starts a Recognizer on a random loopback port that knows gestures.
// It is closed when the test ends.
func NewRecognizer(t testing.TB, gestures ...string) *Recognizer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	r := &Recognizer{
		t:        t,
		ln:       ln,
		gestures: append([]string(nil), gestures...),
		accepted: make(chan struct{}, 16),
		received: make(chan struct{}, 1),
	}
	r.wg.Add(1)
	go r.acceptLoop()
	t.Cleanup(r.Close)
	return r
}

// Port returns the listening port.
func (r *Recognizer) Port() int {
	return r.ln.Addr().(*net.TCPAddr).Port
}

// Addr returns the listening address.
func (r *Recognizer) Addr() string {
	return r.ln.Addr().String()
}

// SetSilent stops the Recognizer from answering commands.
func (r *Recognizer) SetSilent(silent bool) {
	r.mu.Lock()
	r.silent = silent
	r.mu.Unlock()
}

// Lines returns every line received so far.
func (r *Recognizer) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

// Gestures returns the Recognizer's current gesture list.
func (r *Recognizer) Gestures() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.gestures...)
}

// WaitAccepted waits for a client connection.
func (r *Recognizer) WaitAccepted(timeout time.Duration) bool {
	select {
	case <-r.accepted:
		return true
	case <-time.After(timeout):
		return false
	}
}

// WaitForLine waits until line has been received.
func (r *Recognizer) WaitForLine(line string, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if slices.Contains(r.Lines(), line) {
			return true
		}
		select {
		case <-r.received:
		case <-deadline:
			return slices.Contains(r.Lines(), line)
		}
	}
}

// Emit writes line to every connected client.
func (r *Recognizer) Emit(line string) {
	r.mu.Lock()
	conns := append([]net.Conn(nil), r.conns...)
	r.mu.Unlock()

	for _, conn := range conns {
		if _, err := conn.Write([]byte(line + "\n")); err != nil {
			r.t.Logf("recognizer: write %q: %v", line, err)
		}
	}
}

// DropConnections closes every client connection without stopping the listener.
func (r *Recognizer) DropConnections() {
	r.mu.Lock()
	conns := r.conns
	r.conns = nil
	r.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}

// Close stops the listener and closes all connections.
func (r *Recognizer) Close() {
	if r.closed.Swap(true) {
		return
	}
	r.ln.Close()
	r.DropConnections()
	r.wg.Wait()
}

func (r *Recognizer) acceptLoop() {
	defer r.wg.Done()
	for {
		conn, err := r.ln.Accept()
		if err != nil {
			return
		}

		r.mu.Lock()
		r.conns = append(r.conns, conn)
		r.mu.Unlock()

		select {
		case r.accepted <- struct{}{}:
		default:
		}

		r.wg.Add(1)
		go r.serve(conn)
	}
}

func (r *Recognizer) serve(conn net.Conn) {
	defer r.wg.Done()
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		r.mu.Lock()
		r.lines = append(r.lines, line)
		reply := r.replyLocked(line)
		r.mu.Unlock()

		select {
		case r.received <- struct{}{}:
		default:
		}

		if reply != "" {
			if _, err := conn.Write([]byte(reply + "\n")); err != nil {
				return
			}
		}
	}
}

// replyLocked applies a command and returns the answer. r.mu must be held.
func (r *Recognizer) replyLocked(line string) string {
	if r.silent {
		return ""
	}

	switch {
	case line == "GET_GESTURES":
		return "GESTURES_LIST:" + strings.Join(r.gestures, ",")
	case line == "CALIBRATE:START":
		return "CALIBRATION_COMPLETE"
	case line == "STOP_CALIBRATE":
		return ""
	case strings.HasPrefix(line, "RECORD:"):
		name := strings.TrimPrefix(line, "RECORD:")
		if name == "" {
			return "RECORD_ERROR:missing gesture name"
		}
		r.recording = name
		if !slices.Contains(r.gestures, name) {
			r.gestures = append(r.gestures, name)
		}
		return "RECORD_SUCCESS:" + name
	case line == "STOP_RECORD":
		r.recording = ""
		return ""
	case strings.HasPrefix(line, "DELETE_GESTURE:"):
		name := strings.TrimPrefix(line, "DELETE_GESTURE:")
		i := slices.Index(r.gestures, name)
		if i < 0 {
			return "DELETE_ERROR:gesture " + name + " not found"
		}
		r.gestures = slices.Delete(r.gestures, i, i+1)
		return "DELETE_SUCCESS:" + name
	default:
		return ""
	}
}
