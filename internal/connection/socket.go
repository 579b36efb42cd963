package connection

import (
	"bufio"
	"net"
	"sync"
)

// Socket owns an open connection together with its buffered read and write
// streams. All three are released together by Close.
type Socket struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer

	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}
}

// NewSocket wraps conn.
func NewSocket(conn net.Conn) *Socket {
	return &Socket{
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
		closed: make(chan struct{}),
	}
}

// Reader returns the buffered read stream.
func (s *Socket) Reader() *bufio.Reader { return s.reader }

// Writer returns the buffered write stream.
func (s *Socket) Writer() *bufio.Writer { return s.writer }

// RemoteAddr returns the address of the recognizer.
func (s *Socket) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

// Closed is closed once Close has been called.
func (s *Socket) Closed() <-chan struct{} { return s.closed }

// Close releases the connection. Only the first call closes it.
func (s *Socket) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
