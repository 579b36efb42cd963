package relay

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/connection"
	"github.com/ayusman/mudra/internal/protocol"
)

func newPipeRelay(t *testing.T) (*Relay, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return New(connection.NewSocket(client), nil), server
}

func TestRelay_Send_AppendsNewline(t *testing.T) {
	r, server := newPipeRelay(t)

	got := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(server).ReadString('\n')
		got <- line
	}()

	require.NoError(t, r.Send("RECORD:thumb"))

	select {
	case line := <-got:
		assert.Equal(t, "RECORD:thumb\n", line)
	case <-time.After(2 * time.Second):
		t.Fatal("line not received")
	}
}

func TestRelay_Send_AfterCloseIsTransportError(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	sock := connection.NewSocket(client)
	r := New(sock, nil)
	require.NoError(t, sock.Close())

	err := r.Send("GET_GESTURES")
	var terr *TransportError
	require.True(t, errors.As(err, &terr), "err = %v", err)
	assert.Equal(t, "send", terr.Op)
}

func TestRelay_ReceiveLoop_DispatchesAndSkipsUnknown(t *testing.T) {
	r, server := newPipeRelay(t)

	go func() {
		server.Write([]byte("GESTURE:ok\nNOISE from recognizer\n\nGESTURES_LIST:a,b\n"))
		server.Close()
	}()

	var msgs []protocol.Message
	err := r.ReceiveLoop(context.Background(), func(m protocol.Message) {
		msgs = append(msgs, m)
	})

	// The peer went away while the loop was active.
	var terr *TransportError
	require.True(t, errors.As(err, &terr), "err = %v", err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	require.Len(t, msgs, 2)
	assert.Equal(t, protocol.KindGesture, msgs[0].Kind)
	assert.Equal(t, "ok", msgs[0].Name)
	assert.Equal(t, protocol.KindGestureList, msgs[1].Kind)
	assert.Equal(t, []string{"a", "b"}, msgs[1].Names)
}

func TestRelay_ReceiveLoop_CooperativeStopReturnsNil(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	sock := connection.NewSocket(client)
	r := New(sock, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- r.ReceiveLoop(ctx, func(protocol.Message) {
			t.Error("no message expected")
		})
	}()

	cancel()
	require.NoError(t, sock.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("receive loop did not exit")
	}
}
