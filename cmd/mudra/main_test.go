package main

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/connection"
	"github.com/ayusman/mudra/internal/testutil"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigCommand(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, "config", "--port", "6001", "--host", "127.0.0.1", "--data-dir", dir, "--log-level", "debug")
	require.NoError(t, err)

	assert.Contains(t, out, "port: 6001")
	assert.Contains(t, out, "host: 127.0.0.1")
	assert.Contains(t, out, "data-dir: "+dir)
	assert.Contains(t, out, "level: debug")
	assert.Contains(t, out, "max-attempts: 5")
}

func TestConfigCommand_InvalidPortFromEnv(t *testing.T) {
	t.Setenv("MUDRA_PORT", "not-a-port")

	_, err := execute(t, "config", "--data-dir", t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidPort)
}

func TestSendCommand(t *testing.T) {
	rec := testutil.NewRecognizer(t, "fist", "palm")

	cfg := &config.Config{Host: "127.0.0.1", Port: rec.Port(), DialTimeout: time.Second}
	var out bytes.Buffer
	err := sendLine(context.Background(), cfg, "GET_GESTURES", 200*time.Millisecond, &out)
	require.NoError(t, err)

	assert.True(t, rec.WaitForLine("GET_GESTURES", time.Second))
	assert.Contains(t, out.String(), "gesture_list\tGESTURES_LIST:fist,palm")
}

func TestSendCommand_RecognizerHangsUp(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := bufio.NewReader(conn).ReadString('\n'); err != nil {
			return
		}
		conn.Write([]byte("DELETE_SUCCESS:wave\n"))
	}()

	cfg := &config.Config{
		Host:        "127.0.0.1",
		Port:        ln.Addr().(*net.TCPAddr).Port,
		DialTimeout: time.Second,
	}
	var out bytes.Buffer
	start := time.Now()
	err = sendLine(context.Background(), cfg, "DELETE_GESTURE:wave", 5*time.Second, &out)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 5*time.Second, "a hangup should end the wait early")
	assert.Equal(t, "delete_success\tDELETE_SUCCESS:wave\n", out.String())
}

func TestSendCommand_Unreachable(t *testing.T) {
	cfg := &config.Config{Host: "127.0.0.1", Port: 1, DialTimeout: 200 * time.Millisecond}
	err := sendLine(context.Background(), cfg, "GET_GESTURES", time.Second, &bytes.Buffer{})
	require.Error(t, err)
	assert.ErrorIs(t, err, connection.ErrConnectionExhausted)
}

func TestSendCommand_RequiresOneArgument(t *testing.T) {
	_, err := execute(t, "send")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "accepts 1 arg"), err.Error())
}

func TestDashboardURL(t *testing.T) {
	tests := []struct {
		listen string
		want   string
	}{
		{"", ""},
		{"127.0.0.1:8765", "http://127.0.0.1:8765/"},
		{":8765", "http://localhost:8765/"},
		{"0.0.0.0:9000", "http://localhost:9000/"},
		{"[::1]:8765", "http://[::1]:8765/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, dashboardURL(tt.listen), tt.listen)
	}
}

func TestWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, wait(ctx, make(chan error)))

	errCh := make(chan error, 1)
	errCh <- assert.AnError
	err := wait(context.Background(), errCh)
	assert.ErrorIs(t, err, assert.AnError)
}
