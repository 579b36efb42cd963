package process

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
)

// maxLineSize caps a single output line; longer lines are truncated.
const maxLineSize = 1024 * 1024

// Handle is a running recognizer process.
type Handle struct {
	cmd    *exec.Cmd
	output *os.File
	logger *zap.Logger

	done    chan struct{}
	exitErr error

	streamOnce sync.Once
	stopOnce   sync.Once
	stopErr    error
}

func newHandle(cmd *exec.Cmd, output *os.File, logger *zap.Logger) *Handle {
	h := &Handle{
		cmd:    cmd,
		output: output,
		logger: logger.With(zap.Int("pid", cmd.Process.Pid)),
		done:   make(chan struct{}),
	}
	go h.wait()
	return h
}

func (h *Handle) wait() {
	h.exitErr = h.cmd.Wait()
	close(h.done)
}

// PID returns the operating system process id.
func (h *Handle) PID() int {
	return h.cmd.Process.Pid
}

// Done is closed once the process has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Running reports whether the process has not exited yet.
func (h *Handle) Running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// ExitErr returns the error from waiting on the process. Only valid after Done is closed.
func (h *Handle) ExitErr() error {
	<-h.done
	return h.exitErr
}

// StreamOutput reads the merged output on its own goroutine and calls onLine
// for every line until the stream closes. Output written before the process
// exited is still delivered. Only the first call has an effect.
func (h *Handle) StreamOutput(onLine func(string)) {
	h.streamOnce.Do(func() {
		go func() {
			defer h.output.Close()

			if err := h.readLines(onLine); err != nil && !errors.Is(err, os.ErrClosed) {
				h.logger.Warn("Error reading recognizer output", zap.Error(err))
			}
		}()
	})
}

// readLines calls onLine for every line of output until EOF. Lines longer
// than maxLineSize are cut, and the rest of the line is read and dropped so
// the child never writes into a closed pipe.
func (h *Handle) readLines(onLine func(string)) error {
	r := bufio.NewReaderSize(h.output, 64*1024)
	var (
		line      []byte
		truncated bool
	)
	for {
		chunk, err := r.ReadSlice('\n')
		if room := maxLineSize - len(line); len(chunk) > room {
			line = append(line, chunk[:room]...)
			truncated = true
		} else {
			line = append(line, chunk...)
		}

		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if len(line) > 0 {
			if truncated {
				h.logger.Warn("Recognizer output line truncated", zap.Int("limit", maxLineSize))
			}
			onLine(string(bytes.TrimRight(line, "\r\n")))
		}
		line, truncated = line[:0], false

		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
	}
}

// Stop asks the process to terminate and waits up to timeout for it to exit,
// killing it if it does not. Calling Stop more than once is a no-op.
func (h *Handle) Stop(timeout time.Duration) error {
	h.stopOnce.Do(func() {
		h.stopErr = h.stop(timeout)

		// The read end belongs to StreamOutput once it has been called.
		h.streamOnce.Do(func() {
			h.output.Close()
		})
	})
	return h.stopErr
}

func (h *Handle) stop(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}

	if !h.Running() {
		h.logger.Debug("Recognizer process already exited")
		return nil
	}

	if err := terminate(h.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		h.logger.Warn("Failed to signal recognizer process", zap.Error(err))
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-h.done:
		h.logger.Info("Recognizer process stopped normally")
		return nil
	case <-timer.C:
	}

	h.logger.Warn("Recognizer process timed out, forcing termination", zap.Duration("timeout", timeout))
	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		h.logger.Error("Failed to kill recognizer process", zap.Error(err))
		return err
	}
	<-h.done
	return nil
}
