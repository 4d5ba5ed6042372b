package system

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"sync"
	"time"
)

// streamWaitDelay bounds how long Close waits for output pipes held open by
// orphaned children after the command is killed.
const streamWaitDelay = 2 * time.Second

// osExecutor runs commands via os/exec.
type osExecutor struct{}

// NewExecutor returns an executor backed by os/exec.
func NewExecutor() CommandExecutor {
	return &osExecutor{}
}

func (e *osExecutor) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, err
}

func (e *osExecutor) Stream(ctx context.Context, name string, args ...string) (io.ReadCloser, error) {
	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = pw
	cmd.Stderr = pw
	cmd.WaitDelay = streamWaitDelay
	if err := cmd.Start(); err != nil {
		cancel()
		pw.Close()
		return nil, err
	}

	s := &processStream{reader: pr, cancel: cancel, done: make(chan struct{})}
	go func() {
		err := cmd.Wait()
		// A nil error closes the pipe with io.EOF.
		pw.CloseWithError(err)
		close(s.done)
	}()
	return s, nil
}

func (e *osExecutor) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// processStream is the output of a running command.
type processStream struct {
	reader *io.PipeReader
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *processStream) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

// Close kills the command if it is still running and waits for it to exit.
func (s *processStream) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.reader.Close()
		<-s.done
	})
	return nil
}
