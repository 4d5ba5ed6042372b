package system

import (
	"context"
	"io"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func requireSh(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestOSExecutor_RunSeparatesStreams(t *testing.T) {
	requireSh(t)
	res, err := NewExecutor().Run(context.Background(), "sh", "-c", "echo out; echo err >&2")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if strings.TrimSpace(string(res.Stdout)) != "out" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
	if strings.TrimSpace(string(res.Stderr)) != "err" {
		t.Errorf("Stderr = %q", res.Stderr)
	}
}

func TestOSExecutor_RunExitError(t *testing.T) {
	requireSh(t)
	res, err := NewExecutor().Run(context.Background(), "sh", "-c", "echo nope >&2; exit 3")
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if !strings.Contains(string(res.Stderr), "nope") {
		t.Errorf("Stderr = %q", res.Stderr)
	}
}

func TestOSExecutor_StreamEOF(t *testing.T) {
	requireSh(t)
	rc, err := NewExecutor().Stream(context.Background(), "sh", "-c", "echo one; echo two")
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if string(data) != "one\ntwo\n" {
		t.Errorf("stream = %q", data)
	}
}

func TestOSExecutor_StreamCloseKills(t *testing.T) {
	requireSh(t)
	rc, err := NewExecutor().Stream(context.Background(), "sh", "-c", "exec sleep 30")
	if err != nil {
		t.Fatalf("Stream() error: %v", err)
	}

	done := make(chan struct{})
	go func() {
		rc.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close() did not terminate the command")
	}
}
