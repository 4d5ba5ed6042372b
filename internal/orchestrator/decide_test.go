package orchestrator

import (
	"testing"
	"time"

	"github.com/gwsandbox/gwsandbox-ctl/internal/registry"
	"github.com/gwsandbox/gwsandbox-ctl/internal/runtime"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		current  registry.Status
		observed runtime.Status
		want     registry.Status
		msg      string
	}{
		{registry.StatusStarting, runtime.StatusRunning, registry.StatusRunning, ""},
		{registry.StatusStarting, runtime.StatusExited, registry.StatusError, msgInterruptedStart},
		{registry.StatusStopping, runtime.StatusExited, registry.StatusStopped, ""},
		{registry.StatusStopping, runtime.StatusRunning, registry.StatusError, msgInterruptedStop},
		{registry.StatusRunning, runtime.StatusExited, registry.StatusError, msgWorkloadGone},
		{registry.StatusRunning, runtime.StatusRunning, registry.StatusRunning, ""},
		{registry.StatusStopped, runtime.StatusRunning, registry.StatusStopped, ""},
		{registry.StatusCreated, runtime.StatusExited, registry.StatusCreated, ""},
		{registry.StatusError, runtime.StatusRunning, registry.StatusError, ""},
		{registry.StatusStarting, runtime.StatusUnknown, registry.StatusStarting, ""},
		{registry.StatusRunning, runtime.StatusUnknown, registry.StatusRunning, ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.current)+"/"+string(tt.observed), func(t *testing.T) {
			got, msg := decide(tt.current, tt.observed)
			if got != tt.want {
				t.Errorf("decide() status = %s, want %s", got, tt.want)
			}
			if msg != tt.msg {
				t.Errorf("decide() message = %q, want %q", msg, tt.msg)
			}
		})
	}
}

func TestLockSet(t *testing.T) {
	l := newLockSet(t.TempDir())

	unlock, ok := l.tryLock("a")
	if !ok {
		t.Fatal("first tryLock failed")
	}
	if _, ok := l.tryLock("a"); ok {
		t.Error("second tryLock on a held lock succeeded")
	}
	if u, ok := l.tryLock("b"); !ok {
		t.Error("tryLock on another id failed")
	} else {
		u()
	}

	unlock()
	if u, ok := l.tryLock("a"); !ok {
		t.Error("tryLock after unlock failed")
	} else {
		u()
	}
	l.forget("a")
}

func TestLockSet_SharedDirectory(t *testing.T) {
	// Two lock sets over one directory stand in for two processes: flock
	// conflicts between separate open files even within one process.
	dir := t.TempDir()
	cli, server := newLockSet(dir), newLockSet(dir)

	unlock, ok := cli.tryLock("a")
	if !ok {
		t.Fatal("tryLock failed")
	}
	if _, ok := server.tryLock("a"); ok {
		t.Error("a lock held by another lock set was acquired")
	}
	unlock()

	u, ok := server.tryLock("a")
	if !ok {
		t.Fatal("tryLock after the other holder released failed")
	}
	u()
}

func TestLockSet_NamedLockWaits(t *testing.T) {
	dir := t.TempDir()
	a, b := newLockSet(dir), newLockSet(dir)

	unlock, err := a.lock(createLock)
	if err != nil {
		t.Fatal(err)
	}
	acquired := make(chan struct{})
	go func() {
		u, err := b.lock(createLock)
		if err != nil {
			t.Error(err)
			close(acquired)
			return
		}
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("named lock was acquired while held elsewhere")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()
	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("waiter never acquired the released lock")
	}
}
