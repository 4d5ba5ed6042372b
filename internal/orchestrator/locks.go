package orchestrator

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	"github.com/gwsandbox/gwsandbox-ctl/internal/errors"
	"github.com/gwsandbox/gwsandbox-ctl/internal/logging"
)

const (
	lockSuffix = ".lock"

	// createLock serializes the port snapshot and registry insert of every
	// create sharing the state directory.
	createLock = "create"
)

// lockSet hands out one lock per environment id. Each lock is a mutex for
// goroutines in this process plus a flock on <dir>/<id>.lock for other
// processes sharing the state directory. An empty dir disables the file
// locks.
type lockSet struct {
	dir   string
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockSet(dir string) *lockSet {
	return &lockSet{dir: dir, locks: make(map[string]*sync.Mutex)}
}

func (s *lockSet) mutex(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, exists := s.locks[id]
	if !exists {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *lockSet) file(id string) (*flock.Flock, error) {
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return nil, errors.WriteError(s.dir, err)
	}
	return flock.New(filepath.Join(s.dir, id+lockSuffix)), nil
}

// tryLock acquires the lock for id without waiting. It reports false when
// another goroutine or process holds it.
func (s *lockSet) tryLock(id string) (unlock func(), ok bool) {
	l := s.mutex(id)
	if !l.TryLock() {
		return nil, false
	}
	if s.dir == "" {
		return l.Unlock, true
	}

	fl, err := s.file(id)
	if err != nil {
		logging.Warn("failed to open environment lock", "id", id, "error", err)
		l.Unlock()
		return nil, false
	}
	locked, err := fl.TryLock()
	if err != nil || !locked {
		if err != nil {
			logging.Warn("failed to take environment lock", "id", id, "error", err)
		}
		l.Unlock()
		return nil, false
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			logging.Warn("failed to release environment lock", "id", id, "error", err)
		}
		l.Unlock()
	}, true
}

// lock acquires the named lock, waiting for other holders.
func (s *lockSet) lock(name string) (unlock func(), err error) {
	l := s.mutex(name)
	l.Lock()
	if s.dir == "" {
		return l.Unlock, nil
	}

	fl, err := s.file(name)
	if err != nil {
		l.Unlock()
		return nil, err
	}
	if err := fl.Lock(); err != nil {
		l.Unlock()
		return nil, errors.WriteError(fl.Path(), err)
	}
	return func() {
		if err := fl.Unlock(); err != nil {
			logging.Warn("failed to release lock", "name", name, "error", err)
		}
		l.Unlock()
	}, nil
}

// forget drops the lock for a deleted id. The caller must hold it.
func (s *lockSet) forget(id string) {
	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()

	if s.dir == "" {
		return
	}
	path := filepath.Join(s.dir, id+lockSuffix)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Debug("failed to remove lock file", "path", path, "error", err)
	}
}
