package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/gwsandbox/gwsandbox-ctl/internal/artifact"
	"github.com/gwsandbox/gwsandbox-ctl/internal/config"
	"github.com/gwsandbox/gwsandbox-ctl/internal/errors"
	"github.com/gwsandbox/gwsandbox-ctl/internal/logging"
)

const (
	recordSuffix = ".json"
	lockFile     = ".lock"
)

// Mutation changes a record in place. Returning an error aborts the update.
type Mutation func(*Record) error

// Registry owns the environment records. Every read goes to disk and every
// mutation is persisted before it returns, so several processes can share
// one registry directory.
type Registry struct {
	dir string

	// mu serializes writers in this process; fl serializes them across
	// processes.
	mu  sync.Mutex
	fl  *flock.Flock
	now func() time.Time
}

// Open returns the registry stored in dir, creating dir if needed.
func Open(dir string) (*Registry, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, errors.WriteError(dir, err)
	}
	r := &Registry{
		dir: dir,
		fl:  flock.New(filepath.Join(dir, lockFile)),
		now: time.Now,
	}
	if err := r.Load(); err != nil {
		return nil, err
	}
	return r, nil
}

// SetClock overrides the time source. Intended for tests.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Load checks that the registry directory is readable and warns about
// entries that cannot be parsed.
func (r *Registry) Load() error {
	_, err := r.scan()
	return err
}

// Create stores a new record. The id must be unused.
func (r *Registry) Create(rec *Record) error {
	if err := config.ValidateID(rec.ID); err != nil {
		return errors.InvalidPath(rec.ID, err.Error())
	}

	unlock, err := r.lock()
	if err != nil {
		return err
	}
	defer unlock()

	path, err := r.path(rec.ID)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return errors.New(errors.KindGeneral, fmt.Sprintf("environment %s already exists", rec.ID))
	}
	stored := rec.Clone()
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = r.now().UTC()
	}
	return r.persist(stored)
}

// Get reads the current record for id.
func (r *Registry) Get(id string) (*Record, error) {
	return r.load(id)
}

// List returns every readable record on disk, oldest first.
func (r *Registry) List() []*Record {
	out, err := r.scan()
	if err != nil {
		logging.Warn("failed to list registry", "dir", r.dir, "error", err)
		return nil
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Update re-reads the record for id, applies mutate and persists the
// result. On error the stored record is left unchanged.
func (r *Registry) Update(id string, mutate Mutation) (*Record, error) {
	return r.update(id, mutate, true)
}

// Observe records what the runtime reported without touching UpdatedAt,
// which tracks lifecycle changes only.
func (r *Registry) Observe(id string, obs Observation) (*Record, error) {
	return r.update(id, func(rec *Record) error {
		rec.Observed = &obs
		return nil
	}, false)
}

func (r *Registry) update(id string, mutate Mutation, touch bool) (*Record, error) {
	unlock, err := r.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	next, err := r.load(id)
	if err != nil {
		return nil, err
	}
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.ID = id
	if touch {
		next.UpdatedAt = r.now().UTC()
	}

	if err := r.persist(next); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

// Delete removes the record for id.
func (r *Registry) Delete(id string) error {
	unlock, err := r.lock()
	if err != nil {
		return err
	}
	defer unlock()

	path, err := r.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return errors.NotFound(id)
		}
		return errors.WriteError(path, err)
	}
	return nil
}

// Count returns the number of records per status.
func (r *Registry) Count() map[Status]int {
	counts := make(map[Status]int, len(AllStatuses))
	for _, rec := range r.List() {
		counts[rec.Status]++
	}
	return counts
}

// lock takes the writer lock for the whole registry.
func (r *Registry) lock() (func(), error) {
	r.mu.Lock()
	if err := r.fl.Lock(); err != nil {
		r.mu.Unlock()
		return nil, errors.WriteError(r.fl.Path(), err)
	}
	return func() {
		if err := r.fl.Unlock(); err != nil {
			logging.Warn("failed to release registry lock", "path", r.fl.Path(), "error", err)
		}
		r.mu.Unlock()
	}, nil
}

func (r *Registry) scan() ([]*Record, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, errors.PermissionDenied(r.dir, err)
	}

	var out []*Record
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != recordSuffix {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), recordSuffix)
		rec, err := r.read(id)
		if err != nil {
			if os.IsNotExist(err) {
				// Deleted between ReadDir and read.
				continue
			}
			logging.Warn("skipping unreadable registry entry", "file", entry.Name(), "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// load reads one record, mapping a missing file to NotFound.
func (r *Registry) load(id string) (*Record, error) {
	if config.ValidateID(id) != nil {
		return nil, errors.NotFound(id)
	}
	rec, err := r.read(id)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound(id)
		}
		return nil, errors.Wrap(errors.KindGeneral, fmt.Sprintf("failed to read environment %s", id), err)
	}
	return rec, nil
}

func (r *Registry) path(id string) (string, error) {
	path, err := config.SafePath(r.dir, id, recordSuffix)
	if err != nil {
		return "", errors.InvalidPath(id, err.Error())
	}
	return path, nil
}

func (r *Registry) persist(rec *Record) error {
	path, err := r.path(rec.ID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errors.WriteError(path, err)
	}
	return artifact.WriteFileAtomic(path, append(data, '\n'), 0640)
}

func (r *Registry) read(id string) (*Record, error) {
	if err := config.ValidateID(id); err != nil {
		return nil, err
	}
	path, err := config.SafePath(r.dir, id, recordSuffix)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse record: %w", err)
	}
	if rec.ID != id {
		return nil, fmt.Errorf("record id %q does not match file name", rec.ID)
	}
	return &rec, nil
}
