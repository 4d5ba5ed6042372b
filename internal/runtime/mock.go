package runtime

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// MockCall represents a recorded method call.
type MockCall struct {
	Method  string
	Project string
	Args    []interface{}
}

// MockDriver is an in-memory Driver for tests. Projects move to running on
// Up and to exited on Down unless overridden.
type MockDriver struct {
	mu sync.RWMutex

	// Projects tracks the status of every known project by name.
	Projects map[string]Status

	// Errors injects a failure for a method ("Ping", "Up", "Down",
	// "Status", "Logs").
	Errors map[string]error

	// UpStatus is the status a project takes after Up. Defaults to running.
	UpStatus Status

	// DownStatus is the status a project takes after Down. Defaults to
	// exited.
	DownStatus Status

	// LogOutput is served by Logs when LogsFunc is nil.
	LogOutput string

	// LogsFunc, when set, serves Logs.
	LogsFunc func(ctx context.Context, h Handle) (io.ReadCloser, error)

	// Hooks run at the start of a method before any state change. Tests use
	// them to block a call while probing concurrent behaviour.
	Hooks map[string]func(ctx context.Context)

	// CallLog records all method calls for verification.
	CallLog []MockCall
}

// NewMockDriver creates an empty mock driver.
func NewMockDriver() *MockDriver {
	return &MockDriver{
		Projects: make(map[string]Status),
		Errors:   make(map[string]error),
		Hooks:    make(map[string]func(ctx context.Context)),
	}
}

func (m *MockDriver) record(method, project string, args ...interface{}) {
	m.CallLog = append(m.CallLog, MockCall{Method: method, Project: project, Args: args})
}

// SetError sets an error to be returned for a method. A nil err clears it.
func (m *MockDriver) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.Errors, method)
		return
	}
	m.Errors[method] = err
}

// SetHook installs fn to run on entry to method.
func (m *MockDriver) SetHook(method string, fn func(ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Hooks[method] = fn
}

// SetStatus forces the status of a project.
func (m *MockDriver) SetStatus(project string, s Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Projects[project] = s
}

// GetCalls returns all recorded calls.
func (m *MockDriver) GetCalls() []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	calls := make([]MockCall, len(m.CallLog))
	copy(calls, m.CallLog)
	return calls
}

// GetCallsFor returns all calls for a specific method.
func (m *MockDriver) GetCallsFor(method string) []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var calls []MockCall
	for _, call := range m.CallLog {
		if call.Method == method {
			calls = append(calls, call)
		}
	}
	return calls
}

// Name returns the runtime identifier.
func (m *MockDriver) Name() string {
	return "mock"
}

func (m *MockDriver) enter(ctx context.Context, method string) {
	m.mu.RLock()
	hook := m.Hooks[method]
	m.mu.RUnlock()
	if hook != nil {
		hook(ctx)
	}
}

// Ping succeeds unless an error is injected.
func (m *MockDriver) Ping(ctx context.Context) error {
	m.enter(ctx, "Ping")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Ping", "")
	return m.Errors["Ping"]
}

// Up marks the project as started.
func (m *MockDriver) Up(ctx context.Context, p Project) (Handle, error) {
	m.enter(ctx, "Up")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Up", p.Name, p.Manifest)

	if err, ok := m.Errors["Up"]; ok {
		return Handle{}, err
	}
	status := m.UpStatus
	if status == "" {
		status = StatusRunning
	}
	m.Projects[p.Name] = status
	return HandleFor(p), nil
}

// Down marks the project as stopped.
func (m *MockDriver) Down(ctx context.Context, h Handle, opts DownOptions) error {
	m.enter(ctx, "Down")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Down", h.Project.Name, opts)

	if err, ok := m.Errors["Down"]; ok {
		return err
	}
	status := m.DownStatus
	if status == "" {
		status = StatusExited
	}
	if opts.Volumes && status == StatusExited {
		delete(m.Projects, h.Project.Name)
		return nil
	}
	m.Projects[h.Project.Name] = status
	return nil
}

// Status returns the tracked status, or exited for unknown projects.
func (m *MockDriver) Status(ctx context.Context, h Handle) (Status, error) {
	m.enter(ctx, "Status")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("Status", h.Project.Name)

	if err, ok := m.Errors["Status"]; ok {
		return StatusUnknown, err
	}
	if s, ok := m.Projects[h.Project.Name]; ok {
		return s, nil
	}
	return StatusExited, nil
}

// Logs serves LogsFunc or LogOutput.
func (m *MockDriver) Logs(ctx context.Context, h Handle) (io.ReadCloser, error) {
	m.enter(ctx, "Logs")
	m.mu.Lock()
	m.record("Logs", h.Project.Name)
	err := m.Errors["Logs"]
	fn := m.LogsFunc
	out := m.LogOutput
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(ctx, h)
	}
	return io.NopCloser(strings.NewReader(out)), nil
}

// String summarizes tracked projects for test failure messages.
func (m *MockDriver) String() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fmt.Sprintf("MockDriver%v", m.Projects)
}

var _ Driver = (*MockDriver)(nil)
