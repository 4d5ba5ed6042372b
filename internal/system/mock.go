package system

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// ErrMockFailure is a generic failure for canned responses.
var ErrMockFailure = errors.New("mock command failed")

// MockCommand records one command issued through a MockExecutor.
type MockCommand struct {
	Name   string
	Args   []string
	Stream bool
}

// Line returns the command as a single space-joined string.
func (c MockCommand) Line() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// MockResponse is the canned outcome of a command.
type MockResponse struct {
	Stdout string
	Stderr string
	Err    error
}

// StreamFunc produces the output of a streaming command.
type StreamFunc func(ctx context.Context, cmd MockCommand) (io.ReadCloser, error)

// MockExecutor is a CommandExecutor that records commands and replays
// canned responses.
//
// Responses are keyed by a pattern of whole words that must appear
// contiguously in the command line, e.g. "compose" or "up -d". When several
// patterns match, the longest one wins.
type MockExecutor struct {
	mu sync.Mutex

	Commands        []MockCommand
	Responses       map[string]MockResponse
	DefaultResponse MockResponse

	// StreamHandler serves Stream calls. When nil, Stream returns the
	// matching response's Stdout followed by EOF.
	StreamHandler StreamFunc

	// Paths maps executable names to their resolved location. Names not
	// present fail LookPath.
	Paths map[string]string
}

// NewMockExecutor returns an empty MockExecutor.
func NewMockExecutor() *MockExecutor {
	return &MockExecutor{
		Responses: make(map[string]MockResponse),
		Paths:     make(map[string]string),
	}
}

// AddResponse registers the response for commands matching pattern.
func (m *MockExecutor) AddResponse(pattern string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses[pattern] = resp
}

// AddPath makes name resolvable through LookPath.
func (m *MockExecutor) AddPath(name, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Paths[name] = path
}

// Run records the command and returns the matching response.
func (m *MockExecutor) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := m.record(name, args, false)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	resp := m.lookup(cmd)
	return Result{Stdout: []byte(resp.Stdout), Stderr: []byte(resp.Stderr)}, resp.Err
}

// Stream records the command and returns the configured stream.
func (m *MockExecutor) Stream(ctx context.Context, name string, args ...string) (io.ReadCloser, error) {
	cmd := m.record(name, args, true)

	m.mu.Lock()
	handler := m.StreamHandler
	m.mu.Unlock()
	if handler != nil {
		return handler(ctx, cmd)
	}

	resp := m.lookup(cmd)
	if resp.Err != nil {
		return nil, resp.Err
	}
	return io.NopCloser(strings.NewReader(resp.Stdout)), nil
}

// LookPath resolves name from Paths.
func (m *MockExecutor) LookPath(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.Paths[name]; ok {
		return p, nil
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

// LastCommand returns the most recent command, or nil if none ran.
func (m *MockExecutor) LastCommand() *MockCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Commands) == 0 {
		return nil
	}
	c := m.Commands[len(m.Commands)-1]
	return &c
}

// CommandsMatching returns every recorded command that matches pattern.
func (m *MockExecutor) CommandsMatching(pattern string) []MockCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MockCommand
	for _, c := range m.Commands {
		if matches(c.Line(), pattern) {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears recorded commands and responses.
func (m *MockExecutor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Commands = nil
	m.Responses = make(map[string]MockResponse)
	m.DefaultResponse = MockResponse{}
}

func (m *MockExecutor) record(name string, args []string, stream bool) MockCommand {
	cmd := MockCommand{Name: name, Args: append([]string(nil), args...), Stream: stream}
	m.mu.Lock()
	m.Commands = append(m.Commands, cmd)
	m.mu.Unlock()
	return cmd
}

func (m *MockExecutor) lookup(cmd MockCommand) MockResponse {
	m.mu.Lock()
	defer m.mu.Unlock()

	line := cmd.Line()
	best := ""
	found := false
	for pattern := range m.Responses {
		if matches(line, pattern) && (!found || len(pattern) > len(best)) {
			best = pattern
			found = true
		}
	}
	if found {
		return m.Responses[best]
	}
	return m.DefaultResponse
}

func matches(line, pattern string) bool {
	return strings.Contains(" "+line+" ", " "+pattern+" ")
}
