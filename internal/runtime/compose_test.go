package runtime

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/gwsandbox/gwsandbox-ctl/internal/errors"
	"github.com/gwsandbox/gwsandbox-ctl/internal/system"
)

func testProject() Project {
	return Project{
		Name:     "gws-0123456789abcdef0123456789abcdef",
		Manifest: "/state/environments/0123456789abcdef0123456789abcdef/compose.yaml",
		Dir:      "/state/environments/0123456789abcdef0123456789abcdef",
	}
}

func newTestDriver() (*ComposeDriver, *system.MockExecutor) {
	mock := system.NewMockExecutor()
	mock.AddPath("docker", "/usr/bin/docker")
	mock.AddResponse("info", system.MockResponse{Stdout: "26.1.1\n"})
	d := &ComposeDriver{Command: "docker", Exec: mock, LogTail: 50}
	return d, mock
}

func TestComposeDriver_Up(t *testing.T) {
	d, mock := newTestDriver()

	h, err := d.Up(context.Background(), testProject())
	if err != nil {
		t.Fatalf("Up() error: %v", err)
	}
	if h.Project != testProject() {
		t.Errorf("handle project = %+v", h.Project)
	}

	ups := mock.CommandsMatching("up -d")
	if len(ups) != 1 {
		t.Fatalf("expected one up call, got %d", len(ups))
	}
	want := "docker compose -p gws-0123456789abcdef0123456789abcdef -f " + testProject().Manifest +
		" --project-directory " + testProject().Dir + " up -d --remove-orphans"
	if got := ups[0].Line(); got != want {
		t.Errorf("up command =\n  %s\nwant\n  %s", got, want)
	}
}

func TestComposeDriver_UpPingFailure(t *testing.T) {
	d, mock := newTestDriver()
	mock.AddResponse("info", system.MockResponse{
		Stderr: "Cannot connect to the Docker daemon at unix:///var/run/docker.sock",
		Err:    system.ErrMockFailure,
	})

	_, err := d.Up(context.Background(), testProject())
	if !errors.Is(err, errors.ErrRuntimeUnavailable) {
		t.Fatalf("Up() error = %v, want RuntimeUnavailable", err)
	}
	if len(mock.CommandsMatching("up")) != 0 {
		t.Error("up must not run when the engine is unreachable")
	}
}

func TestComposeDriver_MissingBinary(t *testing.T) {
	mock := system.NewMockExecutor()
	d := &ComposeDriver{Command: "podman", Exec: mock}

	if err := d.Ping(context.Background()); !errors.Is(err, errors.ErrRuntimeUnavailable) {
		t.Errorf("Ping() error = %v, want RuntimeUnavailable", err)
	}
}

type fakeEngine struct{ err error }

func (f fakeEngine) Ping(context.Context) error { return f.err }

func TestComposeDriver_EnginePing(t *testing.T) {
	d, mock := newTestDriver()
	d.Engine = fakeEngine{}
	if err := d.Ping(context.Background()); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
	if len(mock.CommandsMatching("info")) != 0 {
		t.Error("CLI ping should not run when an engine client is set")
	}

	d.Engine = fakeEngine{err: fmt.Errorf("dial unix /var/run/docker.sock: connection refused")}
	if err := d.Ping(context.Background()); !errors.Is(err, errors.ErrRuntimeUnavailable) {
		t.Errorf("Ping() error = %v, want RuntimeUnavailable", err)
	}
}

func TestComposeDriver_UpWorkloadFailure(t *testing.T) {
	d, mock := newTestDriver()
	mock.AddResponse("up -d", system.MockResponse{Stderr: "manifest unknown", Err: system.ErrMockFailure})

	_, err := d.Up(context.Background(), testProject())
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, errors.ErrRuntimeUnavailable) {
		t.Error("a failed pull is not an unreachable runtime")
	}
	if !strings.Contains(err.Error(), "manifest unknown") {
		t.Errorf("error should carry stderr: %v", err)
	}
}

func TestComposeDriver_Down(t *testing.T) {
	tests := []struct {
		name    string
		volumes bool
		want    string
	}{
		{"keep volumes", false, "down --remove-orphans"},
		{"remove volumes", true, "down --remove-orphans -v"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, mock := newTestDriver()
			if err := d.Down(context.Background(), HandleFor(testProject()), DownOptions{Volumes: tt.volumes}); err != nil {
				t.Fatalf("Down() error: %v", err)
			}
			last := mock.LastCommand()
			if last == nil || !strings.HasSuffix(last.Line(), tt.want) {
				t.Errorf("down command = %v, want suffix %q", last, tt.want)
			}
		})
	}
}

func TestComposeDriver_Status(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want Status
	}{
		{"empty", "", StatusExited},
		{"array running", `[{"Name":"gw","Service":"gateway","State":"running"}]`, StatusRunning},
		{"ndjson running", "{\"Service\":\"gateway\",\"State\":\"exited\"}\n{\"Service\":\"db\",\"State\":\"running\"}\n", StatusRunning},
		{"ndjson exited", "{\"Service\":\"gateway\",\"State\":\"exited\"}\n", StatusExited},
		{"restarting", `[{"Service":"gateway","State":"restarting"}]`, StatusUnknown},
		{"garbage", "not json", StatusUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, mock := newTestDriver()
			mock.AddResponse("ps", system.MockResponse{Stdout: tt.out})

			got, err := d.Status(context.Background(), HandleFor(testProject()))
			if err != nil {
				t.Fatalf("Status() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Status() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestComposeDriver_StatusTimeout(t *testing.T) {
	d, mock := newTestDriver()
	d.CallTimeout = time.Nanosecond
	mock.AddResponse("ps", system.MockResponse{Err: context.DeadlineExceeded})

	_, err := d.Status(context.Background(), HandleFor(testProject()))
	if !errors.Is(err, errors.ErrRuntimeTimeout) {
		t.Errorf("Status() error = %v, want RuntimeTimeout", err)
	}
}

func TestComposeDriver_Logs(t *testing.T) {
	d, mock := newTestDriver()
	mock.AddResponse("logs", system.MockResponse{Stdout: "gateway  | started\n"})

	rc, err := d.Logs(context.Background(), HandleFor(testProject()))
	if err != nil {
		t.Fatalf("Logs() error: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "gateway  | started\n" {
		t.Errorf("logs = %q", data)
	}

	last := mock.LastCommand()
	if last == nil || !last.Stream || !strings.HasSuffix(last.Line(), "logs -f --no-color --tail 50") {
		t.Errorf("logs command = %+v", last)
	}
}

func TestClassify_NotFound(t *testing.T) {
	d, _ := newTestDriver()
	err := d.classify(context.Background(), "up", &exec.Error{Name: "docker", Err: exec.ErrNotFound})
	if !errors.Is(err, errors.ErrRuntimeUnavailable) {
		t.Errorf("classify() = %v, want RuntimeUnavailable", err)
	}
}
