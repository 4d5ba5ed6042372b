package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/gwsandbox/gwsandbox-ctl/internal/errors"
	"github.com/gwsandbox/gwsandbox-ctl/internal/logging"
	"github.com/gwsandbox/gwsandbox-ctl/internal/system"
)

// DefaultLogTail is the number of past lines replayed when following logs.
const DefaultLogTail = 200

// Pinger checks engine reachability without going through the CLI.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ComposeDriver implements Driver with the "compose" subcommand of docker or
// podman.
type ComposeDriver struct {
	// Command is the runtime binary (docker or podman).
	Command string

	// Exec runs the runtime binary.
	Exec system.CommandExecutor

	// Engine, when set, is used for Ping instead of "<command> info".
	Engine Pinger

	// CallTimeout bounds each non-streaming runtime call. Zero means no
	// bound beyond the caller's context.
	CallTimeout time.Duration

	// LogTail is the number of past lines replayed by Logs.
	LogTail int
}

// NewComposeDriver returns a driver for command using the default executor.
func NewComposeDriver(command string) *ComposeDriver {
	return &ComposeDriver{
		Command: command,
		Exec:    system.DefaultExecutor(),
		LogTail: DefaultLogTail,
	}
}

// Name returns the runtime identifier.
func (d *ComposeDriver) Name() string {
	return d.Command
}

// Ping checks that the container engine answers.
func (d *ComposeDriver) Ping(ctx context.Context) error {
	if _, err := d.Exec.LookPath(d.Command); err != nil {
		return errors.RuntimeUnavailable("ping", fmt.Errorf("%s not found in PATH: %w", d.Command, err))
	}

	ctx, cancel := d.callContext(ctx)
	defer cancel()

	if d.Engine != nil {
		if err := d.Engine.Ping(ctx); err != nil {
			return d.classify(ctx, "ping", err)
		}
		return nil
	}

	if _, err := d.run(ctx, "info", []string{"info", "--format", "{{.ServerVersion}}"}); err != nil {
		if errors.Is(err, errors.ErrRuntimeTimeout) {
			return err
		}
		return errors.RuntimeUnavailable("ping", err)
	}
	return nil
}

// Up runs "compose up -d" for the project.
func (d *ComposeDriver) Up(ctx context.Context, p Project) (Handle, error) {
	if err := d.Ping(ctx); err != nil {
		return Handle{}, err
	}

	ctx, cancel := d.callContext(ctx)
	defer cancel()

	logging.Debug("starting compose project", "project", p.Name, "runtime", d.Command)
	if _, err := d.run(ctx, "up", d.composeArgs(p, "up", "-d", "--remove-orphans")); err != nil {
		return Handle{}, err
	}
	return HandleFor(p), nil
}

// Down runs "compose down" for the project.
func (d *ComposeDriver) Down(ctx context.Context, h Handle, opts DownOptions) error {
	ctx, cancel := d.callContext(ctx)
	defer cancel()

	sub := []string{"down", "--remove-orphans"}
	if opts.Volumes {
		sub = append(sub, "-v")
	}
	logging.Debug("stopping compose project", "project", h.Project.Name, "volumes", opts.Volumes)
	_, err := d.run(ctx, "down", d.composeArgs(h.Project, sub...))
	return err
}

// Status runs "compose ps" and folds the container states into one status.
func (d *ComposeDriver) Status(ctx context.Context, h Handle) (Status, error) {
	ctx, cancel := d.callContext(ctx)
	defer cancel()

	out, err := d.run(ctx, "ps", d.composeArgs(h.Project, "ps", "-a", "--format", "json"))
	if err != nil {
		return StatusUnknown, err
	}
	containers, err := parsePS(out)
	if err != nil {
		logging.Debug("unparseable compose ps output", "project", h.Project.Name, "error", err)
		return StatusUnknown, nil
	}
	return foldStatus(containers), nil
}

// Logs follows "compose logs" for the project.
func (d *ComposeDriver) Logs(ctx context.Context, h Handle) (io.ReadCloser, error) {
	tail := d.LogTail
	if tail <= 0 {
		tail = DefaultLogTail
	}
	args := d.composeArgs(h.Project, "logs", "-f", "--no-color", "--tail", strconv.Itoa(tail))
	logging.Debug("following compose logs", "command", d.commandLine(args))

	rc, err := d.Exec.Stream(ctx, d.Command, args...)
	if err != nil {
		return nil, d.classify(ctx, "logs", err)
	}
	return rc, nil
}

func (d *ComposeDriver) composeArgs(p Project, sub ...string) []string {
	args := []string{"compose", "-p", p.Name, "-f", p.Manifest}
	if p.Dir != "" {
		args = append(args, "--project-directory", p.Dir)
	}
	return append(args, sub...)
}

func (d *ComposeDriver) run(ctx context.Context, op string, args []string) ([]byte, error) {
	logging.Debug("runtime call", "command", d.commandLine(args))

	res, err := d.Exec.Run(ctx, d.Command, args...)
	if err != nil {
		msg := strings.TrimSpace(string(res.Stderr))
		if msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return nil, d.classify(ctx, op, err)
	}
	return res.Stdout, nil
}

// classify maps a runtime call failure onto the error taxonomy.
func (d *ComposeDriver) classify(ctx context.Context, op string, err error) error {
	switch {
	case ctx.Err() == context.DeadlineExceeded:
		return errors.RuntimeTimeout(op, err)
	case errors.Is(err, exec.ErrNotFound):
		return errors.RuntimeUnavailable(op, err)
	case isUnreachable(err):
		return errors.RuntimeUnavailable(op, err)
	default:
		return errors.Wrap(errors.KindGeneral, fmt.Sprintf("%s compose %s failed", d.Command, op), err)
	}
}

func (d *ComposeDriver) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.CallTimeout > 0 {
		return context.WithTimeout(ctx, d.CallTimeout)
	}
	return context.WithCancel(ctx)
}

func (d *ComposeDriver) commandLine(args []string) string {
	return shellquote.Join(append([]string{d.Command}, args...)...)
}

// unreachableMarkers are substrings the docker and podman CLIs print when the
// engine itself cannot be contacted.
var unreachableMarkers = []string{
	"Cannot connect to the Docker daemon",
	"Is the docker daemon running",
	"connection refused",
	"no such file or directory: connect",
	"unable to connect to Podman socket",
}

func isUnreachable(err error) bool {
	msg := err.Error()
	for _, m := range unreachableMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// psEntry is the subset of "compose ps --format json" this driver reads.
type psEntry struct {
	Name    string `json:"Name"`
	Service string `json:"Service"`
	State   string `json:"State"`
}

// parsePS accepts both a JSON array and newline-delimited JSON objects, as
// emitted by different compose versions.
func parsePS(out []byte) ([]psEntry, error) {
	out = bytes.TrimSpace(out)
	if len(out) == 0 {
		return nil, nil
	}
	if out[0] == '[' {
		var entries []psEntry
		if err := json.Unmarshal(out, &entries); err != nil {
			return nil, err
		}
		return entries, nil
	}

	var entries []psEntry
	dec := json.NewDecoder(bytes.NewReader(out))
	for dec.More() {
		var e psEntry
		if err := dec.Decode(&e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// foldStatus reduces container states to a project status: running if any
// container runs, exited if all are terminal or none exist.
func foldStatus(entries []psEntry) Status {
	status := StatusExited
	for _, e := range entries {
		switch strings.ToLower(e.State) {
		case "running":
			return StatusRunning
		case "exited", "created", "dead", "stopped", "removing", "configured":
		default:
			status = StatusUnknown
		}
	}
	return status
}

var _ Driver = (*ComposeDriver)(nil)
