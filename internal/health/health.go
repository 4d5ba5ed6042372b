package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/gwsandbox/gwsandbox-ctl/internal/errors"
)

// Status is the summarized health of a gateway.
type Status string

const (
	StatusReady    Status = "ready"
	StatusStarting Status = "starting"
	StatusStopped  Status = "stopped"
)

const (
	// StatusPingPath is the gateway's self-reported state endpoint.
	StatusPingPath = "/StatusPing"

	// StateRunning is the state the gateway reports once it serves.
	StateRunning = "RUNNING"

	// DefaultProbeTimeout bounds a single probe request.
	DefaultProbeTimeout = 5 * time.Second
)

// statusPing is the body returned by the gateway's StatusPing endpoint.
type statusPing struct {
	State string `json:"state"`
}

// Prober queries the gateway's StatusPing endpoint on the local host.
type Prober struct {
	Client *http.Client
	Host   string
}

// NewProber returns a prober targeting 127.0.0.1.
func NewProber() *Prober {
	return &Prober{
		Client: &http.Client{Timeout: DefaultProbeTimeout},
		Host:   "127.0.0.1",
	}
}

// URL returns the StatusPing URL for a published HTTP port.
func (p *Prober) URL(port int) string {
	return "http://" + net.JoinHostPort(p.Host, strconv.Itoa(port)) + StatusPingPath
}

// Check returns nil when the gateway on port reports RUNNING.
func (p *Prober) Check(ctx context.Context, port int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL(port), nil)
	if err != nil {
		return err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway not reachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned HTTP %d", resp.StatusCode)
	}

	var ping statusPing
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&ping); err != nil {
		return fmt.Errorf("unexpected StatusPing body: %w", err)
	}
	if ping.State != StateRunning {
		return fmt.Errorf("gateway state is %q", ping.State)
	}
	return nil
}

// Summary reports the health of a gateway whose workload liveness is known.
func (p *Prober) Summary(ctx context.Context, running bool, port int) Status {
	if !running {
		return StatusStopped
	}
	if err := p.Check(ctx, port); err != nil {
		return StatusStarting
	}
	return StatusReady
}

// CheckFunc is a readiness or liveness condition.
type CheckFunc func(ctx context.Context) error

// WaitFor polls check until it returns nil or timeout elapses. On timeout
// it returns a RuntimeTimeout error carrying the last check failure.
// Cancellation of ctx is returned as is.
func WaitFor(ctx context.Context, op string, timeout time.Duration, check CheckFunc) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 0

	var lastErr error
	err := backoff.Retry(func() error {
		lastErr = check(ctx)
		return lastErr
	}, backoff.WithContext(b, ctx))
	if err == nil {
		return nil
	}

	if ctx.Err() == context.DeadlineExceeded {
		if lastErr == nil {
			lastErr = ctx.Err()
		}
		return errors.RuntimeTimeout(op, fmt.Errorf("not satisfied within %s: %w", timeout, lastErr))
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// FormatUptime renders a duration the way ls and show display uptime.
func FormatUptime(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	} else if d < 24*time.Hour {
		hours := int(d.Hours())
		mins := int(d.Minutes()) % 60
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}
