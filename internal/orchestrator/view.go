package orchestrator

import (
	"fmt"
	"time"

	"github.com/gwsandbox/gwsandbox-ctl/internal/artifact"
	"github.com/gwsandbox/gwsandbox-ctl/internal/registry"
)

// View is the caller-facing copy of an environment record.
type View struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	DisplayName   string                `json:"displayName,omitempty"`
	Status        registry.Status       `json:"status"`
	CreatedAt     time.Time             `json:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`
	LastStartedAt *time.Time            `json:"lastStartedAt,omitempty"`
	LastStoppedAt *time.Time            `json:"lastStoppedAt,omitempty"`
	LastError     string                `json:"lastError,omitempty"`
	Ports         registry.Ports        `json:"ports"`
	GatewayURL    string                `json:"gatewayURL"`
	Artifacts     artifact.Paths        `json:"artifacts"`
	Summary       registry.Summary      `json:"summary"`
	Observed      *registry.Observation `json:"observed,omitempty"`
}

func viewOf(rec *registry.Record) View {
	c := rec.Clone()
	return View{
		ID:            c.ID,
		Name:          c.Name,
		DisplayName:   c.DisplayName,
		Status:        c.Status,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
		LastStartedAt: c.LastStartedAt,
		LastStoppedAt: c.LastStoppedAt,
		LastError:     c.LastError,
		Ports:         c.Ports,
		GatewayURL:    fmt.Sprintf("http://127.0.0.1:%d", c.Ports.HTTP),
		Artifacts:     c.Artifacts,
		Summary:       c.Summary,
		Observed:      c.Observed,
	}
}

// Uptime returns how long the environment has been running, or zero.
func (v View) Uptime(now time.Time) time.Duration {
	if v.Status != registry.StatusRunning || v.LastStartedAt == nil {
		return 0
	}
	return now.Sub(*v.LastStartedAt)
}
