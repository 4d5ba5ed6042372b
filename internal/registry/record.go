package registry

import (
	"time"

	"github.com/gwsandbox/gwsandbox-ctl/internal/artifact"
)

// Status is the lifecycle state of an environment.
type Status string

const (
	StatusCreated  Status = "created"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusStopped  Status = "stopped"
	StatusError    Status = "error"
	StatusDeleted  Status = "deleted"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{StatusCreated, StatusStarting, StatusRunning, StatusStopping,
	StatusStopped, StatusError, StatusDeleted}

// Transitional reports whether s is an in-flight state.
func (s Status) Transitional() bool {
	return s == StatusStarting || s == StatusStopping
}

// Ports are the host ports published for the gateway.
type Ports struct {
	HTTP  int `json:"http"`
	HTTPS int `json:"https"`
}

// Observation is the last runtime status seen during reconciliation.
type Observation struct {
	RuntimeStatus string    `json:"runtimeStatus"`
	At            time.Time `json:"at"`
}

// Summary is the sanitized view of the accepted definition. It never holds
// secret values; host references are relative to the environments root.
type Summary struct {
	Mode           string   `json:"mode"`
	GatewayName    string   `json:"gatewayName"`
	Edition        string   `json:"edition"`
	Timezone       string   `json:"timezone"`
	AdminUser      string   `json:"adminUser"`
	Image          string   `json:"image"`
	DataMount      string   `json:"dataMount"`
	DataSource     string   `json:"dataSource,omitempty"`
	Backup         string   `json:"backup,omitempty"`
	TagExport      string   `json:"tagExport,omitempty"`
	Projects       []string `json:"projects,omitempty"`
	Modules        []string `json:"modules,omitempty"`
	Drivers        []string `json:"drivers,omitempty"`
	Secrets        []string `json:"secrets,omitempty"`
	ModulesEnabled []string `json:"modulesEnabled,omitempty"`
	Identity       string   `json:"identity,omitempty"`
	CPUs           float64  `json:"cpus,omitempty"`
	MemoryMB       int      `json:"memoryMB,omitempty"`
	Connection     string   `json:"connection,omitempty"`
}

// Record is the persisted state of one environment.
type Record struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	DisplayName   string         `json:"displayName,omitempty"`
	Status        Status         `json:"status"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	LastStartedAt *time.Time     `json:"lastStartedAt,omitempty"`
	LastStoppedAt *time.Time     `json:"lastStoppedAt,omitempty"`
	LastError     string         `json:"lastError,omitempty"`
	Artifacts     artifact.Paths `json:"artifacts"`
	Ports         Ports          `json:"ports"`
	Summary       Summary        `json:"summary"`
	Observed      *Observation   `json:"observed,omitempty"`
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	c := *r
	if r.LastStartedAt != nil {
		t := *r.LastStartedAt
		c.LastStartedAt = &t
	}
	if r.LastStoppedAt != nil {
		t := *r.LastStoppedAt
		c.LastStoppedAt = &t
	}
	if r.Observed != nil {
		o := *r.Observed
		c.Observed = &o
	}
	s := r.Summary
	s.Projects = cloneStrings(r.Summary.Projects)
	s.Modules = cloneStrings(r.Summary.Modules)
	s.Drivers = cloneStrings(r.Summary.Drivers)
	s.Secrets = cloneStrings(r.Summary.Secrets)
	s.ModulesEnabled = cloneStrings(r.Summary.ModulesEnabled)
	c.Summary = s
	return &c
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}
