package definition

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gwsandbox/gwsandbox-ctl/internal/config"
	"github.com/gwsandbox/gwsandbox-ctl/internal/errors"
)

// Mode selects how the gateway initializes its data directory.
type Mode string

const (
	ModeClean   Mode = "clean"
	ModeRestore Mode = "restore"
)

// MountType selects how the gateway data directory is backed.
type MountType string

const (
	MountVolume MountType = "volume"
	MountBind   MountType = "bind"
)

// ConnectionType selects how the gateway reaches field devices.
type ConnectionType string

const (
	ConnectionEthernet ConnectionType = "ethernet"
	ConnectionSerial   ConnectionType = "serial"
)

var validEditions = map[string]bool{"standard": true, "edge": true, "maker": true}

// Identity is the uid/gid the gateway process runs as.
type Identity struct {
	UID int `json:"uid" yaml:"uid"`
	GID int `json:"gid" yaml:"gid"`
}

// Resources are runtime limits. Zero means unlimited.
type Resources struct {
	CPUs     float64 `json:"cpus,omitempty" yaml:"cpus,omitempty"`
	MemoryMB int     `json:"memoryMB,omitempty" yaml:"memoryMB,omitempty"`
}

// Gateway holds gateway-level settings.
type Gateway struct {
	Name           string   `json:"name,omitempty" yaml:"name,omitempty"`
	Edition        string   `json:"edition,omitempty" yaml:"edition,omitempty"`
	Timezone       string   `json:"timezone,omitempty" yaml:"timezone,omitempty"`
	HTTPPort       int      `json:"httpPort,omitempty" yaml:"httpPort,omitempty"`
	HTTPSPort      int      `json:"httpsPort,omitempty" yaml:"httpsPort,omitempty"`
	AdminUser      string   `json:"adminUser,omitempty" yaml:"adminUser,omitempty"`
	AdminPassword  string   `json:"adminPassword,omitempty" yaml:"adminPassword,omitempty"`
	ModulesEnabled []string `json:"modulesEnabled,omitempty" yaml:"modulesEnabled,omitempty"`
	ModuleRelink   bool     `json:"moduleRelink,omitempty" yaml:"moduleRelink,omitempty"`
	JDBCRelink     bool     `json:"jdbcRelink,omitempty" yaml:"jdbcRelink,omitempty"`
}

// Image names the gateway container image.
type Image struct {
	Repository string `json:"repository,omitempty" yaml:"repository,omitempty"`
	Tag        string `json:"tag,omitempty" yaml:"tag,omitempty"`
}

// Reference returns repository:tag.
func (i Image) Reference() string {
	return i.Repository + ":" + i.Tag
}

// DataMount describes the backing of the gateway data directory.
type DataMount struct {
	Type   MountType `json:"type,omitempty" yaml:"type,omitempty"`
	Source string    `json:"source,omitempty" yaml:"source,omitempty"`
}

// Connection describes the field-device link.
type Connection struct {
	Type         ConnectionType `json:"type,omitempty" yaml:"type,omitempty"`
	DeviceHost   string         `json:"deviceHost,omitempty" yaml:"deviceHost,omitempty"`
	DevicePort   int            `json:"devicePort,omitempty" yaml:"devicePort,omitempty"`
	SerialDevice string         `json:"serialDevice,omitempty" yaml:"serialDevice,omitempty"`
	BaudRate     int            `json:"baudRate,omitempty" yaml:"baudRate,omitempty"`
}

// Definition is the user-supplied intent for one environment.
// It is immutable once accepted by the orchestrator.
type Definition struct {
	Name        string `json:"name" yaml:"name"`
	DisplayName string `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Mode        Mode   `json:"mode,omitempty" yaml:"mode,omitempty"`

	// Host references, relative to the environments root or absolute within it.
	Backup              string   `json:"backup,omitempty" yaml:"backup,omitempty"`
	Projects            []string `json:"projects,omitempty" yaml:"projects,omitempty"`
	TagExport           string   `json:"tagExport,omitempty" yaml:"tagExport,omitempty"`
	ModulesDir          string   `json:"modulesDir,omitempty" yaml:"modulesDir,omitempty"`
	DriversDir          string   `json:"driversDir,omitempty" yaml:"driversDir,omitempty"`
	SecretsDir          string   `json:"secretsDir,omitempty" yaml:"secretsDir,omitempty"`
	ActivationTokenFile string   `json:"activationTokenFile,omitempty" yaml:"activationTokenFile,omitempty"`
	LicenseKeyFile      string   `json:"licenseKeyFile,omitempty" yaml:"licenseKeyFile,omitempty"`

	Identity   *Identity  `json:"identity,omitempty" yaml:"identity,omitempty"`
	Resources  Resources  `json:"resources,omitempty" yaml:"resources,omitempty"`
	Gateway    Gateway    `json:"gateway,omitempty" yaml:"gateway,omitempty"`
	Image      Image      `json:"image,omitempty" yaml:"image,omitempty"`
	DataMount  DataMount  `json:"dataMount,omitempty" yaml:"dataMount,omitempty"`
	Connection Connection `json:"connection,omitempty" yaml:"connection,omitempty"`
}

// WithDefaults returns a copy with unset fields filled from d.
func (def Definition) WithDefaults(d config.Defaults) Definition {
	out := def
	out.Projects = append([]string(nil), def.Projects...)
	out.Gateway.ModulesEnabled = append([]string(nil), def.Gateway.ModulesEnabled...)
	if def.Identity != nil {
		id := *def.Identity
		out.Identity = &id
	}

	if out.Mode == "" {
		out.Mode = ModeClean
	}
	if out.Gateway.Name == "" {
		out.Gateway.Name = out.Name
	}
	if out.Gateway.Edition == "" {
		out.Gateway.Edition = d.Edition
	}
	if out.Gateway.Timezone == "" {
		out.Gateway.Timezone = d.Timezone
	}
	if out.Gateway.AdminUser == "" {
		out.Gateway.AdminUser = d.AdminUser
	}
	if out.Image.Repository == "" {
		out.Image.Repository = d.ImageRepository
	}
	if out.Image.Tag == "" {
		out.Image.Tag = d.ImageTag
	}
	if out.DataMount.Type == "" {
		out.DataMount.Type = MountVolume
	}
	if out.Connection.Type == "" {
		out.Connection.Type = ConnectionEthernet
	}
	return out
}

// Validate checks field-level rules. Structural conflicts between fields
// (mode against backup, mount type against source) are left to the
// renderer, which reports them as RenderError.
func (def *Definition) Validate() error {
	if err := config.ValidateName(def.Name); err != nil {
		return errors.InvalidDefinition(err.Error())
	}
	if len(def.DisplayName) > 100 {
		return errors.InvalidDefinition("displayName must be at most 100 characters")
	}

	switch def.Mode {
	case "", ModeClean, ModeRestore:
	default:
		return errors.InvalidDefinition(fmt.Sprintf("invalid mode: %s (must be clean or restore)", def.Mode))
	}

	if def.Backup != "" && !strings.EqualFold(filepath.Ext(def.Backup), ".gwbk") {
		return errors.InvalidDefinition(fmt.Sprintf("backup must be a .gwbk file (got %q)", def.Backup))
	}
	if def.TagExport != "" {
		ext := strings.ToLower(filepath.Ext(def.TagExport))
		if ext != ".json" && ext != ".xml" {
			return errors.InvalidDefinition(fmt.Sprintf("tagExport must be a .json or .xml file (got %q)", def.TagExport))
		}
	}
	for i, p := range def.Projects {
		if strings.TrimSpace(p) == "" {
			return errors.InvalidDefinition(fmt.Sprintf("projects[%d] is empty", i))
		}
	}

	if def.Identity != nil && (def.Identity.UID < 0 || def.Identity.GID < 0) {
		return errors.InvalidDefinition("identity uid and gid must be >= 0")
	}
	if def.Resources.CPUs < 0 || def.Resources.MemoryMB < 0 {
		return errors.InvalidDefinition("resource limits must be >= 0")
	}

	if err := def.Gateway.validate(); err != nil {
		return err
	}

	switch def.DataMount.Type {
	case "", MountVolume, MountBind:
	default:
		return errors.InvalidDefinition(fmt.Sprintf("invalid dataMount.type: %s (must be volume or bind)", def.DataMount.Type))
	}

	return def.Connection.validate()
}

func (g *Gateway) validate() error {
	if g.Edition != "" && !validEditions[g.Edition] {
		return errors.InvalidDefinition(fmt.Sprintf("invalid gateway.edition: %s", g.Edition))
	}
	if g.HTTPPort < 0 || g.HTTPPort > 65535 {
		return errors.InvalidDefinition(fmt.Sprintf("gateway.httpPort out of range: %d", g.HTTPPort))
	}
	if g.HTTPSPort < 0 || g.HTTPSPort > 65535 {
		return errors.InvalidDefinition(fmt.Sprintf("gateway.httpsPort out of range: %d", g.HTTPSPort))
	}
	if g.HTTPPort != 0 && g.HTTPPort == g.HTTPSPort {
		return errors.InvalidDefinition("gateway.httpPort and gateway.httpsPort must differ")
	}
	if g.AdminPassword != "" && len(g.AdminPassword) < 8 {
		return errors.InvalidDefinition("gateway.adminPassword must be at least 8 characters")
	}
	for _, m := range g.ModulesEnabled {
		if m == "" || strings.ContainsAny(m, ", \t\n") {
			return errors.InvalidDefinition(fmt.Sprintf("invalid module identifier %q", m))
		}
	}
	return nil
}

func (c *Connection) validate() error {
	switch c.Type {
	case "", ConnectionEthernet:
		if c.DeviceHost != "" && c.DevicePort == 0 {
			return errors.InvalidDefinition("connection.devicePort is required when deviceHost is set")
		}
	case ConnectionSerial:
	default:
		return errors.InvalidDefinition(fmt.Sprintf("invalid connection.type: %s (must be ethernet or serial)", c.Type))
	}
	if c.DevicePort < 0 || c.DevicePort > 65535 {
		return errors.InvalidDefinition(fmt.Sprintf("connection.devicePort out of range: %d", c.DevicePort))
	}
	if c.BaudRate < 0 {
		return errors.InvalidDefinition("connection.baudRate must be >= 0")
	}
	return nil
}

// Load reads a definition from a YAML (or JSON) file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a definition from YAML. JSON input is accepted as a YAML subset.
// Unknown fields are rejected.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, errors.Wrap(errors.KindInvalidDefinition, "failed to parse definition", err)
	}
	return &def, nil
}
