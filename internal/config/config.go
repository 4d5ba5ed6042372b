package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// nameRegex validates environment names.
// Names must start with a lowercase letter or digit, followed by lowercase letters, digits, underscores, or hyphens.
// Maximum length is 63 characters (compose project name limit).
var nameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// idRegex matches environment ids (32 lowercase hex characters).
var idRegex = regexp.MustCompile(`^[0-9a-f]{32}$`)

// ValidateName checks if an environment name is valid.
// Valid names:
//   - Start with a lowercase letter or digit
//   - Contain only lowercase letters, digits, underscores, or hyphens
//   - Are between 1 and 63 characters long
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("environment name cannot be empty")
	}

	if !nameRegex.MatchString(name) {
		return fmt.Errorf("invalid environment name %q: must start with a lowercase letter or digit, contain only lowercase letters, digits, underscores, or hyphens, and be at most 63 characters", name)
	}

	return nil
}

// ValidateID checks that id has the shape of a generated environment id.
func ValidateID(id string) error {
	if !idRegex.MatchString(id) {
		return fmt.Errorf("invalid environment id %q", id)
	}
	return nil
}

// SafePath validates that a constructed path stays within the base directory.
// Names like "../../../etc/passwd" are rejected.
func SafePath(baseDir, name, suffix string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("name cannot be empty")
	}
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("name cannot be an absolute path")
	}
	if filepath.Dir(name) != "." || name == "." || name == ".." {
		return "", fmt.Errorf("name cannot contain path separators")
	}

	path := filepath.Join(baseDir, name+suffix)

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("invalid base directory: %w", err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	// The separator suffix keeps /var/lib/gwsandbox-evil from matching /var/lib/gwsandbox.
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes base directory")
	}

	return path, nil
}

const (
	DefaultConfigPath       = "/etc/gwsandbox/config.toml"
	DefaultStateDir         = "/var/lib/gwsandbox"
	DefaultEnvironmentsRoot = "/srv/gwsandbox"
	ConfigEnvVar            = "GWSANDBOX_CONFIG"
	StateDirEnvVar          = "GWSANDBOX_STATE_DIR"
	ProjectPrefix           = "gws-"
)

// Duration is a time.Duration that decodes from TOML strings such as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// RuntimeConfig selects and reaches the container runtime.
type RuntimeConfig struct {
	Command    string `toml:"command"`
	DockerHost string `toml:"docker_host"`
	LogTail    int    `toml:"log_tail"`
}

// Timeouts bounds blocking runtime operations.
type Timeouts struct {
	StartWait   Duration `toml:"start_wait"`
	Stop        Duration `toml:"stop"`
	RuntimeCall Duration `toml:"runtime_call"`
}

// PortRange is an inclusive range of host ports.
type PortRange struct {
	From int `toml:"from"`
	To   int `toml:"to"`
}

// Contains reports whether port lies within the range.
func (r PortRange) Contains(port int) bool {
	return port >= r.From && port <= r.To
}

// Validate checks that the range is well formed.
func (r PortRange) Validate() error {
	if r.From < 1 || r.To > 65535 || r.From > r.To {
		return fmt.Errorf("invalid port range %d-%d", r.From, r.To)
	}
	return nil
}

// Ports holds the host port ranges for gateway listeners.
type Ports struct {
	HTTP  PortRange `toml:"http"`
	HTTPS PortRange `toml:"https"`
}

// Defaults fills definition fields the caller leaves empty.
type Defaults struct {
	ImageRepository string `toml:"image_repository"`
	ImageTag        string `toml:"image_tag"`
	Edition         string `toml:"edition"`
	Timezone        string `toml:"timezone"`
	AdminUser       string `toml:"admin_user"`
}

// APIConfig configures the HTTP transport.
type APIConfig struct {
	Listen string `toml:"listen"`
}

// ReconcileConfig configures reconciliation against the runtime.
type ReconcileConfig struct {
	Interval   Duration `toml:"interval"`
	StaleAfter Duration `toml:"stale_after"`
}

// Config is the controller configuration loaded from config.toml.
type Config struct {
	StateDir         string          `toml:"state_dir"`
	EnvironmentsRoot string          `toml:"environments_root"`
	Runtime          RuntimeConfig   `toml:"runtime"`
	Timeouts         Timeouts        `toml:"timeouts"`
	Ports            Ports           `toml:"ports"`
	Defaults         Defaults        `toml:"defaults"`
	API              APIConfig       `toml:"api"`
	Reconcile        ReconcileConfig `toml:"reconcile"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		StateDir:         DefaultStateDir,
		EnvironmentsRoot: DefaultEnvironmentsRoot,
		Runtime: RuntimeConfig{
			LogTail: 200,
		},
		Timeouts: Timeouts{
			StartWait:   Duration{60 * time.Second},
			Stop:        Duration{30 * time.Second},
			RuntimeCall: Duration{2 * time.Minute},
		},
		Ports: Ports{
			HTTP:  PortRange{From: 8088, To: 8187},
			HTTPS: PortRange{From: 8243, To: 8342},
		},
		Defaults: Defaults{
			ImageRepository: "inductiveautomation/ignition",
			ImageTag:        "8.1",
			Edition:         "standard",
			Timezone:        "America/Chicago",
			AdminUser:       "admin",
		},
		API: APIConfig{
			Listen: "127.0.0.1:8700",
		},
		Reconcile: ReconcileConfig{
			Interval:   Duration{30 * time.Second},
			StaleAfter: Duration{2 * time.Minute},
		},
	}
}

// Validate checks that the Config is usable.
func (c *Config) Validate() error {
	if c.StateDir == "" {
		return fmt.Errorf("state_dir is required")
	}
	if !filepath.IsAbs(c.StateDir) {
		return fmt.Errorf("state_dir must be an absolute path (got %q)", c.StateDir)
	}
	if c.EnvironmentsRoot == "" {
		return fmt.Errorf("environments_root is required")
	}
	if !filepath.IsAbs(c.EnvironmentsRoot) {
		return fmt.Errorf("environments_root must be an absolute path (got %q)", c.EnvironmentsRoot)
	}

	validCommands := map[string]bool{"": true, "docker": true, "podman": true}
	if !validCommands[c.Runtime.Command] {
		return fmt.Errorf("invalid runtime.command: %s (must be docker, podman, or empty)", c.Runtime.Command)
	}

	if err := c.Ports.HTTP.Validate(); err != nil {
		return fmt.Errorf("ports.http: %w", err)
	}
	if err := c.Ports.HTTPS.Validate(); err != nil {
		return fmt.Errorf("ports.https: %w", err)
	}
	if c.Timeouts.StartWait.Duration <= 0 || c.Timeouts.Stop.Duration <= 0 || c.Timeouts.RuntimeCall.Duration <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.Reconcile.Interval.Duration <= 0 {
		return fmt.Errorf("reconcile.interval must be positive")
	}

	return nil
}

// Load reads the configuration at path on top of the defaults.
// A missing file yields the defaults. Unknown keys are returned so the
// caller can warn about them.
func Load(path string) (*Config, []string, error) {
	cfg := Default()

	var unknown []string
	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		for _, key := range md.Undecoded() {
			unknown = append(unknown, key.String())
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, unknown, nil
}

func applyEnv(cfg *Config) error {
	if dir := os.Getenv(StateDirEnvVar); dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", StateDirEnvVar, err)
		}
		cfg.StateDir = abs
	}
	return nil
}

// ResolveConfigPath picks the config file: the flag value, then
// $GWSANDBOX_CONFIG, then the system default.
func ResolveConfigPath(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(ConfigEnvVar); env != "" {
		return env
	}
	return DefaultConfigPath
}

// Paths holds the directories derived from the configuration
type Paths struct {
	StateDir         string
	RegistryDir      string
	ArtifactsDir     string
	AuditDir         string
	LocksDir         string
	EnvironmentsRoot string
}

// NewPaths derives the state layout from a Config.
func NewPaths(cfg *Config) *Paths {
	return &Paths{
		StateDir:         cfg.StateDir,
		RegistryDir:      filepath.Join(cfg.StateDir, "registry"),
		ArtifactsDir:     filepath.Join(cfg.StateDir, "environments"),
		AuditDir:         filepath.Join(cfg.StateDir, "audit"),
		LocksDir:         filepath.Join(cfg.StateDir, "locks"),
		EnvironmentsRoot: cfg.EnvironmentsRoot,
	}
}

// DefaultPaths returns the default path configuration
func DefaultPaths() *Paths {
	return NewPaths(Default())
}

// ProjectName returns the compose project name for an environment id.
func ProjectName(id string) string {
	return ProjectPrefix + id
}
