package generator

import (
	"bytes"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gwsandbox/gwsandbox-ctl/internal/definition"
	"github.com/gwsandbox/gwsandbox-ctl/internal/errors"
	"github.com/gwsandbox/gwsandbox-ctl/internal/paths"
)

// Artifact file names, relative to the environment's artifact directory.
const (
	ManifestFileName = "compose.yaml"
	EnvFileName      = "gateway.env"
)

// ServiceName is the compose service running the gateway.
const ServiceName = "gateway"

// Container-side locations used by the gateway image.
const (
	ContainerHTTPPort  = 8088
	ContainerHTTPSPort = 8043
	DataTarget         = "/usr/local/bin/ignition/data"
	ProjectsTarget     = "/usr/local/bin/ignition/data/projects"
	TagsTarget         = "/usr/local/bin/ignition/data/tags"
	ModulesTarget      = "/usr/local/bin/ignition/user-lib/modules"
	DriversTarget      = "/usr/local/bin/ignition/user-lib/jdbc"
	BackupTarget       = "/restore.gwbk"
	SecretsTarget      = "/run/secrets"
	DefaultDataVolume  = "gateway-data"
	ManagedLabel       = "io.gwsandbox.managed"
	EnvironmentLabel   = "io.gwsandbox.environment"
)

// secretEnv maps secret names to the _FILE variable the image reads.
var secretEnv = map[string]string{
	paths.SecretActivationToken: "IGNITION_ACTIVATION_TOKEN_FILE",
	paths.SecretLicenseKey:      "IGNITION_LICENSE_KEY_FILE",
	paths.SecretAdminPassword:   "GATEWAY_ADMIN_PASSWORD_FILE",
}

var volumeNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*$`)

// Output is the rendered manifest and its companion environment file.
type Output struct {
	Manifest string
	EnvFile  string
}

// ComposeFile is the subset of the compose file format this package emits.
// Field order is the emitted order.
type ComposeFile struct {
	Services map[string]Service     `yaml:"services"`
	Volumes  map[string]Volume      `yaml:"volumes,omitempty"`
	Secrets  map[string]SecretEntry `yaml:"secrets,omitempty"`
}

// Service is a compose service definition.
type Service struct {
	Image       string            `yaml:"image"`
	Command     []string          `yaml:"command,omitempty"`
	EnvFile     []string          `yaml:"env_file,omitempty"`
	User        string            `yaml:"user,omitempty"`
	Labels      map[string]string `yaml:"labels,omitempty"`
	Ports       []Port            `yaml:"ports,omitempty"`
	Volumes     []Mount           `yaml:"volumes,omitempty"`
	Secrets     []SecretMount     `yaml:"secrets,omitempty"`
	Devices     []string          `yaml:"devices,omitempty"`
	Healthcheck *Healthcheck      `yaml:"healthcheck,omitempty"`
	Deploy      *Deploy           `yaml:"deploy,omitempty"`
	Restart     string            `yaml:"restart,omitempty"`
}

// Port is a long-form port mapping.
type Port struct {
	Target    int    `yaml:"target"`
	Published string `yaml:"published"`
	Protocol  string `yaml:"protocol"`
}

// Mount is a long-form volume or bind mount.
type Mount struct {
	Type     string `yaml:"type"`
	Source   string `yaml:"source"`
	Target   string `yaml:"target"`
	ReadOnly bool   `yaml:"read_only,omitempty"`
}

// SecretMount references a top-level secret from a service.
type SecretMount struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// SecretEntry declares a file-backed secret. Only the path is emitted.
type SecretEntry struct {
	File string `yaml:"file"`
}

// Volume declares a named volume.
type Volume struct {
	Labels map[string]string `yaml:"labels,omitempty"`
}

// Healthcheck probes the gateway status endpoint.
type Healthcheck struct {
	Test        []string `yaml:"test"`
	Interval    string   `yaml:"interval"`
	Timeout     string   `yaml:"timeout"`
	Retries     int      `yaml:"retries"`
	StartPeriod string   `yaml:"start_period"`
}

// Deploy carries resource limits.
type Deploy struct {
	Resources DeployResources `yaml:"resources"`
}

// DeployResources wraps resource limits.
type DeployResources struct {
	Limits ResourceLimits `yaml:"limits"`
}

// ResourceLimits are compose resource limits.
type ResourceLimits struct {
	CPUs   string `yaml:"cpus,omitempty"`
	Memory string `yaml:"memory,omitempty"`
}

// Validate reports structural conflicts in def as RenderError. It needs no
// filesystem access and is safe to call before any side effect.
func Validate(def *definition.Definition) error {
	switch def.Mode {
	case definition.ModeRestore:
		if def.Backup == "" {
			return errors.RenderError("restore mode requires a backup")
		}
	case definition.ModeClean, "":
		if def.Backup != "" {
			return errors.RenderError("clean mode cannot use a backup; set mode to restore")
		}
	default:
		return errors.RenderError(fmt.Sprintf("unknown mode %q", def.Mode))
	}

	switch def.DataMount.Type {
	case definition.MountBind:
		if def.DataMount.Source == "" {
			return errors.RenderError("bind data mount requires a source directory")
		}
	case definition.MountVolume, "":
		if def.DataMount.Source != "" && !volumeNameRegex.MatchString(def.DataMount.Source) {
			return errors.RenderError(fmt.Sprintf("invalid data volume name %q", def.DataMount.Source))
		}
	}

	if def.Connection.Type == definition.ConnectionSerial {
		if def.Connection.SerialDevice == "" {
			return errors.RenderError("serial connection requires a serial device")
		}
		if !strings.HasPrefix(def.Connection.SerialDevice, "/dev/") {
			return errors.RenderError(fmt.Sprintf("serial device must be under /dev (got %q)", def.Connection.SerialDevice))
		}
	}
	return nil
}

// Render produces the compose manifest and env file for def and the
// resolved host resources. It is deterministic and never reads or emits
// secret contents: secrets appear only as file paths and _FILE variables.
func Render(def *definition.Definition, res *paths.Resolved) (Output, error) {
	if err := Validate(def); err != nil {
		return Output{}, err
	}
	if res == nil {
		return Output{}, errors.RenderError("resolved resources are required")
	}
	if def.Gateway.HTTPPort == 0 || def.Gateway.HTTPSPort == 0 {
		return Output{}, errors.RenderError("gateway ports must be assigned before rendering")
	}
	if def.Mode == definition.ModeRestore && res.Backup == "" {
		return Output{}, errors.RenderError("restore mode requires a resolved backup")
	}

	svc := Service{
		Image:   def.Image.Reference(),
		Command: gatewayArgs(def),
		EnvFile: []string{EnvFileName},
		Labels: map[string]string{
			ManagedLabel:     "true",
			EnvironmentLabel: def.Name,
		},
		Ports: []Port{
			{Target: ContainerHTTPPort, Published: strconv.Itoa(def.Gateway.HTTPPort), Protocol: "tcp"},
			{Target: ContainerHTTPSPort, Published: strconv.Itoa(def.Gateway.HTTPSPort), Protocol: "tcp"},
		},
		Healthcheck: &Healthcheck{
			Test:        []string{"CMD-SHELL", fmt.Sprintf("curl -fsS http://localhost:%d/StatusPing || exit 1", ContainerHTTPPort)},
			Interval:    "10s",
			Timeout:     "5s",
			Retries:     30,
			StartPeriod: "60s",
		},
		Restart: "no",
	}
	if def.Identity != nil {
		svc.User = fmt.Sprintf("%d:%d", def.Identity.UID, def.Identity.GID)
	}

	file := ComposeFile{Services: map[string]Service{}}

	mounts, err := buildMounts(def, res)
	if err != nil {
		return Output{}, err
	}
	svc.Volumes = mounts
	if def.DataMount.Type != definition.MountBind {
		file.Volumes = map[string]Volume{
			dataVolumeName(def): {Labels: map[string]string{ManagedLabel: "true"}},
		}
	}

	env := baseEnv(def)
	for _, secret := range res.Bundle.ByKind(paths.KindSecret) {
		envVar, ok := secretEnv[secret.Name]
		if !ok {
			return Output{}, errors.RenderError(fmt.Sprintf("unrecognized secret %q", secret.Name))
		}
		if file.Secrets == nil {
			file.Secrets = map[string]SecretEntry{}
		}
		file.Secrets[secret.Name] = SecretEntry{File: secret.HostPath}
		svc.Secrets = append(svc.Secrets, SecretMount{Source: secret.Name, Target: secret.Name})
		env[envVar] = path.Join(SecretsTarget, secret.Name)
	}

	if def.Connection.Type == definition.ConnectionSerial {
		svc.Devices = []string{def.Connection.SerialDevice + ":" + def.Connection.SerialDevice}
	}
	if limits := buildLimits(def.Resources); limits != nil {
		svc.Deploy = &Deploy{Resources: DeployResources{Limits: *limits}}
	}

	file.Services[ServiceName] = svc

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&file); err != nil {
		return Output{}, errors.Wrap(errors.KindRenderError, "failed to encode manifest", err)
	}
	if err := enc.Close(); err != nil {
		return Output{}, errors.Wrap(errors.KindRenderError, "failed to encode manifest", err)
	}

	envText, err := renderEnvFile(env)
	if err != nil {
		return Output{}, err
	}

	return Output{Manifest: buf.String(), EnvFile: envText}, nil
}

func gatewayArgs(def *definition.Definition) []string {
	args := []string{"-n", def.Gateway.Name}
	if def.Mode == definition.ModeRestore {
		args = append(args, "-r", BackupTarget)
	}
	return args
}

func buildMounts(def *definition.Definition, res *paths.Resolved) ([]Mount, error) {
	var mounts []Mount

	if def.DataMount.Type == definition.MountBind {
		if res.DataSource == "" {
			return nil, errors.RenderError("bind data mount was not resolved")
		}
		mounts = append(mounts, Mount{Type: "bind", Source: res.DataSource, Target: DataTarget})
	} else {
		mounts = append(mounts, Mount{Type: "volume", Source: dataVolumeName(def), Target: DataTarget})
	}

	seen := map[string]bool{}
	for _, p := range res.Projects {
		if seen[p.Name] {
			return nil, errors.RenderError(fmt.Sprintf("duplicate project name %q", p.Name))
		}
		seen[p.Name] = true
		mounts = append(mounts, Mount{Type: "bind", Source: p.HostPath, Target: path.Join(ProjectsTarget, p.Name), ReadOnly: true})
	}

	if res.Backup != "" {
		mounts = append(mounts, Mount{Type: "bind", Source: res.Backup, Target: BackupTarget, ReadOnly: true})
	}
	if res.TagExport != "" {
		mounts = append(mounts, Mount{Type: "bind", Source: res.TagExport, Target: path.Join(TagsTarget, filepath.Base(res.TagExport)), ReadOnly: true})
	}
	for _, m := range res.Bundle.ByKind(paths.KindModule) {
		mounts = append(mounts, Mount{Type: "bind", Source: m.HostPath, Target: ModulesTarget, ReadOnly: true})
	}
	for _, d := range res.Bundle.ByKind(paths.KindDriver) {
		mounts = append(mounts, Mount{Type: "bind", Source: d.HostPath, Target: DriversTarget, ReadOnly: true})
	}

	return mounts, nil
}

func dataVolumeName(def *definition.Definition) string {
	if def.DataMount.Source != "" {
		return def.DataMount.Source
	}
	return DefaultDataVolume
}

func buildLimits(r definition.Resources) *ResourceLimits {
	if r.CPUs == 0 && r.MemoryMB == 0 {
		return nil
	}
	limits := &ResourceLimits{}
	if r.CPUs > 0 {
		limits.CPUs = strconv.FormatFloat(r.CPUs, 'f', -1, 64)
	}
	if r.MemoryMB > 0 {
		limits.Memory = fmt.Sprintf("%dM", r.MemoryMB)
	}
	return limits
}

func baseEnv(def *definition.Definition) map[string]string {
	env := map[string]string{
		"ACCEPT_IGNITION_EULA":   "Y",
		"GATEWAY_ADMIN_USERNAME": def.Gateway.AdminUser,
		"IGNITION_EDITION":       def.Gateway.Edition,
		"TZ":                     def.Gateway.Timezone,
		"GATEWAY_MODULE_RELINK":  strconv.FormatBool(def.Gateway.ModuleRelink),
		"GATEWAY_JDBC_RELINK":    strconv.FormatBool(def.Gateway.JDBCRelink),
	}
	if len(def.Gateway.ModulesEnabled) > 0 {
		env["GATEWAY_MODULES_ENABLED"] = strings.Join(def.Gateway.ModulesEnabled, ",")
	}
	if def.Identity != nil {
		env["IGNITION_UID"] = strconv.Itoa(def.Identity.UID)
		env["IGNITION_GID"] = strconv.Itoa(def.Identity.GID)
	}

	switch def.Connection.Type {
	case definition.ConnectionSerial:
		env["SERIAL_DEVICE"] = def.Connection.SerialDevice
		if def.Connection.BaudRate > 0 {
			env["SERIAL_BAUD_RATE"] = strconv.Itoa(def.Connection.BaudRate)
		}
	default:
		if def.Connection.DeviceHost != "" {
			env["DEVICE_HOST"] = def.Connection.DeviceHost
			env["DEVICE_PORT"] = strconv.Itoa(def.Connection.DevicePort)
		}
	}

	// Unset optional values are dropped rather than emitted empty.
	for k, v := range env {
		if v == "" {
			delete(env, k)
		}
	}
	return env
}
