package runtime

import (
	"fmt"
	"os"

	"github.com/gwsandbox/gwsandbox-ctl/internal/config"
	"github.com/gwsandbox/gwsandbox-ctl/internal/errors"
	"github.com/gwsandbox/gwsandbox-ctl/internal/logging"
	"github.com/gwsandbox/gwsandbox-ctl/internal/system"
)

// Supported runtime commands in detection order.
const (
	CommandPodman = "podman"
	CommandDocker = "docker"
)

var detectionOrder = []string{CommandPodman, CommandDocker}

// Detect returns the first supported runtime command found in PATH.
func Detect(exec system.CommandExecutor) (string, error) {
	for _, cmd := range detectionOrder {
		if _, err := exec.LookPath(cmd); err == nil {
			logging.Debug("detected container runtime", "command", cmd)
			return cmd, nil
		}
	}
	return "", errors.RuntimeUnavailable("detect",
		fmt.Errorf("no supported container runtime found (tried: podman, docker)"))
}

// Available lists every supported runtime command found in PATH.
func Available(exec system.CommandExecutor) []string {
	var out []string
	for _, cmd := range detectionOrder {
		if _, err := exec.LookPath(cmd); err == nil {
			out = append(out, cmd)
		}
	}
	return out
}

// New builds the compose driver described by cfg. An empty command is
// auto-detected. An engine client is attached when an engine endpoint is
// configured, either in cfg or through DOCKER_HOST.
func New(cfg config.RuntimeConfig, timeouts config.Timeouts, exec system.CommandExecutor) (*ComposeDriver, error) {
	if exec == nil {
		exec = system.DefaultExecutor()
	}

	command := cfg.Command
	if command == "" {
		detected, err := Detect(exec)
		if err != nil {
			return nil, err
		}
		command = detected
	} else if command != CommandDocker && command != CommandPodman {
		return nil, errors.ConfigError(fmt.Sprintf("unsupported runtime command %q", command), nil)
	}

	d := &ComposeDriver{
		Command:     command,
		Exec:        exec,
		CallTimeout: timeouts.RuntimeCall.Duration,
		LogTail:     cfg.LogTail,
	}

	if host := engineHost(cfg); host != "" {
		engine, err := NewEngineClient(host)
		if err != nil {
			logging.Warn("engine client unavailable, falling back to CLI ping", "host", host, "error", err)
		} else {
			d.Engine = engine
		}
	}

	logging.Debug("runtime driver ready", "command", command, "engine", d.Engine != nil,
		"callTimeout", d.CallTimeout)
	return d, nil
}

func engineHost(cfg config.RuntimeConfig) string {
	if cfg.DockerHost != "" {
		return cfg.DockerHost
	}
	return os.Getenv("DOCKER_HOST")
}
