package runtime

import (
	"context"
	"fmt"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
)

// EngineClient pings a Docker-compatible engine API directly.
type EngineClient struct {
	inner *client.Client
}

// NewEngineClient creates a client from the environment, optionally pinned
// to host (e.g. "unix:///run/podman/podman.sock").
func NewEngineClient(host string) (*EngineClient, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}
	inner, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create engine client: %w", err)
	}
	return &EngineClient{inner: inner}, nil
}

// Ping validates connectivity to the engine.
func (c *EngineClient) Ping(ctx context.Context) error {
	if c == nil || c.inner == nil {
		return fmt.Errorf("engine client not initialized")
	}
	var ping types.Ping
	ping, err := c.inner.Ping(ctx)
	if err != nil {
		return fmt.Errorf("engine ping: %w", err)
	}
	if ping.APIVersion == "" {
		return fmt.Errorf("engine ping returned empty API version")
	}
	return nil
}

// Close releases the underlying connection.
func (c *EngineClient) Close() error {
	if c == nil || c.inner == nil {
		return nil
	}
	return c.inner.Close()
}
