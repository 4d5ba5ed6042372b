// Package runtime provides the boundary to the external container runtime.
//
// The Driver interface hides the runtime's command syntax from the
// orchestrator. ComposeDriver implements it with "docker compose" or
// "podman compose":
//
//	<command> compose -p gws-<id> -f <manifest> --project-directory <dir> up -d
//
// Runtime selection is automatic (podman first, then docker) unless the
// configuration names a command. Engine reachability is checked through the
// engine API when an endpoint is configured, otherwise through
// "<command> info".
//
// A driver failure that means the runtime cannot be reached at all is
// reported as RuntimeUnavailable; a call that exceeds its deadline is
// RuntimeTimeout. A workload that starts and then dies is not an error of
// Up; it is visible through Status.
//
// For testing, NewMockDriver returns an in-memory implementation with call
// recording, error injection and blocking hooks.
package runtime
