// Package config provides configuration types and loading for gwsandbox-ctl.
//
// # Configuration File
//
// The controller reads a TOML file, by default /etc/gwsandbox/config.toml
// (overridable with --config or $GWSANDBOX_CONFIG):
//
//	state_dir = "/var/lib/gwsandbox"
//	environments_root = "/srv/gwsandbox"
//
//	[runtime]
//	command = "docker"
//
//	[timeouts]
//	start_wait = "60s"
//	stop = "30s"
//
//	[ports.http]
//	from = 8088
//	to = 8187
//
// A missing file yields Default(). $GWSANDBOX_STATE_DIR overrides state_dir.
//
// # State Layout
//
// Paths derives the state directories from state_dir:
//
//	registry/<id>.json          environment records
//	environments/<id>/          generated artifacts
//	audit/<id>.events.jsonl     lifecycle events
//
// # Validation
//
// ValidateName and ValidateID check user-facing identifiers. SafePath
// joins a name onto a base directory and rejects traversal.
package config
