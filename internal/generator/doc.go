// Package generator renders an environment definition into a compose
// manifest and an env file.
//
// Render is a pure function of the definition and the resolved resources:
//
//	out, err := generator.Render(def, resolved)
//	// out.Manifest: compose.yaml
//	// out.EnvFile:  gateway.env
//
// # Manifest
//
// The manifest declares one service, "gateway", with long-form port and
// mount entries. Project directories, the restore backup, the tag export,
// module and driver bundles are bind mounted read-only. The data directory
// is a named volume or a bind mount.
//
// # Secrets
//
// Detected secrets become top-level compose secrets backed by their host
// file path. The service mounts them under /run/secrets and the env file
// sets the matching *_FILE variable:
//
//	IGNITION_ACTIVATION_TOKEN_FILE=/run/secrets/activation-token
//
// Secret contents are never read by this package.
//
// # Errors
//
// Structural conflicts such as restore mode without a backup are reported
// as RenderError. Validate runs the same checks without resolved resources.
package generator
