// Package paths resolves the host-side references of an environment
// definition against a fixed environments root.
//
// The root holds a well-known layout, created on demand:
//
//	projects/   gateway project directories (each with project.json)
//	backups/    .gwbk gateway backups
//	tags/       tag exports (.json or .xml)
//	modules/    third-party modules (*.modl)
//	drivers/    JDBC drivers (*.jar)
//	secrets/    activation-token, license-key, gateway-admin-password
//	data/       bind-mounted gateway data directories
//
// Every reference is rejected with InvalidPath if it leaves the root,
// lexically or through a symlink. Resolution never writes files.
//
// Bundle detection is total: a modules directory with at least one readable
// .modl file yields a module resource, a drivers directory with a readable
// .jar yields a driver resource, and each readable non-empty known secret
// file yields a secret resource. Nothing else is classified.
package paths
