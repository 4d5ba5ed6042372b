// Package integration runs environments against a real container runtime.
//
// The tests are skipped unless GWSANDBOX_INTEGRATION_TESTS=1 is set. They
// require:
//   - docker or podman with the compose plugin in PATH
//   - network access to pull the gateway image (override it with
//     GWSANDBOX_TEST_IMAGE=repository:tag)
//   - free host ports in the default allocation ranges
//
// Run with:
//
//	GWSANDBOX_INTEGRATION_TESTS=1 go test -v -timeout 20m ./internal/integration/...
package integration
