// Package orchestrator owns the environment lifecycle.
//
// It ties the path resolver, manifest renderer, artifact writer, registry
// and runtime driver together behind a small set of operations:
//
//	Create   definition -> created
//	Start    created|stopped|error -> starting -> running | error
//	Stop     running|error -> stopping -> stopped | error
//	Delete   created|stopped|error -> (removed)
//
// Every operation on an environment takes that environment's lock with
// TryLock. The lock is also a flock under <state>/locks, so the CLI and a
// running server exclude each other. A second operation on the same id while
// one is in flight fails immediately with Busy; operations on different ids
// run in parallel.
// Records found in starting or stopping without a holder (for example after
// a controller crash) also report Busy until Reconcile resolves them.
//
// The registry is the source of truth. Reconcile compares records that have
// not been touched recently against the runtime's live status and repairs
// transitional states.
//
// Callers only ever see View values, which carry no secret material.
package orchestrator
