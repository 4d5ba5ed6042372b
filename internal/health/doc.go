// Package health checks whether a gateway inside an environment is serving.
//
// The gateway reports its own state at /StatusPing on the published HTTP
// port. A gateway is ready once that endpoint answers 200 with
// {"state":"RUNNING"}; while it is still commissioning or restoring a
// backup it answers with another state or not at all.
//
// # Health Status
//
//	StatusReady    - workload running and gateway reports RUNNING
//	StatusStarting - workload running, gateway not yet RUNNING
//	StatusStopped  - workload not running
//
// # Waiting
//
// WaitFor polls a check with exponential backoff until it passes or the
// timeout elapses:
//
//	err := health.WaitFor(ctx, "readiness", 60*time.Second, func(ctx context.Context) error {
//	    return prober.Check(ctx, rec.Ports.HTTP)
//	})
package health
