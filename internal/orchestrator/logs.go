package orchestrator

import (
	"context"
	"io"

	"github.com/gwsandbox/gwsandbox-ctl/internal/logstream"
)

// StreamLogs attaches a consumer to the environment's log stream. All
// consumers of one environment share a single runtime log process, which
// ends when the last consumer closes its subscription. The subscription's
// channel closes when the runtime ends the stream; this does not mean the
// environment stopped, and callers may subscribe again.
func (o *Orchestrator) StreamLogs(ctx context.Context, id string) (*logstream.Subscription, error) {
	rec, err := o.registry.Get(id)
	if err != nil {
		return nil, err
	}
	h := handleOf(rec)
	return o.logs.Subscribe(ctx, id, func(streamCtx context.Context) (io.ReadCloser, error) {
		return o.driver.Logs(streamCtx, h)
	})
}

// LogConsumers returns the number of consumers attached to id's stream.
func (o *Orchestrator) LogConsumers(id string) int {
	return o.logs.Consumers(id)
}
