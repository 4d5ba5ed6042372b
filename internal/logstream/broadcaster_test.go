package logstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeSource hands out io.Pipe readers and records how often it was opened
// and whether the reader was closed.
type pipeSource struct {
	mu     sync.Mutex
	opens  int
	writer *io.PipeWriter
	closed chan struct{}
}

type trackedReader struct {
	*io.PipeReader
	once   sync.Once
	closed chan struct{}
}

func (r *trackedReader) Close() error {
	r.once.Do(func() { close(r.closed) })
	return r.PipeReader.Close()
}

func (p *pipeSource) open(ctx context.Context) (io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pr, pw := io.Pipe()
	p.opens++
	p.writer = pw
	p.closed = make(chan struct{})
	return &trackedReader{PipeReader: pr, closed: p.closed}, nil
}

func (p *pipeSource) write(t *testing.T, line string) {
	t.Helper()
	p.mu.Lock()
	w := p.writer
	p.mu.Unlock()
	_, err := fmt.Fprintln(w, line)
	require.NoError(t, err)
}

func (p *pipeSource) end() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writer.Close()
}

func (p *pipeSource) openCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opens
}

func recv(t *testing.T, sub *Subscription) string {
	t.Helper()
	select {
	case line, ok := <-sub.Lines():
		require.True(t, ok, "channel closed unexpectedly")
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for line")
		return ""
	}
}

func waitClosed(t *testing.T, sub *Subscription) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-sub.Lines():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for channel close")
		}
	}
}

func TestSubscribe_SharesOneSource(t *testing.T) {
	src := &pipeSource{}
	b := New(8)
	ctx := context.Background()

	a, err := b.Subscribe(ctx, "env", src.open)
	require.NoError(t, err)
	c, err := b.Subscribe(ctx, "env", src.open)
	require.NoError(t, err)
	defer a.Close()
	defer c.Close()

	assert.Equal(t, 1, src.openCount())
	assert.Equal(t, 2, b.Consumers("env"))

	src.write(t, "gateway | started")
	assert.Equal(t, "gateway | started", recv(t, a))
	assert.Equal(t, "gateway | started", recv(t, c))
}

func TestDetach_OthersUnaffected(t *testing.T) {
	src := &pipeSource{}
	b := New(8)
	ctx := context.Background()

	a, err := b.Subscribe(ctx, "env", src.open)
	require.NoError(t, err)
	c, err := b.Subscribe(ctx, "env", src.open)
	require.NoError(t, err)
	defer c.Close()

	a.Close()
	a.Close()
	waitClosed(t, a)

	src.write(t, "still here")
	assert.Equal(t, "still here", recv(t, c))
	assert.Equal(t, 1, b.Consumers("env"))
}

func TestDetach_LastClosesSource(t *testing.T) {
	src := &pipeSource{}
	b := New(8)

	a, err := b.Subscribe(context.Background(), "env", src.open)
	require.NoError(t, err)
	a.Close()

	select {
	case <-src.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("source not closed after last detach")
	}
	assert.Equal(t, 0, b.Active())
}

func TestSourceEnd_ClosesAllAndReopens(t *testing.T) {
	src := &pipeSource{}
	b := New(8)
	ctx := context.Background()

	a, err := b.Subscribe(ctx, "env", src.open)
	require.NoError(t, err)
	c, err := b.Subscribe(ctx, "env", src.open)
	require.NoError(t, err)

	src.end()
	waitClosed(t, a)
	waitClosed(t, c)
	a.Close()
	c.Close()

	require.Eventually(t, func() bool { return b.Active() == 0 }, 2*time.Second, 10*time.Millisecond)

	again, err := b.Subscribe(ctx, "env", src.open)
	require.NoError(t, err)
	defer again.Close()
	assert.Equal(t, 2, src.openCount())

	src.write(t, "restarted")
	assert.Equal(t, "restarted", recv(t, again))
}

func TestSlowConsumerDropsLines(t *testing.T) {
	src := &pipeSource{}
	b := New(4)
	var drops atomic.Int64
	b.OnDrop = func(string) { drops.Add(1) }
	ctx := context.Background()

	slow, err := b.Subscribe(ctx, "env", src.open)
	require.NoError(t, err)
	defer slow.Close()
	fast, err := b.Subscribe(ctx, "env", src.open)
	require.NoError(t, err)
	defer fast.Close()

	const n = 20
	for i := 0; i < n; i++ {
		src.write(t, fmt.Sprintf("line %d", i))
		assert.Equal(t, fmt.Sprintf("line %d", i), recv(t, fast))
	}

	require.Eventually(t, func() bool { return drops.Load() == n-4 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "line 0", recv(t, slow))
}

func TestSubscribe_ContextCancelDetaches(t *testing.T) {
	src := &pipeSource{}
	b := New(8)

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := b.Subscribe(ctx, "env", src.open)
	require.NoError(t, err)

	cancel()
	waitClosed(t, sub)
	require.Eventually(t, func() bool { return b.Active() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSubscribe_OpenError(t *testing.T) {
	b := New(8)
	boom := errors.New("runtime gone")

	_, err := b.Subscribe(context.Background(), "env", func(context.Context) (io.ReadCloser, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, b.Active())
}

func TestSeparateKeys(t *testing.T) {
	one, two := &pipeSource{}, &pipeSource{}
	b := New(8)
	ctx := context.Background()

	a, err := b.Subscribe(ctx, "one", one.open)
	require.NoError(t, err)
	defer a.Close()
	c, err := b.Subscribe(ctx, "two", two.open)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, 2, b.Active())
	two.write(t, "from two")
	assert.Equal(t, "from two", recv(t, c))

	select {
	case line := <-a.Lines():
		t.Fatalf("unexpected line on other key: %q", line)
	default:
	}
}

func TestSubscribe_OpenDoesNotBlockOtherKeys(t *testing.T) {
	b := New(8)
	gate := make(chan struct{})
	entered := make(chan struct{})
	slow := func(context.Context) (io.ReadCloser, error) {
		close(entered)
		<-gate
		pr, _ := io.Pipe()
		return pr, nil
	}

	slowSub := make(chan *Subscription, 1)
	go func() {
		sub, err := b.Subscribe(context.Background(), "slow", slow)
		assert.NoError(t, err)
		slowSub <- sub
	}()
	<-entered

	fast := &pipeSource{}
	fastSub := make(chan *Subscription, 1)
	go func() {
		sub, err := b.Subscribe(context.Background(), "fast", fast.open)
		assert.NoError(t, err)
		fastSub <- sub
	}()

	select {
	case sub := <-fastSub:
		require.NotNil(t, sub)
		sub.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("subscribing to one key waited on another key's open")
	}

	close(gate)
	sub := <-slowSub
	require.NotNil(t, sub)
	sub.Close()
}

func TestSubscribe_ConcurrentOpenSameKey(t *testing.T) {
	b := New(8)
	var opens atomic.Int32
	both := make(chan struct{})
	var mu sync.Mutex
	var readers []*trackedReader
	open := func(context.Context) (io.ReadCloser, error) {
		if opens.Add(1) == 2 {
			close(both)
		}
		<-both
		pr, _ := io.Pipe()
		r := &trackedReader{PipeReader: pr, closed: make(chan struct{})}
		mu.Lock()
		readers = append(readers, r)
		mu.Unlock()
		return r, nil
	}

	subs := make(chan *Subscription, 2)
	for i := 0; i < 2; i++ {
		go func() {
			sub, err := b.Subscribe(context.Background(), "env", open)
			assert.NoError(t, err)
			subs <- sub
		}()
	}
	first, second := <-subs, <-subs
	require.NotNil(t, first)
	require.NotNil(t, second)

	assert.Equal(t, 1, b.Active())
	assert.Equal(t, 2, b.Consumers("env"))

	closedCount := func() int {
		mu.Lock()
		defer mu.Unlock()
		n := 0
		for _, r := range readers {
			select {
			case <-r.closed:
				n++
			default:
			}
		}
		return n
	}
	assert.Equal(t, 1, closedCount(), "the losing open must be closed")

	first.Close()
	second.Close()
	require.Eventually(t, func() bool { return closedCount() == 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestSourceEnd_ReleasesWatchers(t *testing.T) {
	src := &pipeSource{}
	b := New(8)
	base := runtime.NumGoroutine()

	subs := make([]*Subscription, 20)
	for i := range subs {
		var err error
		subs[i], err = b.Subscribe(context.Background(), "env", src.open)
		require.NoError(t, err)
	}
	src.end()
	for _, sub := range subs {
		waitClosed(t, sub)
	}

	// Subscriptions whose context never ends must not keep a goroutine
	// alive once their stream is over.
	require.Eventually(t, func() bool { return runtime.NumGoroutine() <= base+2 }, 2*time.Second, 10*time.Millisecond,
		"goroutines: base %d, now %d", base, runtime.NumGoroutine())
}
