package logstream

import (
	"bufio"
	"context"
	"io"
	"sync"

	"github.com/gwsandbox/gwsandbox-ctl/internal/logging"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 256

// maxLineSize bounds a single log line.
const maxLineSize = 1 << 20

// Source opens the underlying stream for a key. The returned reader is
// closed when the stream is no longer needed; ctx is cancelled at the same
// time.
type Source func(ctx context.Context) (io.ReadCloser, error)

// Broadcaster multiplexes sources by key.
type Broadcaster struct {
	mu      sync.Mutex
	streams map[string]*stream
	buffer  int

	// OnDrop, when set, is called for every line a slow subscriber misses.
	OnDrop func(key string)
}

type stream struct {
	key       string
	reader    io.ReadCloser
	cancel    context.CancelFunc
	consumers map[int]chan string
	nextID    int
	ended     bool
	// done is closed once the pump has exited.
	done chan struct{}
}

// New returns a Broadcaster whose subscribers buffer up to buffer lines.
func New(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broadcaster{
		streams: make(map[string]*stream),
		buffer:  buffer,
	}
}

// Subscription is one consumer's view of a stream.
type Subscription struct {
	b      *Broadcaster
	s      *stream
	id     int
	lines  chan string
	once   sync.Once
	closed chan struct{}
}

// Lines delivers log lines without trailing newlines. It is closed when the
// source ends or the subscription is closed.
func (s *Subscription) Lines() <-chan string {
	return s.lines
}

// Close detaches this consumer. Other consumers are unaffected.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.closed)
		s.b.detach(s.s, s.id)
	})
}

// Subscribe attaches a consumer to the stream for key, opening it with open
// if no stream is active. The subscription is closed automatically when ctx
// is done.
func (b *Broadcaster) Subscribe(ctx context.Context, key string, open Source) (*Subscription, error) {
	b.mu.Lock()
	s, ok := b.streams[key]
	var spare *stream
	if !ok {
		// open may block on the runtime; other keys must not wait on it.
		b.mu.Unlock()
		fresh, err := b.open(key, open)
		if err != nil {
			return nil, err
		}
		b.mu.Lock()
		if s, ok = b.streams[key]; ok {
			spare = fresh
		} else {
			s = fresh
			b.streams[key] = s
			logging.Debug("log stream opened", "key", key)
			go b.pump(s)
		}
	}

	id := s.nextID
	s.nextID++
	ch := make(chan string, b.buffer)
	s.consumers[id] = ch
	b.mu.Unlock()

	if spare != nil {
		// Lost the race to another subscriber for the same key.
		spare.cancel()
		spare.reader.Close()
	}

	sub := &Subscription{b: b, s: s, id: id, lines: ch, closed: make(chan struct{})}
	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.closed:
		case <-s.done:
		}
	}()
	return sub, nil
}

// Consumers returns the number of subscribers attached to key.
func (b *Broadcaster) Consumers(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok := b.streams[key]; ok {
		return len(s.consumers)
	}
	return 0
}

// Active returns the number of open sources.
func (b *Broadcaster) Active() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.streams)
}

// Close ends every stream and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	streams := make([]*stream, 0, len(b.streams))
	for _, s := range b.streams {
		streams = append(streams, s)
	}
	b.mu.Unlock()

	for _, s := range streams {
		s.cancel()
		s.reader.Close()
	}
}

// open starts a source for key. It must be called without b.mu held.
func (b *Broadcaster) open(key string, open Source) (*stream, error) {
	ctx, cancel := context.WithCancel(context.Background())
	rc, err := open(ctx)
	if err != nil {
		cancel()
		return nil, err
	}
	return &stream{
		key:       key,
		reader:    rc,
		cancel:    cancel,
		consumers: make(map[int]chan string),
		done:      make(chan struct{}),
	}, nil
}

func (b *Broadcaster) pump(s *stream) {
	defer close(s.done)

	scanner := bufio.NewScanner(s.reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		b.mu.Lock()
		for _, ch := range s.consumers {
			select {
			case ch <- line:
			default:
				if b.OnDrop != nil {
					b.OnDrop(s.key)
				}
			}
		}
		b.mu.Unlock()
	}
	if err := scanner.Err(); err != nil {
		logging.Debug("log stream ended", "key", s.key, "error", err)
	}

	b.mu.Lock()
	s.ended = true
	for id, ch := range s.consumers {
		close(ch)
		delete(s.consumers, id)
	}
	if b.streams[s.key] == s {
		delete(b.streams, s.key)
	}
	b.mu.Unlock()

	s.cancel()
	s.reader.Close()
}

func (b *Broadcaster) detach(s *stream, id int) {
	b.mu.Lock()
	ch, ok := s.consumers[id]
	if !ok {
		// The stream already ended and closed the channel.
		b.mu.Unlock()
		return
	}
	delete(s.consumers, id)
	close(ch)

	last := len(s.consumers) == 0 && !s.ended
	if last && b.streams[s.key] == s {
		delete(b.streams, s.key)
	}
	b.mu.Unlock()

	if last {
		logging.Debug("last log consumer detached", "key", s.key)
		s.cancel()
		s.reader.Close()
	}
}
