package port

import (
	"fmt"
	"sync"

	"github.com/gwsandbox/gwsandbox-ctl/internal/config"
	"github.com/gwsandbox/gwsandbox-ctl/internal/errors"
)

// Allocator hands out host ports from the configured ranges.
type Allocator struct {
	mu       sync.Mutex
	ranges   config.Ports
	reserved map[int]bool
}

// NewAllocator returns an allocator for ranges.
func NewAllocator(ranges config.Ports) *Allocator {
	return &Allocator{
		ranges:   ranges,
		reserved: make(map[int]bool),
	}
}

// Reservation holds a pair of ports until released.
type Reservation struct {
	HTTP  int
	HTTPS int

	a    *Allocator
	once sync.Once
}

// Release returns the ports to the pool of candidates. It is safe to call
// more than once.
func (r *Reservation) Release() {
	if r == nil || r.a == nil {
		return
	}
	r.once.Do(func() {
		r.a.mu.Lock()
		defer r.a.mu.Unlock()
		delete(r.a.reserved, r.HTTP)
		delete(r.a.reserved, r.HTTPS)
	})
}

// Reserve picks the HTTP and HTTPS ports for a new environment. Non-zero
// requests are honoured if free; zero requests are allocated from the
// ranges. used lists the ports held by existing environments.
func (a *Allocator) Reserve(used []int, http, https int) (*Reservation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	taken := make(map[int]bool, len(used)+len(a.reserved))
	for _, p := range used {
		taken[p] = true
	}
	for p := range a.reserved {
		taken[p] = true
	}

	var err error
	if http, err = pick(taken, http, a.ranges.HTTP, "http"); err != nil {
		return nil, err
	}
	taken[http] = true
	if https, err = pick(taken, https, a.ranges.HTTPS, "https"); err != nil {
		return nil, err
	}

	a.reserved[http] = true
	a.reserved[https] = true
	return &Reservation{HTTP: http, HTTPS: https, a: a}, nil
}

// Reserved returns the number of ports currently reserved.
func (a *Allocator) Reserved() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.reserved)
}

func pick(taken map[int]bool, want int, r config.PortRange, label string) (int, error) {
	if want != 0 {
		if taken[want] {
			return 0, errors.InvalidDefinition(fmt.Sprintf("%s port %d is already in use by another environment", label, want))
		}
		return want, nil
	}
	for p := r.From; p <= r.To; p++ {
		if !taken[p] {
			return p, nil
		}
	}
	return 0, errors.New(errors.KindGeneral, fmt.Sprintf("no available %s ports in range %d-%d", label, r.From, r.To))
}
