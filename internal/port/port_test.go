package port

import (
	"sync"
	"testing"

	"github.com/gwsandbox/gwsandbox-ctl/internal/config"
	"github.com/gwsandbox/gwsandbox-ctl/internal/errors"
)

func testRanges() config.Ports {
	return config.Ports{
		HTTP:  config.PortRange{From: 8088, To: 8090},
		HTTPS: config.PortRange{From: 8243, To: 8245},
	}
}

func TestReserve_Empty(t *testing.T) {
	a := NewAllocator(testRanges())

	res, err := a.Reserve(nil, 0, 0)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if res.HTTP != 8088 || res.HTTPS != 8243 {
		t.Errorf("ports = %d/%d, want 8088/8243", res.HTTP, res.HTTPS)
	}
}

func TestReserve_SkipsUsed(t *testing.T) {
	a := NewAllocator(testRanges())

	res, err := a.Reserve([]int{8088, 8243, 8244}, 0, 0)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if res.HTTP != 8089 || res.HTTPS != 8245 {
		t.Errorf("ports = %d/%d, want 8089/8245", res.HTTP, res.HTTPS)
	}
}

func TestReserve_GapInPorts(t *testing.T) {
	a := NewAllocator(testRanges())

	res, err := a.Reserve([]int{8088, 8090}, 0, 0)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if res.HTTP != 8089 {
		t.Errorf("http = %d, want 8089 (first gap)", res.HTTP)
	}
}

func TestReserve_Explicit(t *testing.T) {
	a := NewAllocator(testRanges())

	res, err := a.Reserve(nil, 9000, 9443)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if res.HTTP != 9000 || res.HTTPS != 9443 {
		t.Errorf("ports = %d/%d, want 9000/9443", res.HTTP, res.HTTPS)
	}

	if _, err := a.Reserve([]int{9100}, 9100, 0); !errors.Is(err, errors.ErrInvalidDefinition) {
		t.Errorf("Reserve(used port) error = %v, want InvalidDefinition", err)
	}
}

func TestReserve_Exhausted(t *testing.T) {
	a := NewAllocator(testRanges())

	_, err := a.Reserve([]int{8088, 8089, 8090}, 0, 0)
	if err == nil {
		t.Error("Expected error when ports exhausted, got nil")
	}
}

func TestReserve_HeldUntilRelease(t *testing.T) {
	a := NewAllocator(testRanges())

	first, err := a.Reserve(nil, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	second, err := a.Reserve(nil, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if second.HTTP == first.HTTP || second.HTTPS == first.HTTPS {
		t.Errorf("reservations overlap: %+v %+v", first, second)
	}

	first.Release()
	first.Release()
	third, err := a.Reserve(nil, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if third.HTTP != first.HTTP {
		t.Errorf("released port not reused: got %d, want %d", third.HTTP, first.HTTP)
	}
	if a.Reserved() != 4 {
		t.Errorf("Reserved() = %d, want 4", a.Reserved())
	}
}

func TestReserve_Concurrent(t *testing.T) {
	a := NewAllocator(config.Ports{
		HTTP:  config.PortRange{From: 10000, To: 10099},
		HTTPS: config.PortRange{From: 11000, To: 11099},
	})

	var mu sync.Mutex
	seen := make(map[int]bool)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := a.Reserve(nil, 0, 0)
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			for _, p := range []int{res.HTTP, res.HTTPS} {
				if seen[p] {
					t.Errorf("port %d handed out twice", p)
				}
				seen[p] = true
			}
		}()
	}
	wg.Wait()
}
