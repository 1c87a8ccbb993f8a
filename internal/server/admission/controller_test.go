package admission

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yndnr/kvwait/internal/core/domain"
)

func TestNew_InvalidMax(t *testing.T) {
	for _, n := range []int{0, -1, -100} {
		c, err := New(n)
		if err == nil {
			t.Errorf("New(%d) error = nil, want error", n)
		}
		if c != nil {
			t.Errorf("New(%d) returned non-nil controller", n)
		}
		if !errors.Is(err, domain.ErrInvalidConfig) {
			t.Errorf("New(%d) error = %v, want ErrInvalidConfig", n, err)
		}
	}
}

func TestController_AcquireRelease(t *testing.T) {
	c, err := New(2)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.Max() != 2 {
		t.Errorf("Max() = %d, want 2", c.Max())
	}

	ctx := context.Background()
	if err := c.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if err := c.Acquire(ctx); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if c.Active() != 2 {
		t.Errorf("Active() = %d, want 2", c.Active())
	}

	c.Release()
	c.Release()
	if c.Active() != 0 {
		t.Errorf("Active() = %d, want 0", c.Active())
	}
}

func TestController_ReleaseAtZeroIsNoop(t *testing.T) {
	c, _ := New(1)

	c.Release()
	c.Release()

	if c.Active() != 0 {
		t.Errorf("Active() = %d, want 0", c.Active())
	}
	if err := c.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if c.Active() != 1 {
		t.Errorf("Active() = %d, want 1", c.Active())
	}
}

func TestController_BlocksAtLimit(t *testing.T) {
	c, _ := New(1)
	ctx := context.Background()

	if err := c.Acquire(ctx); err != nil {
		t.Fatal(err)
	}

	admitted := make(chan struct{})
	go func() {
		if err := c.Acquire(ctx); err == nil {
			close(admitted)
		}
	}()

	select {
	case <-admitted:
		t.Fatal("second Acquire should block while the only slot is held")
	case <-time.After(50 * time.Millisecond):
	}
	if c.Waiting() != 1 {
		t.Errorf("Waiting() = %d, want 1", c.Waiting())
	}

	c.Release()

	select {
	case <-admitted:
	case <-time.After(5 * time.Second):
		t.Fatal("waiter not admitted after Release")
	}
	if c.Active() != 1 {
		t.Errorf("Active() = %d, want 1", c.Active())
	}
}

func TestController_CancelWhileWaiting(t *testing.T) {
	c, _ := New(1)
	if err := c.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.Acquire(ctx)
	if !errors.Is(err, domain.ErrAdmissionCancelled) {
		t.Fatalf("Acquire() error = %v, want ErrAdmissionCancelled", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire() error = %v, want to wrap DeadlineExceeded", err)
	}
	if c.Active() != 1 {
		t.Errorf("cancelled Acquire changed Active() to %d", c.Active())
	}
	if c.Waiting() != 0 {
		t.Errorf("Waiting() = %d, want 0", c.Waiting())
	}
}

func TestController_NeverExceedsMax(t *testing.T) {
	const max = 3
	c, _ := New(max)

	var inside, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Acquire(context.Background()); err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			defer c.Release()

			n := inside.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()

	if peak.Load() > max {
		t.Errorf("peak concurrent holders = %d, want <= %d", peak.Load(), max)
	}
	if c.Active() != 0 {
		t.Errorf("Active() = %d after all released, want 0", c.Active())
	}
}

func TestController_FIFO(t *testing.T) {
	c, _ := New(1)
	if err := c.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	const n = 5
	order := make(chan int, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			if err := c.Acquire(context.Background()); err != nil {
				return
			}
			order <- i
		}(i)
		// Let each waiter enqueue before the next one starts.
		deadline := time.Now().Add(time.Second)
		for c.Waiting() != i+1 && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
		// Waiting is counted just before the goroutine parks on the channel.
		time.Sleep(10 * time.Millisecond)
	}

	for want := 0; want < n; want++ {
		c.Release()
		select {
		case got := <-order:
			if got != want {
				t.Errorf("admitted waiter %d, want %d", got, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("waiter %d not admitted", want)
		}
	}
}

type fakeRecorder struct {
	mu       sync.Mutex
	active   int
	waiting  int
	admitted int
}

func (r *fakeRecorder) SetSessionsActive(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = n
}

func (r *fakeRecorder) SetAdmissionWaiting(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.waiting = n
}

func (r *fakeRecorder) SessionAdmitted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.admitted++
}

func TestController_Recorder(t *testing.T) {
	rec := &fakeRecorder{}
	c, _ := New(2, WithRecorder(rec))

	_ = c.Acquire(context.Background())
	_ = c.Acquire(context.Background())
	c.Release()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.admitted != 2 {
		t.Errorf("admitted = %d, want 2", rec.admitted)
	}
	if rec.active != 1 {
		t.Errorf("active = %d, want 1", rec.active)
	}
}
