package performance

import (
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"uninotes/pkg/errors"
)

func TestInFlightRejectsConcurrentDuplicate(t *testing.T) {
	f := NewInFlight()
	key := Key("browser", "save-note")

	started := make(chan struct{})
	release := make(chan struct{})
	var calls int32

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.Do(key, func() error {
			atomic.AddInt32(&calls, 1)
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	err := f.Do(key, func() error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	if !errors.Is(err, errors.ErrInFlight) {
		t.Fatalf("second Do err = %v, want ErrInFlight", err)
	}
	if !f.Busy(key) {
		t.Fatal("key should be busy")
	}

	// Other keys are independent.
	if err := f.Do(Key("other", "save-note"), func() error { return nil }); err != nil {
		t.Fatalf("independent key rejected: %v", err)
	}

	close(release)
	wg.Wait()
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}

	// After completion the key is free again and errors pass through.
	boom := stderrors.New("boom")
	if err := f.Do(key, func() error { return boom }); err != boom {
		t.Fatalf("err = %v, want boom", err)
	}
	if f.Busy(key) {
		t.Fatal("key still busy after failure")
	}
}

func TestDebouncerCollapsesBursts(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	var calls int32
	for i := 0; i < 5; i++ {
		d.Debounce("ns", func() { atomic.AddInt32(&calls, 1) })
	}
	d.Debounce("other", func() { atomic.AddInt32(&calls, 10) })

	if d.Pending() != 2 {
		t.Fatalf("Pending = %d", d.Pending())
	}
	time.Sleep(150 * time.Millisecond)
	if got := atomic.LoadInt32(&calls); got != 11 {
		t.Fatalf("calls = %d, want 11", got)
	}
}

func TestDebouncerStop(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var calls int32
	d.Debounce("ns", func() { atomic.AddInt32(&calls, 1) })
	d.Stop()
	d.Debounce("ns", func() { atomic.AddInt32(&calls, 1) })
	time.Sleep(80 * time.Millisecond)
	if calls != 0 {
		t.Fatalf("calls after Stop = %d", calls)
	}
}
