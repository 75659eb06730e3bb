package correlator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ctagard/inspector-broker/internal/wire"
)

// TestAllocateAssignsIncreasingIDs verifies id uniqueness under
// sequential allocation.
func TestAllocateAssignsIncreasingIDs(t *testing.T) {
	c := New()

	id1, _ := c.Allocate()
	id2, _ := c.Allocate()

	if id1 == id2 {
		t.Fatalf("expected distinct ids, got %d twice", id1)
	}
	if id2 <= id1 {
		t.Fatalf("expected id2 (%d) > id1 (%d)", id2, id1)
	}
}

// TestDeliverCompletesAwait verifies the normal fulfill path.
func TestDeliverCompletesAwait(t *testing.T) {
	c := New()
	id, wait := c.Allocate()

	go func() {
		time.Sleep(5 * time.Millisecond)
		c.Deliver(wire.Envelope{ID: id, Result: []byte(`{"ok":true}`)})
	}()

	env, err := c.Await(context.Background(), id, wait, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.ID != id {
		t.Fatalf("expected envelope id %d, got %d", id, env.ID)
	}
}

// TestAwaitTimesOut verifies a command that never receives a response
// expires instead of blocking forever.
func TestAwaitTimesOut(t *testing.T) {
	c := New()
	id, wait := c.Allocate()

	_, err := c.Await(context.Background(), id, wait, 10*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}
}

// TestDeliverIgnoresUnknownID verifies a late or duplicate response
// does not panic and reports it was not delivered.
func TestDeliverIgnoresUnknownID(t *testing.T) {
	c := New()
	if c.Deliver(wire.Envelope{ID: 999}) {
		t.Fatal("expected Deliver to report false for an unknown id")
	}
}

// TestCancelAllWakesEveryPending verifies transport-closure cancellation
// fans out to every outstanding command exactly once.
func TestCancelAllWakesEveryPending(t *testing.T) {
	c := New()

	const n = 5
	var wg sync.WaitGroup
	errs := make(chan error, n)

	for i := 0; i < n; i++ {
		id, wait := c.Allocate()
		wg.Add(1)
		go func(id int, wait <-chan wire.Envelope) {
			defer wg.Done()
			env, err := c.Await(context.Background(), id, wait, time.Second)
			if err != nil {
				errs <- err
				return
			}
			if env.Error == nil {
				errs <- errors.New("expected an error envelope after cancellation")
			}
		}(id, wait)
	}

	time.Sleep(5 * time.Millisecond)
	c.CancelAll(errors.New("connection lost"))
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("unexpected failure: %v", err)
	}
}

// TestEachCommandCompletesExactlyOnce verifies a delivered response
// cannot also be delivered again for the same id.
func TestEachCommandCompletesExactlyOnce(t *testing.T) {
	c := New()
	id, _ := c.Allocate()

	if !c.Deliver(wire.Envelope{ID: id}) {
		t.Fatal("expected first delivery to succeed")
	}
	if c.Deliver(wire.Envelope{ID: id}) {
		t.Fatal("expected second delivery for the same id to be ignored")
	}
}
