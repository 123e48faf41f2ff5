package localid

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestGenerateUniqueID_RetriesOnCollision(t *testing.T) {
	r := NewRegistry()
	r.Add("task", -7)

	// Force the first draw to collide with the registered placeholder.
	draws := []int64{7, 7, 99}
	i := 0
	r.randInt63 = func() int64 {
		v := draws[i%len(draws)]
		i++
		return v
	}

	id, err := r.GenerateUniqueID("task")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if id != 99 {
		t.Fatalf("expected the non-colliding draw 99, got %d", id)
	}
	if i < 2 {
		t.Fatalf("expected at least one retry, got %d draws", i)
	}
}

func TestGenerateUniqueID_ErrorsAtRetryCap(t *testing.T) {
	r := NewRegistry()
	r.Add("task", -7)
	r.randInt63 = func() int64 { return 7 }

	if _, err := r.GenerateUniqueID("task"); err == nil {
		t.Fatalf("expected an error once the retry cap is hit")
	}
}

func TestGenerateUniqueID_KeysAreIndependent(t *testing.T) {
	r := NewRegistry()
	r.Add("task", -7)
	r.randInt63 = func() int64 { return 7 }

	id, err := r.GenerateUniqueID("board")
	if err != nil {
		t.Fatalf("generate under other key: %v", err)
	}
	if id != 7 {
		t.Fatalf("expected 7 under an unrelated key, got %d", id)
	}
}

func TestWaitForNewID_ResolvesWithLaterUpdate(t *testing.T) {
	r := NewRegistry()
	r.Add("task", -5)

	type result struct {
		id  int64
		err error
	}
	done := make(chan result, 1)
	go func() {
		id, err := r.WaitForNewID(context.Background(), "task", -5)
		done <- result{id, err}
	}()

	// Give the waiter a moment to block before the update lands.
	time.Sleep(10 * time.Millisecond)
	r.Update("task", -5, 321)

	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("wait: %v", res.err)
		}
		if res.id != 321 {
			t.Fatalf("expected 321, got %d", res.id)
		}
	case <-time.After(time.Second):
		t.Fatalf("wait did not resolve")
	}
}

func TestWaitForNewID_AfterUpdateReturnsImmediately(t *testing.T) {
	r := NewRegistry()
	r.Add("task", -5)
	r.Update("task", -5, 321)

	id, err := r.WaitForNewID(context.Background(), "task", -5)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if id != 321 {
		t.Fatalf("expected 321, got %d", id)
	}
}

func TestWaitForNewID_ManyWaitersOneResolution(t *testing.T) {
	r := NewRegistry()

	const waiters = 8
	var wg sync.WaitGroup
	results := make([]int64, waiters)
	for w := 0; w < waiters; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			// Waiting may begin before Add: the mapping is created on demand.
			id, err := r.WaitForNewID(context.Background(), "task", -9)
			if err != nil {
				t.Errorf("waiter %d: %v", w, err)
				return
			}
			results[w] = id
		}(w)
	}

	time.Sleep(10 * time.Millisecond)
	r.Update("task", -9, 111)
	r.Update("task", -9, 222) // second update must be ignored
	wg.Wait()

	for w, id := range results {
		if id != 111 {
			t.Fatalf("waiter %d got %d, want the first resolution 111", w, id)
		}
	}
	if id, ok := r.Lookup("task", -9); !ok || id != 111 {
		t.Fatalf("lookup after resolution: %d, %v", id, ok)
	}
}

func TestWaitForNewID_ContextCancel(t *testing.T) {
	r := NewRegistry()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := r.WaitForNewID(ctx, "task", -1); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestAdd_Idempotent(t *testing.T) {
	r := NewRegistry()
	r.Add("task", -3)
	r.Update("task", -3, 30)
	r.Add("task", -3) // must not reset the resolved mapping

	if id, ok := r.Lookup("task", -3); !ok || id != 30 {
		t.Fatalf("Add clobbered a resolved mapping: %d, %v", id, ok)
	}
}
