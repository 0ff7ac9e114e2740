package aggregator

import (
	"sync"
	"testing"
	"time"
)

func TestBackoffRegistry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b := NewBackoffRegistryWithClock(30*time.Second, func() time.Time { return now })

	if blocked, _ := b.Blocked("amazon"); blocked {
		t.Fatal("unknown source should not be blocked")
	}

	b.Record("amazon", 0)

	if blocked, remaining := b.Blocked("amazon"); !blocked || remaining != 30*time.Second {
		t.Errorf("Blocked() = %v, %v; want default backoff", blocked, remaining)
	}

	b.Record("flipkart", 5*time.Second)
	now = now.Add(6 * time.Second)

	if blocked, _ := b.Blocked("flipkart"); blocked {
		t.Error("flipkart backoff should have expired")
	}

	if blocked, remaining := b.Blocked("amazon"); !blocked || remaining != 24*time.Second {
		t.Errorf("Blocked() = %v, %v", blocked, remaining)
	}

	b.Clear("amazon")

	if blocked, _ := b.Blocked("amazon"); blocked {
		t.Error("Clear should lift the backoff")
	}
}

func TestBackoffRegistry_ConcurrentUse(t *testing.T) {
	b := NewBackoffRegistry(time.Minute)

	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			if i%2 == 0 {
				b.Record("amazon", time.Second)
			} else {
				b.Blocked("amazon")
			}
		}(i)
	}

	wg.Wait()

	if blocked, _ := b.Blocked("amazon"); !blocked {
		t.Error("amazon should be blocked after concurrent records")
	}
}
