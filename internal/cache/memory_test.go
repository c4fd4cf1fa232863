package cache

import (
	"context"
	"sync"
	"testing"
	"time"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemorySetGetRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	if err := m.Set(ctx, "k", payload{Name: "rates", Count: 3}, 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got payload
	found, err := m.Get(ctx, "k", &got)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Fatal("key not found after set")
	}
	if got.Name != "rates" || got.Count != 3 {
		t.Fatalf("got %+v", got)
	}
}

func TestMemoryMissingKey(t *testing.T) {
	m := NewMemory()

	var dest int
	found, err := m.Get(context.Background(), "absent", &dest)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Fatal("absent key reported as found")
	}
}

func TestMemoryTTLExpiry(t *testing.T) {
	m := NewMemory()
	c := &clock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	m.SetClock(c.Now)
	ctx := context.Background()

	if err := m.Set(ctx, "k", 1, 10*time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	remaining, ok := m.TTL("k")
	if !ok || remaining != 10*time.Minute {
		t.Fatalf("TTL = %v, %v; want 10m, true", remaining, ok)
	}

	c.Advance(9 * time.Minute)
	if found, _ := m.Get(ctx, "k", nil); !found {
		t.Fatal("key expired too early")
	}

	c.Advance(2 * time.Minute)
	if found, _ := m.Get(ctx, "k", nil); found {
		t.Fatal("key survived past its TTL")
	}
	if _, ok := m.TTL("k"); ok {
		t.Fatal("TTL reported for expired key")
	}
}

func TestMemoryZeroTTLNeverExpires(t *testing.T) {
	m := NewMemory()
	c := &clock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	m.SetClock(c.Now)
	ctx := context.Background()

	if err := m.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	c.Advance(24 * time.Hour)
	if found, _ := m.Get(ctx, "k", nil); !found {
		t.Fatal("zero-TTL key expired")
	}
	if _, ok := m.TTL("k"); !ok {
		t.Fatal("zero-TTL key should report as present")
	}
}

func TestMemoryDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Set(ctx, "k", "v", 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if found, _ := m.Get(ctx, "k", nil); found {
		t.Fatal("key still present after delete")
	}

	// Deleting an absent key is not an error.
	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete absent: %v", err)
	}
}
