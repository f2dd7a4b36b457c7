package esign

import (
	"fmt"
	"testing"
	"time"
)

func newTestRegistry(ttl time.Duration, capacity int) (*Registry, *time.Time) {
	reg := NewRegistry(ttl, capacity)
	current := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return current }
	return reg, &current
}

func TestRegistryGetAndCaseInsensitiveKey(t *testing.T) {
	reg, clock := newTestRegistry(time.Hour, 4)
	reg.Put(&Session{Email: "Admin@Example.com", CreatedAt: *clock})

	if _, ok := reg.Get("admin@example.com"); !ok {
		t.Fatal("expected session under normalized key")
	}
}

func TestRegistryTTLExpiry(t *testing.T) {
	reg, clock := newTestRegistry(time.Hour, 4)
	reg.Put(&Session{Email: "admin@example.com", CreatedAt: *clock})

	*clock = clock.Add(2 * time.Hour)
	if _, ok := reg.Get("admin@example.com"); ok {
		t.Fatal("expected expired session to be dropped")
	}
	if reg.Len() != 0 {
		t.Fatalf("expired session must be evicted, len=%d", reg.Len())
	}
}

func TestRegistryCapacityEvictsOldest(t *testing.T) {
	reg, clock := newTestRegistry(time.Hour, 3)
	base := *clock
	for i := 0; i < 3; i++ {
		reg.Put(&Session{
			Email:     fmt.Sprintf("admin%d@example.com", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	reg.Put(&Session{Email: "new@example.com", CreatedAt: base.Add(10 * time.Minute)})

	if reg.Len() != 3 {
		t.Fatalf("registry must stay bounded, len=%d", reg.Len())
	}
	if _, ok := reg.Get("admin0@example.com"); ok {
		t.Fatal("oldest session should have been evicted")
	}
	if _, ok := reg.Get("new@example.com"); !ok {
		t.Fatal("newest session must be present")
	}
}

func TestRegistryPutReplacesExisting(t *testing.T) {
	reg, clock := newTestRegistry(time.Hour, 2)
	reg.Put(&Session{Email: "admin@example.com", AccessToken: "old", CreatedAt: *clock})
	reg.Put(&Session{Email: "admin@example.com", AccessToken: "new", CreatedAt: clock.Add(time.Minute)})

	session, ok := reg.Get("admin@example.com")
	if !ok || session.AccessToken != "new" {
		t.Fatalf("expected replacement, got %+v", session)
	}
	if reg.Len() != 1 {
		t.Fatalf("replacement must not grow the registry, len=%d", reg.Len())
	}
}

func TestSessionExpiryBuffer(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	session := &Session{TokenExpiry: now.Add(5 * time.Minute)}
	if !session.expiredAt(now) {
		t.Fatal("token inside the refresh buffer must count as expired")
	}

	session = &Session{TokenExpiry: now.Add(30 * time.Minute)}
	if session.expiredAt(now) {
		t.Fatal("token outside the buffer must still be valid")
	}
}
