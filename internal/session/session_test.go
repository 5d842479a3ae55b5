package session

import (
	"testing"
	"time"
)

func TestStoreIsolatesActors(t *testing.T) {
	store := NewStore(time.Minute)

	store.Begin(1, Pending{Kind: KindEnrollID})
	store.Begin(2, Pending{Kind: KindDeleteUser})

	p1, ok := store.Get(1)
	if !ok || p1.Kind != KindEnrollID {
		t.Fatalf("expected actor 1 to have a pending enrollment, got %+v ok=%v", p1, ok)
	}

	p2, ok := store.Get(2)
	if !ok || p2.Kind != KindDeleteUser {
		t.Fatalf("expected actor 2 to have a pending deletion, got %+v ok=%v", p2, ok)
	}

	store.Clear(1)
	if _, ok := store.Get(1); ok {
		t.Fatalf("expected actor 1 record to be cleared")
	}
	if _, ok := store.Get(2); !ok {
		t.Fatalf("expected actor 2 record to survive actor 1 clear")
	}
}

func TestStoreExpiresRecords(t *testing.T) {
	store := NewStore(time.Minute)

	current := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	store.Begin(1, Pending{Kind: KindAddGroup})

	current = current.Add(30 * time.Second)
	if _, ok := store.Get(1); !ok {
		t.Fatalf("expected record to be live before expiry")
	}

	current = current.Add(31 * time.Second)
	if _, ok := store.Get(1); ok {
		t.Fatalf("expected record to expire after ttl")
	}
}

func TestAdvanceKeepsRemainingLifetime(t *testing.T) {
	store := NewStore(time.Minute)

	current := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	store.Begin(1, Pending{Kind: KindEnrollID})
	store.Advance(1, Pending{Kind: KindEnrollName, UserID: 42})

	p, ok := store.Get(1)
	if !ok {
		t.Fatalf("expected advanced record to exist")
	}
	if p.Kind != KindEnrollName || p.UserID != 42 {
		t.Fatalf("expected advanced stash, got %+v", p)
	}

	current = current.Add(61 * time.Second)
	if _, ok := store.Get(1); ok {
		t.Fatalf("expected advanced record to expire on the original deadline")
	}
}

func TestAwaitingGroupChoice(t *testing.T) {
	tests := []struct {
		pending Pending
		want    bool
	}{
		{Pending{Kind: KindAttachChat}, true},
		{Pending{Kind: KindBroadcast}, true},
		{Pending{Kind: KindDetachChat, GroupTitle: "Ops"}, false},
		{Pending{Kind: KindEnrollID}, false},
	}

	for _, tt := range tests {
		if got := tt.pending.AwaitingGroupChoice(); got != tt.want {
			t.Fatalf("AwaitingGroupChoice(%+v) = %v, want %v", tt.pending, got, tt.want)
		}
	}
}

func TestValidIDText(t *testing.T) {
	valid := []string{"0", "42", "-100200300"}
	for _, text := range valid {
		if !ValidIDText(text) {
			t.Fatalf("expected %q to validate", text)
		}
	}

	invalid := []string{"", "abc", "12a", "--5", "4 2", "+7"}
	for _, text := range invalid {
		if ValidIDText(text) {
			t.Fatalf("expected %q to fail validation", text)
		}
	}
}
