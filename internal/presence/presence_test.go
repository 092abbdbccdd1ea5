package presence

import (
	"sort"
	"testing"
)

type fakeConn struct {
	id string
}

func (c *fakeConn) ID() string { return c.id }

type recordingSink struct {
	events []presenceEvent
}

type presenceEvent struct {
	userID string
	online bool
}

func (s *recordingSink) PresenceChanged(userID string, online bool) {
	s.events = append(s.events, presenceEvent{userID: userID, online: online})
}

func TestRegistry_SetOnlineIsIdempotent(t *testing.T) {
	sink := &recordingSink{}
	r := NewRegistry(sink)
	h := &fakeConn{id: "c1"}

	r.SetOnline("alice", h)
	r.SetOnline("alice", h)

	got, ok := r.Lookup("alice")
	if !ok || got != h {
		t.Fatalf("Lookup(alice) = %v, %v; want %v, true", got, ok, h)
	}
	if len(r.OnlineUsers()) != 1 {
		t.Fatalf("OnlineUsers=%v, want exactly one entry", r.OnlineUsers())
	}
	// One broadcast per distinct call.
	if len(sink.events) != 2 {
		t.Fatalf("sink events=%v, want 2 online transitions", sink.events)
	}
	for _, ev := range sink.events {
		if ev.userID != "alice" || !ev.online {
			t.Fatalf("unexpected event %+v", ev)
		}
	}
}

func TestRegistry_ReconnectOverwrites(t *testing.T) {
	r := NewRegistry(nil)
	h1 := &fakeConn{id: "c1"}
	h2 := &fakeConn{id: "c2"}

	r.SetOnline("alice", h1)
	r.SetOnline("alice", h2)

	if got, _ := r.Lookup("alice"); got != h2 {
		t.Fatalf("Lookup(alice) = %v, want %v", got, h2)
	}

	// Stale disconnect from the old handle must be a no-op.
	if removed := r.RemoveIfCurrent("alice", h1); removed {
		t.Fatalf("RemoveIfCurrent with stale handle removed the entry")
	}
	if got, _ := r.Lookup("alice"); got != h2 {
		t.Fatalf("Lookup(alice) after stale remove = %v, want %v", got, h2)
	}
}

func TestRegistry_GuardedDisconnect(t *testing.T) {
	sink := &recordingSink{}
	r := NewRegistry(sink)
	h1 := &fakeConn{id: "c1"}
	h2 := &fakeConn{id: "c2"}

	r.SetOnline("alice", h1)
	r.SetOnline("alice", h2)

	if removed := r.RemoveIfCurrent("alice", h1); removed {
		t.Fatalf("stale RemoveIfCurrent returned true")
	}
	if _, ok := r.Lookup("alice"); !ok {
		t.Fatalf("entry missing after stale remove")
	}

	if removed := r.RemoveIfCurrent("alice", h2); !removed {
		t.Fatalf("current RemoveIfCurrent returned false")
	}
	if _, ok := r.Lookup("alice"); ok {
		t.Fatalf("entry present after current remove")
	}

	// Two online transitions followed by exactly one offline.
	want := []presenceEvent{
		{userID: "alice", online: true},
		{userID: "alice", online: true},
		{userID: "alice", online: false},
	}
	if len(sink.events) != len(want) {
		t.Fatalf("sink events=%v, want %v", sink.events, want)
	}
	for i := range want {
		if sink.events[i] != want[i] {
			t.Fatalf("event[%d]=%+v, want %+v", i, sink.events[i], want[i])
		}
	}
}

func TestRegistry_RemoveUnknownUserIsNoop(t *testing.T) {
	sink := &recordingSink{}
	r := NewRegistry(sink)

	if removed := r.RemoveIfCurrent("ghost", &fakeConn{id: "c1"}); removed {
		t.Fatalf("RemoveIfCurrent on absent user returned true")
	}
	if len(sink.events) != 0 {
		t.Fatalf("sink events=%v, want none", sink.events)
	}
}

func TestRegistry_OnlineUsersSnapshot(t *testing.T) {
	r := NewRegistry(nil)
	r.SetOnline("alice", &fakeConn{id: "c1"})
	r.SetOnline("bob", &fakeConn{id: "c2"})

	users := r.OnlineUsers()
	sort.Strings(users)
	if len(users) != 2 || users[0] != "alice" || users[1] != "bob" {
		t.Fatalf("OnlineUsers=%v, want [alice bob]", users)
	}
}
