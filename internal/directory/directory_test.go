package directory

import (
	"errors"
	"testing"
)

func TestClaimedIdentity(t *testing.T) {
	id, err := ClaimedIdentity{}.ResolveIdentity("ignored", "  alice ")
	if err != nil {
		t.Fatalf("ResolveIdentity: %v", err)
	}
	if id != "alice" {
		t.Fatalf("id=%q, want alice", id)
	}

	if _, err := (ClaimedIdentity{}).ResolveIdentity("ignored", "   "); !errors.Is(err, ErrUnknownIdentity) {
		t.Fatalf("err=%v, want ErrUnknownIdentity", err)
	}
}

func TestSubjectResolver_IgnoresClaimedID(t *testing.T) {
	r := SubjectResolver{
		ExtractSubject: func(string) (string, error) { return "user-42", nil },
	}
	id, err := r.ResolveIdentity("tok", "impersonated")
	if err != nil {
		t.Fatalf("ResolveIdentity: %v", err)
	}
	if id != "user-42" {
		t.Fatalf("id=%q, want user-42", id)
	}
}

func TestSubjectResolver_EmptySubject(t *testing.T) {
	r := SubjectResolver{
		ExtractSubject: func(string) (string, error) { return "", nil },
	}
	if _, err := r.ResolveIdentity("tok", "x"); !errors.Is(err, ErrUnknownIdentity) {
		t.Fatalf("err=%v, want ErrUnknownIdentity", err)
	}
}

func TestStaticDirectory(t *testing.T) {
	d := NewStaticDirectory()
	d.Allow("alice", "bob")

	if !d.MayContact("alice", "bob") || !d.MayContact("bob", "alice") {
		t.Fatalf("expected alice and bob to be mutual contacts")
	}
	if d.MayContact("alice", "mallory") {
		t.Fatalf("expected alice->mallory to be denied")
	}
}

func TestOpenDirectory(t *testing.T) {
	if !(OpenDirectory{}).MayContact("anyone", "else") {
		t.Fatalf("open directory must allow all pairs")
	}
}
