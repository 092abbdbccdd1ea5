// Package directory holds the interfaces the relay consumes but does not
// implement: mapping verified credentials to stable user identities and
// deciding which users may contact each other. The surrounding application
// owns accounts and contact lists; the relay only asks.
package directory

import (
	"errors"
	"strings"
	"sync"
)

var ErrUnknownIdentity = errors.New("unknown identity")

// IdentityResolver maps a verified credential to the stable user identity
// that presence and call routing key on. The user-supplied ID in the
// user-online frame is accepted as-is when no resolver is configured.
type IdentityResolver interface {
	ResolveIdentity(credential, claimedUserID string) (string, error)
}

// ContactDirectory answers whether caller may signal callee. The relay
// treats this as advisory: a deny drops the frame the same way an offline
// callee does.
type ContactDirectory interface {
	MayContact(callerID, calleeID string) bool
}

// ClaimedIdentity trusts the user-online payload verbatim. Dev mode and
// api_key deployments use this; identity is whatever the client claims.
type ClaimedIdentity struct{}

func (ClaimedIdentity) ResolveIdentity(_ string, claimedUserID string) (string, error) {
	id := strings.TrimSpace(claimedUserID)
	if id == "" {
		return "", ErrUnknownIdentity
	}
	return id, nil
}

// SubjectResolver binds identity to a token subject extracted at auth time,
// ignoring the claimed ID. Used with AUTH_MODE=jwt so a client cannot
// impersonate another user by sending a different user-online ID.
type SubjectResolver struct {
	// ExtractSubject returns the stable subject for a verified credential.
	ExtractSubject func(credential string) (string, error)
}

func (r SubjectResolver) ResolveIdentity(credential, _ string) (string, error) {
	sub, err := r.ExtractSubject(credential)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(sub) == "" {
		return "", ErrUnknownIdentity
	}
	return sub, nil
}

// OpenDirectory lets anyone call anyone. The default when no contact
// directory is wired in.
type OpenDirectory struct{}

func (OpenDirectory) MayContact(_, _ string) bool { return true }

// StaticDirectory is a fixed contact graph for dev and tests.
type StaticDirectory struct {
	mu       sync.RWMutex
	contacts map[string]map[string]bool
}

func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{contacts: make(map[string]map[string]bool)}
}

// Allow permits calls in both directions between a and b.
func (d *StaticDirectory) Allow(a, b string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.allowLocked(a, b)
	d.allowLocked(b, a)
}

func (d *StaticDirectory) allowLocked(from, to string) {
	peers, ok := d.contacts[from]
	if !ok {
		peers = make(map[string]bool)
		d.contacts[from] = peers
	}
	peers[to] = true
}

func (d *StaticDirectory) MayContact(callerID, calleeID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.contacts[callerID][calleeID]
}
