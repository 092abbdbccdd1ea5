package turnrest

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Package turnrest issues coturn-compatible ephemeral TURN credentials so
// call peers can relay media without the server shipping a static TURN
// password to every browser.
//
// See:
// - https://github.com/coturn/coturn/wiki/turnserver
// - https://datatracker.ietf.org/doc/html/draft-uberti-behave-turn-rest
//
// Algorithm:
//
//	username   = <unix_expiry_timestamp>:<username_prefix>:<connection_id_or_random>
//	credential = base64(hmac_sha1(shared_secret, username))
//
// Expiry is computed using the server clock in UTC:
//
//	unix_expiry_timestamp = now_utc_unix + ttl_seconds

type Credentials struct {
	Username   string
	Credential string
	ExpiryUnix int64
}

type Issuer struct {
	sharedSecret   []byte
	ttlSeconds     int64
	usernamePrefix string
	now            func() time.Time

	connIDSource func() (string, error)
}

type IssuerConfig struct {
	SharedSecret   string
	TTLSeconds     int64
	UsernamePrefix string

	// Now and ConnIDSource exist for tests; nil means real clock and
	// crypto/rand.
	Now          func() time.Time
	ConnIDSource func() (string, error)
}

func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	if cfg.SharedSecret == "" {
		return nil, errors.New("shared secret is required")
	}
	if cfg.TTLSeconds <= 0 {
		return nil, errors.New("TTLSeconds must be > 0")
	}
	if cfg.UsernamePrefix == "" {
		return nil, errors.New("UsernamePrefix is required")
	}
	if strings.ContainsRune(cfg.UsernamePrefix, ':') {
		return nil, errors.New("UsernamePrefix must not contain ':'")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.ConnIDSource == nil {
		cfg.ConnIDSource = cryptoRandomConnID
	}
	return &Issuer{
		sharedSecret:   []byte(cfg.SharedSecret),
		ttlSeconds:     cfg.TTLSeconds,
		usernamePrefix: cfg.UsernamePrefix,
		now:            cfg.Now,
		connIDSource:   cfg.ConnIDSource,
	}, nil
}

// Issue mints credentials scoped to a signaling connection ID, so coturn
// logs line up with signaling logs.
func (iss *Issuer) Issue(connID string) (Credentials, error) {
	if connID == "" {
		return Credentials{}, errors.New("connID is required")
	}
	if strings.ContainsRune(connID, ':') {
		return Credentials{}, errors.New("connID must not contain ':'")
	}
	expiryUnix := iss.now().UTC().Unix() + iss.ttlSeconds
	username := fmt.Sprintf("%d:%s:%s", expiryUnix, iss.usernamePrefix, connID)
	return Credentials{
		Username:   username,
		Credential: signUsername(iss.sharedSecret, username),
		ExpiryUnix: expiryUnix,
	}, nil
}

// IssueRandom is for unauthenticated /webrtc/ice requests that carry no
// connection ID.
func (iss *Issuer) IssueRandom() (Credentials, error) {
	connID, err := iss.connIDSource()
	if err != nil {
		return Credentials{}, err
	}
	return iss.Issue(connID)
}

func cryptoRandomConnID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

func signUsername(sharedSecret []byte, username string) string {
	mac := hmac.New(sha1.New, sharedSecret)
	_, _ = mac.Write([]byte(username))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
