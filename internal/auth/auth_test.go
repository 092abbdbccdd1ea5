package auth

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/meshtalk/call-relay/internal/config"
)

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return token
}

func TestAPIKeyVerifier(t *testing.T) {
	v := APIKeyVerifier{Expected: "sekret"}

	if err := v.Verify("sekret"); err != nil {
		t.Fatalf("Verify(correct key): %v", err)
	}
	if err := v.Verify("wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Verify(wrong key)=%v, want ErrInvalidCredentials", err)
	}
	if err := v.Verify(""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("Verify(empty key)=%v, want ErrInvalidCredentials", err)
	}
	if err := (APIKeyVerifier{}).Verify("anything"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("empty expected key accepted a credential")
	}
}

func TestJWTVerifier_ValidToken(t *testing.T) {
	v := NewJWTVerifier("topsecret")
	token := signToken(t, "topsecret", jwt.MapClaims{
		"sub": "user-42",
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})

	sub, err := v.VerifyAndExtractSubject(token)
	if err != nil {
		t.Fatalf("VerifyAndExtractSubject: %v", err)
	}
	if sub != "user-42" {
		t.Fatalf("sub=%q, want user-42", sub)
	}
}

func TestJWTVerifier_Rejections(t *testing.T) {
	v := NewJWTVerifier("topsecret")
	now := time.Now()

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", signToken(t, "other", jwt.MapClaims{
			"sub": "u", "exp": now.Add(time.Hour).Unix(),
		})},
		{"expired", signToken(t, "topsecret", jwt.MapClaims{
			"sub": "u", "exp": now.Add(-time.Minute).Unix(),
		})},
		{"missing exp", signToken(t, "topsecret", jwt.MapClaims{
			"sub": "u",
		})},
		{"missing sub", signToken(t, "topsecret", jwt.MapClaims{
			"exp": now.Add(time.Hour).Unix(),
		})},
		{"not yet valid", signToken(t, "topsecret", jwt.MapClaims{
			"sub": "u", "exp": now.Add(time.Hour).Unix(), "nbf": now.Add(time.Hour).Unix(),
		})},
		{"garbage", "not.a.jwt"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.VerifyAndExtractSubject(tt.token); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("VerifyAndExtractSubject=%v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestJWTVerifier_RejectsAlgNone(t *testing.T) {
	v := NewJWTVerifier("topsecret")
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "u",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString(none): %v", err)
	}

	if _, err := v.VerifyAndExtractSubject(token); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("alg=none token accepted: %v", err)
	}
}

func TestCredentialFromQuery(t *testing.T) {
	if cred, err := CredentialFromQuery(config.AuthModeAPIKey, url.Values{"apiKey": {"k"}}); err != nil || cred != "k" {
		t.Fatalf("api_key query = (%q, %v)", cred, err)
	}
	if _, err := CredentialFromQuery(config.AuthModeAPIKey, url.Values{}); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("missing apiKey err=%v, want ErrMissingCredentials", err)
	}
	if cred, err := CredentialFromQuery(config.AuthModeJWT, url.Values{"token": {"tok"}}); err != nil || cred != "tok" {
		t.Fatalf("jwt query = (%q, %v)", cred, err)
	}
	if _, err := CredentialFromQuery(config.AuthModeNone, url.Values{}); err == nil {
		t.Fatalf("AuthModeNone should not extract credentials")
	}
}

func TestCredentialFromAuthMessage(t *testing.T) {
	cred, err := CredentialFromAuthMessage(config.AuthModeJWT, WireAuthMessage{Type: "auth", Token: "tok"})
	if err != nil || cred != "tok" {
		t.Fatalf("auth message jwt = (%q, %v)", cred, err)
	}
	if _, err := CredentialFromAuthMessage(config.AuthModeJWT, WireAuthMessage{Type: "auth", APIKey: "k"}); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("apiKey under jwt mode err=%v, want ErrMissingCredentials", err)
	}
}

func TestNewVerifier(t *testing.T) {
	if _, err := NewVerifier(config.Config{AuthMode: config.AuthModeAPIKey, APIKey: "k"}); err != nil {
		t.Fatalf("NewVerifier(api_key): %v", err)
	}
	if _, err := NewVerifier(config.Config{AuthMode: config.AuthModeJWT, JWTSecret: "s"}); err != nil {
		t.Fatalf("NewVerifier(jwt): %v", err)
	}
	if _, err := NewVerifier(config.Config{AuthMode: config.AuthModeNone}); err == nil {
		t.Fatalf("NewVerifier(none) should fail; callers skip verification instead")
	}
}
