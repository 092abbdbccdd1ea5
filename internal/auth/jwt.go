package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// JWTVerifier validates HS256 bearer tokens issued by the application's auth
// service. Tokens must carry exp and a non-empty sub claim; sub is the
// stable user identity the surrounding application authenticated.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) JWTVerifier {
	return JWTVerifier{secret: []byte(secret)}
}

func (v JWTVerifier) Verify(token string) error {
	_, err := v.VerifyAndExtractSubject(token)
	return err
}

// VerifyAndExtractSubject verifies token and returns its sub claim.
func (v JWTVerifier) VerifyAndExtractSubject(token string) (string, error) {
	parsed, err := jwt.Parse(token,
		func(t *jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		// Every verification failure collapses to the same rejection; the
		// relay never tells a client why its credential was refused.
		return "", ErrInvalidCredentials
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidCredentials
	}
	return sub, nil
}
