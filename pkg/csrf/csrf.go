package csrf

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Anti-forgery tokens are short-lived HMAC-signed JWTs bound to the
// visitor's session ID. A token issued for one session is rejected when
// presented with another session's cookie.

var ErrInvalidToken = errors.New("invalid anti-forgery token")

type Claims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

func Issue(sessionID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Audience:  []string{"pharmacare-accounts"},
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// Verify checks the token signature, expiry, and session binding.
func Verify(tokenString, sessionID, secret string) error {
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		return ErrInvalidToken
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return ErrInvalidToken
	}
	if claims.SessionID == "" || claims.SessionID != sessionID {
		return ErrInvalidToken
	}
	return nil
}
