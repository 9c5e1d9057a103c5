package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer signs session tokens.
type Issuer interface {
	Sign(claims jwt.MapClaims, ttl time.Duration) (string, error)
}

// HMACIssuer signs HS256 JWTs with a shared key.
type HMACIssuer struct {
	key []byte
	now func() time.Time
}

func NewHMACIssuer(key []byte) *HMACIssuer {
	return &HMACIssuer{key: key, now: time.Now}
}

// Sign copies claims and sets iat and exp.
func (i *HMACIssuer) Sign(claims jwt.MapClaims, ttl time.Duration) (string, error) {
	now := i.now()
	c := jwt.MapClaims{}
	for k, v := range claims {
		c[k] = v
	}
	c["iat"] = now.Unix()
	c["exp"] = now.Add(ttl).Unix()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}

// Parse validates an HS256 token signed with key and returns its claims.
func Parse(raw string, key []byte) (jwt.MapClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return key, nil
	})
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("token is invalid")
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("unexpected claims type")
	}
	return claims, nil
}
