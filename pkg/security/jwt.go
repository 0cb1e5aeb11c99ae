package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	audienceAuth   = "auth"
	audienceObject = "object"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are carried by account tokens
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}

// ObjectClaims are carried by signed local storage URLs
type ObjectClaims struct {
	jwt.RegisteredClaims
	Key string `json:"key"`
}

// Tokens signs and parses HS256 tokens for accounts and stored objects
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (t *Tokens) MakeAuthToken(userID string) (string, error) {
	now := t.now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{audienceAuth},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		UserID: userID,
	})

	return token.SignedString(t.secret)
}

// ParseAuthToken returns the user ID stored in a valid, unexpired account token
func (t *Tokens) ParseAuthToken(tokenStr string) (string, error) {
	claims := &Claims{}
	if err := t.parse(tokenStr, claims, audienceAuth); err != nil {
		return "", err
	}

	if claims.UserID == "" {
		return "", ErrInvalidToken
	}

	return claims.UserID, nil
}

// SignObject returns a token granting read access to key until ttl elapses
func (t *Tokens) SignObject(key string, ttl time.Duration) (string, error) {
	now := t.now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ObjectClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{audienceObject},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Key: key,
	})

	return token.SignedString(t.secret)
}

// VerifyObject checks that tokenStr was minted by SignObject for key and has not expired
func (t *Tokens) VerifyObject(tokenStr, key string) error {
	claims := &ObjectClaims{}
	if err := t.parse(tokenStr, claims, audienceObject); err != nil {
		return err
	}

	if claims.Key != key {
		return ErrInvalidToken
	}

	return nil
}

func (t *Tokens) parse(tokenStr string, claims jwt.Claims, audience string) error {
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(tk *jwt.Token) (any, error) {
		if tk.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", tk.Method.Alg())
		}

		return t.secret, nil
	},
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return fmt.Errorf("%w, %w", ErrInvalidToken, err)
	}

	if !token.Valid {
		return ErrInvalidToken
	}

	return nil
}
