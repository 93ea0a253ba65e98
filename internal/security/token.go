package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidSession is returned for any token that does not identify a live
// session.
var ErrInvalidSession = errors.New("invalid session token")

// TokenService validates HS256 session tokens issued by the identity
// service. The "sub" claim carries the anonymous identity.
type TokenService struct {
	secret    []byte
	expiresIn time.Duration
}

func NewTokenService(secret string, expiresIn time.Duration) *TokenService {
	return &TokenService{
		secret:    []byte(secret),
		expiresIn: expiresIn,
	}
}

// CreateForIdentity creates a token for identity using the default TTL.
func (t *TokenService) CreateForIdentity(identity string) (string, error) {
	return t.CreateWithTTL(identity, t.expiresIn)
}

// CreateWithTTL creates a token for identity with an explicit TTL.
func (t *TokenService) CreateWithTTL(identity string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": identity,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Parse validates a token and returns its claims.
func (t *TokenService) Parse(tokenStr string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	if claims, ok := token.Claims.(jwt.MapClaims); ok {
		return claims, nil
	}
	return nil, jwt.ErrTokenMalformed
}

// Authenticate resolves a session token to its identity.
func (t *TokenService) Authenticate(tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", ErrInvalidSession
	}
	claims, err := t.Parse(tokenStr)
	if err != nil {
		return "", errors.Join(ErrInvalidSession, err)
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrInvalidSession
	}
	return sub, nil
}
