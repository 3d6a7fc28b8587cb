package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims scope a token to one location-contact conversation. Operator tokens
// leave both IDs empty.
type Claims struct {
	LocationID string `json:"location_id,omitempty"`
	ContactID  string `json:"contact_id,omitempty"`
	jwt.RegisteredClaims
}

type TokenConfig struct {
	Secret string
	Expiry time.Duration
	Issuer string
}

func DefaultTokenConfig(secret string) TokenConfig {
	return TokenConfig{
		Secret: secret,
		Expiry: 24 * time.Hour,
		Issuer: "contact-chat-lab",
	}
}

// Grant describes the token to issue. A zero ExpiresAt uses cfg.Expiry.
type Grant struct {
	Subject    string
	LocationID string
	ContactID  string
	ExpiresAt  time.Time
}

func CreateToken(grant Grant, cfg TokenConfig) (string, error) {
	if cfg.Secret == "" {
		return "", errors.New("missing secret")
	}
	if grant.Subject == "" {
		return "", errors.New("missing subject")
	}

	now := time.Now()
	expiresAt := grant.ExpiresAt
	if expiresAt.IsZero() {
		if cfg.Expiry <= 0 {
			return "", errors.New("invalid expiry")
		}
		expiresAt = now.Add(cfg.Expiry)
	}
	if !expiresAt.After(now) {
		return "", errors.New("expiry in the past")
	}

	jtiBytes := make([]byte, 16)
	if _, err := rand.Read(jtiBytes); err != nil {
		return "", err
	}

	claims := Claims{
		LocationID: grant.LocationID,
		ContactID:  grant.ContactID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        hex.EncodeToString(jtiBytes),
			Subject:   grant.Subject,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

func VerifyToken(tokenString string, cfg TokenConfig) (*Claims, error) {
	if cfg.Secret == "" {
		return nil, errors.New("missing secret")
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(cfg.Secret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrSignatureInvalid
	}
	return claims, nil
}

// TokenInfo is what can be read from a token without its signing key.
type TokenInfo struct {
	Algorithm  string     `json:"alg"`
	Subject    string     `json:"sub,omitempty"`
	Issuer     string     `json:"iss,omitempty"`
	LocationID string     `json:"location_id,omitempty"`
	ContactID  string     `json:"contact_id,omitempty"`
	IssuedAt   *time.Time `json:"iat,omitempty"`
	ExpiresAt  *time.Time `json:"exp,omitempty"`
}

func (i TokenInfo) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && !now.Before(*i.ExpiresAt)
}

// Inspect decodes a JWT's claims without checking the signature. The result
// is for display only and must not be trusted.
func Inspect(tokenString string) (TokenInfo, error) {
	claims := &Claims{}
	parsed, _, err := jwt.NewParser().ParseUnverified(tokenString, claims)
	if err != nil {
		return TokenInfo{}, err
	}
	info := TokenInfo{
		Algorithm:  parsed.Method.Alg(),
		Subject:    claims.Subject,
		Issuer:     claims.Issuer,
		LocationID: claims.LocationID,
		ContactID:  claims.ContactID,
	}
	if claims.IssuedAt != nil {
		t := claims.IssuedAt.Time
		info.IssuedAt = &t
	}
	if claims.ExpiresAt != nil {
		t := claims.ExpiresAt.Time
		info.ExpiresAt = &t
	}
	return info, nil
}
