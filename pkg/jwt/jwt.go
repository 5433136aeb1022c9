// Package jwt issues and verifies the HMAC-SHA256 bearer tokens the backend
// uses for authentication: a short-lived access token and a longer-lived
// refresh token, both signed with a shared secret.
//
// Claims carry the authenticated principal (user ID, username, role) plus
// the token type and a unique token ID used for refresh rotation.
package jwt

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Token types carried in the typ-equivalent custom claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

const headerAlgorithm = "HS256"

type header struct {
	Type      string `json:"typ"`
	Algorithm string `json:"alg"`
}

// Claims is the payload of both token kinds.
type Claims struct {
	ID        string `json:"jti"`           // unique token ID, keys refresh rotation
	Subject   string `json:"sub"`           // user ID
	Username  string `json:"username"`
	Role      string `json:"role"`
	TokenType string `json:"token_type"`    // access or refresh
	ExpiresAt int64  `json:"exp"`           // unix seconds
	IssuedAt  int64  `json:"iat,omitempty"` // unix seconds
}

// Valid checks the temporal claims against the current time.
func (c Claims) Valid() error {
	if c.ExpiresAt > 0 && time.Now().Unix() > c.ExpiresAt {
		return ErrExpiredToken
	}
	return nil
}

// Service signs and verifies tokens with a shared HMAC-SHA256 secret.
type Service struct {
	signingKey []byte
}

// New returns a token service. The key should be at least 32 bytes.
func New(signingKey string) (*Service, error) {
	if signingKey == "" {
		return nil, ErrMissingSigningKey
	}
	return &Service{signingKey: []byte(signingKey)}, nil
}

// Generate signs the claims into a compact JWT string.
func (s *Service) Generate(claims Claims) (string, error) {
	headerJSON, err := json.Marshal(header{Type: "JWT", Algorithm: headerAlgorithm})
	if err != nil {
		return "", err
	}
	claimsJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}

	payload := encodeSegment(headerJSON) + "." + encodeSegment(claimsJSON)
	return payload + "." + s.sign(payload), nil
}

// Parse verifies the signature, algorithm, and temporal claims, returning
// the decoded claims.
func (s *Service) Parse(token string) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return Claims{}, ErrInvalidToken
	}

	// Constant-time signature comparison before touching the payload.
	payload := parts[0] + "." + parts[1]
	expected := s.sign(payload)
	if subtle.ConstantTimeCompare([]byte(parts[2]), []byte(expected)) != 1 {
		return Claims{}, ErrInvalidSignature
	}

	headerJSON, err := decodeSegment(parts[0])
	if err != nil {
		return Claims{}, errors.Join(ErrInvalidToken, err)
	}
	var hdr header
	if err := json.Unmarshal(headerJSON, &hdr); err != nil {
		return Claims{}, errors.Join(ErrInvalidToken, err)
	}
	if hdr.Algorithm != headerAlgorithm {
		return Claims{}, ErrUnexpectedSigningMethod
	}

	claimsJSON, err := decodeSegment(parts[1])
	if err != nil {
		return Claims{}, errors.Join(ErrInvalidToken, err)
	}
	var claims Claims
	if err := json.Unmarshal(claimsJSON, &claims); err != nil {
		return Claims{}, errors.Join(ErrInvalidToken, err)
	}
	if err := claims.Valid(); err != nil {
		return Claims{}, err
	}
	return claims, nil
}

func (s *Service) sign(payload string) string {
	h := hmac.New(sha256.New, s.signingKey)
	h.Write([]byte(payload))
	return encodeSegment(h.Sum(nil))
}

func encodeSegment(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

func decodeSegment(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}
