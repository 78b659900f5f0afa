package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

// rawTokenBytes is the entropy behind each bearer token. 32 random bytes
// keeps tokens unguessable; the client only ever sees the base64 form.
const rawTokenBytes = 32

var ErrInvalidToken = errors.New("invalid token")

// Manager mints opaque bearer tokens and produces the deterministic hash
// stored in the api_tokens table. The raw token itself is never persisted.
type Manager struct {
	secret []byte
}

func NewManager(secret string) *Manager {
	return &Manager{secret: []byte(secret)}
}

// GenerateToken returns a fresh opaque token. Tokens carry no claims; the
// DB row they hash to is the single source of truth for identity.
func (m *Manager) GenerateToken() (string, error) {
	buf := make([]byte, rawTokenBytes)

	_, err := rand.Read(buf)

	if err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken is a deterministic HMAC hash (server-side pepper = TOKEN_SECRET
// bytes). Store this in DB (never store the raw token).
func (m *Manager) HashToken(raw string) string {
	h := hmac.New(sha256.New, m.secret)
	h.Write([]byte(raw))
	return hex.EncodeToString(h.Sum(nil))
}
