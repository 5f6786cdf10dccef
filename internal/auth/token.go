// Package auth guards mutating requests with an optional bearer token whose
// bcrypt hash is kept in configuration.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"mindtree/internal/rbac"
)

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

// HashToken returns the bcrypt hash to store as MINDTREE_WRITE_TOKEN_HASH.
func HashToken(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(hash), nil
}

// CheckToken compares token against a bcrypt hash.
func CheckToken(hash, token string) error {
	if strings.TrimSpace(token) == "" {
		return ErrMissingToken
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)); err != nil {
		return ErrInvalidToken
	}
	return nil
}

// GenerateToken returns a random 32 byte token, hex encoded.
func GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Guard resolves the caller's role from a bearer token. Without a hash every
// caller is an editor.
type Guard struct {
	hash string
}

func NewGuard(hash string) *Guard {
	return &Guard{hash: strings.TrimSpace(hash)}
}

func (g *Guard) Enabled() bool {
	return g != nil && g.hash != ""
}

// Role returns RoleEditor for a matching token and RoleViewer otherwise. The
// error says why the caller was downgraded.
func (g *Guard) Role(token string) (rbac.Role, error) {
	if !g.Enabled() {
		return rbac.RoleEditor, nil
	}
	if err := CheckToken(g.hash, token); err != nil {
		return rbac.RoleViewer, err
	}
	return rbac.RoleEditor, nil
}
