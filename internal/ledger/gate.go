package ledger

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"pocketmoney/internal/core"
)

// Gate is the optional write-protection check at the mutation boundary.
// It is a shared static secret, not an authentication system: an empty
// configured secret disables the gate entirely. A configured value starting
// with "$2" is treated as a bcrypt hash of the secret.
type Gate struct {
	secret string
}

func NewGate(secret string) *Gate {
	return &Gate{secret: secret}
}

// Check returns core.ErrUnauthorized when the gate is enabled and the
// supplied credential does not match.
func (g *Gate) Check(credential string) error {
	if g == nil || g.secret == "" {
		return nil
	}

	if strings.HasPrefix(g.secret, "$2") {
		if bcrypt.CompareHashAndPassword([]byte(g.secret), []byte(credential)) != nil {
			return core.ErrUnauthorized
		}
		return nil
	}

	if subtle.ConstantTimeCompare([]byte(g.secret), []byte(credential)) != 1 {
		return core.ErrUnauthorized
	}
	return nil
}

// Enabled reports whether a secret is configured.
func (g *Gate) Enabled() bool {
	return g != nil && g.secret != ""
}
