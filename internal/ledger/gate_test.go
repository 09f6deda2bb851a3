package ledger

import (
	"testing"

	"golang.org/x/crypto/bcrypt"

	"pocketmoney/internal/core"
)

func TestGateDisabled(t *testing.T) {
	g := NewGate("")
	if g.Enabled() {
		t.Fatal("empty secret should disable the gate")
	}
	if err := g.Check("anything"); err != nil {
		t.Fatalf("disabled gate rejected credential: %v", err)
	}
	if err := g.Check(""); err != nil {
		t.Fatalf("disabled gate rejected empty credential: %v", err)
	}
}

func TestGatePlaintext(t *testing.T) {
	g := NewGate("family-secret")
	if !g.Enabled() {
		t.Fatal("gate with secret should be enabled")
	}
	if err := g.Check("family-secret"); err != nil {
		t.Fatalf("matching credential rejected: %v", err)
	}
	if err := g.Check("wrong"); err != core.ErrUnauthorized {
		t.Fatalf("wrong credential: got %v, want ErrUnauthorized", err)
	}
	if err := g.Check(""); err != core.ErrUnauthorized {
		t.Fatalf("empty credential: got %v, want ErrUnauthorized", err)
	}
}

func TestGateBcryptHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("family-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("generate hash: %v", err)
	}

	g := NewGate(string(hash))
	if err := g.Check("family-secret"); err != nil {
		t.Fatalf("matching credential rejected against hash: %v", err)
	}
	if err := g.Check("wrong"); err != core.ErrUnauthorized {
		t.Fatalf("wrong credential against hash: got %v, want ErrUnauthorized", err)
	}
}
