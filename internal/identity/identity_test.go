package identity

import (
	"crypto/ed25519"
	"errors"
	"testing"

	"github.com/mr-tron/base58"

	"token-ledger/internal/domain"
)

func TestParseAccountID(t *testing.T) {
	id, _, err := NewAccount()
	if err != nil {
		t.Fatalf("new account: %v", err)
	}

	got, err := ParseAccountID(string(id))
	if err != nil {
		t.Fatalf("expected valid id, got %v", err)
	}
	if got != id {
		t.Errorf("expected %s, got %s", id, got)
	}

	// Not base58
	if _, err := ParseAccountID("0OIl"); !errors.Is(err, ErrInvalidAccountID) {
		t.Errorf("expected ErrInvalidAccountID, got %v", err)
	}

	// Wrong length
	short := base58.Encode([]byte{1, 2, 3})
	if _, err := ParseAccountID(short); !errors.Is(err, ErrInvalidAccountID) {
		t.Errorf("expected ErrInvalidAccountID for short key, got %v", err)
	}

	// 32 bytes that are not a curve point. Only a small fraction of
	// strings fail SetBytes, so use a known-bad encoding: a field
	// element above the modulus.
	bad := make([]byte, 32)
	for i := range bad {
		bad[i] = 0xff
	}
	if _, err := ParseAccountID(base58.Encode(bad)); !errors.Is(err, ErrInvalidAccountID) {
		t.Errorf("expected ErrInvalidAccountID for off-curve bytes, got %v", err)
	}

	if _, err := ParseAccountID(""); !errors.Is(err, ErrInvalidAccountID) {
		t.Errorf("expected ErrInvalidAccountID for empty id, got %v", err)
	}
}

func TestSignAndVerifyOperation(t *testing.T) {
	id, priv, err := NewAccount()
	if err != nil {
		t.Fatalf("new account: %v", err)
	}

	op := domain.Operation{
		Kind:  domain.OpTransfer,
		Token: 7,
		To:    "recipient",
		Value: 100,
	}
	SignOperation(&op, priv)

	if op.Caller != id {
		t.Errorf("expected caller %s, got %s", id, op.Caller)
	}
	if err := VerifyOperation(op); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}

	// Any covered field change invalidates the signature
	tampered := op
	tampered.Value = 101
	if err := VerifyOperation(tampered); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature after tamper, got %v", err)
	}

	// Signature by a different key
	_, otherPriv, err := NewAccount()
	if err != nil {
		t.Fatalf("new account: %v", err)
	}
	forged := op
	SignOperation(&forged, otherPriv)
	forged.Caller = op.Caller
	if err := VerifyOperation(forged); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature for wrong signer, got %v", err)
	}

	// Malformed signature encodings
	broken := op
	broken.Sig = "not!!base58"
	if err := VerifyOperation(broken); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature for bad encoding, got %v", err)
	}
	broken.Sig = base58.Encode([]byte("short"))
	if err := VerifyOperation(broken); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature for short signature, got %v", err)
	}
}

func TestFromPublicKeyRoundTrip(t *testing.T) {
	id, priv, err := NewAccount()
	if err != nil {
		t.Fatalf("new account: %v", err)
	}

	pub, err := PublicKey(id)
	if err != nil {
		t.Fatalf("public key: %v", err)
	}
	if FromPublicKey(pub) != id {
		t.Error("public key round trip changed the account id")
	}

	// Sanity: the decoded key verifies signatures made with priv
	msg := []byte("round trip")
	sig := ed25519.Sign(priv, msg)
	if !ed25519.Verify(pub, msg, sig) {
		t.Error("decoded key does not verify signatures from its private half")
	}
}
