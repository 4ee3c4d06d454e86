// Package identity binds ledger accounts to ed25519 keys. An account
// ID is the base58 encoding of a 32-byte public key; operation
// envelopes are signed with the matching private key and verified
// here before the ledger core ever sees them.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"token-ledger/internal/domain"
)

var (
	// ErrInvalidAccountID is returned when an account ID is not the
	// base58 form of a valid ed25519 public key.
	ErrInvalidAccountID = errors.New("invalid account id")

	// ErrInvalidSignature is returned when an envelope signature does
	// not verify against the caller's key.
	ErrInvalidSignature = errors.New("invalid signature")
)

// ParseAccountID validates that s encodes a usable account key and
// returns it as a domain AccountID.
func ParseAccountID(s string) (domain.AccountID, error) {
	if _, err := PublicKey(domain.AccountID(s)); err != nil {
		return domain.ZeroAccount, err
	}
	return domain.AccountID(s), nil
}

// PublicKey decodes the ed25519 public key behind an account ID.
func PublicKey(id domain.AccountID) (ed25519.PublicKey, error) {
	raw, err := base58.Decode(string(id))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: not base58", ErrInvalidAccountID, id)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: %s: %d bytes", ErrInvalidAccountID, id, len(raw))
	}
	if !isOnCurve(raw) {
		return nil, fmt.Errorf("%w: %s: not a curve point", ErrInvalidAccountID, id)
	}
	return ed25519.PublicKey(raw), nil
}

// FromPublicKey returns the account ID for an ed25519 public key.
func FromPublicKey(pub ed25519.PublicKey) domain.AccountID {
	return domain.AccountID(base58.Encode(pub))
}

// NewAccount generates a fresh keypair and its account ID.
func NewAccount() (domain.AccountID, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return domain.ZeroAccount, nil, fmt.Errorf("generate key: %w", err)
	}
	return FromPublicKey(pub), priv, nil
}

// SignOperation signs op with priv, setting Caller to the signing
// account and Sig to the base58 signature over the signing bytes.
func SignOperation(op *domain.Operation, priv ed25519.PrivateKey) {
	op.Caller = FromPublicKey(priv.Public().(ed25519.PublicKey))
	op.Sig = base58.Encode(ed25519.Sign(priv, op.SigningBytes()))
}

// VerifyOperation checks that op.Sig is a valid signature by
// op.Caller over the operation's signing bytes.
func VerifyOperation(op domain.Operation) error {
	pub, err := PublicKey(op.Caller)
	if err != nil {
		return err
	}
	sig, err := base58.Decode(op.Sig)
	if err != nil {
		return fmt.Errorf("%w: not base58", ErrInvalidSignature)
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("%w: %d bytes", ErrInvalidSignature, len(sig))
	}
	if !ed25519.Verify(pub, op.SigningBytes(), sig) {
		return ErrInvalidSignature
	}
	return nil
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
