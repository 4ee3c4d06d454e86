package domain

// AccountID identifies an account holding balances or owning tokens.
// The canonical form is the base58 encoding of a 32-byte ed25519
// public key; validation lives in internal/identity so the core can
// treat IDs as opaque strings.
type AccountID string

// ZeroAccount is the absent-owner sentinel. Lookups for tokens that
// were never created resolve to it, so owner-gated operations on
// unknown tokens fail the ownership check for every real caller.
const ZeroAccount AccountID = ""

// String returns the string representation of the account ID.
func (a AccountID) String() string {
	return string(a)
}

// IsZero reports whether the ID is the absent-owner sentinel.
func (a AccountID) IsZero() bool {
	return a == ZeroAccount
}
