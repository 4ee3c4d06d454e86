package storage

import (
	"context"

	"token-ledger/internal/domain"
)

// Scope names the serialization domain of a mutation. Mutations in
// the same scope are applied strictly one after another; mutations in
// different scopes may commit concurrently. Token creation uses the
// registry scope because it advances the shared token counter.
type Scope struct {
	registry bool
	token    domain.TokenID
}

// RegistryScope returns the scope serializing token creation.
func RegistryScope() Scope {
	return Scope{registry: true}
}

// TokenScope returns the scope serializing mutations of one token.
func TokenScope(id domain.TokenID) Scope {
	return Scope{token: id}
}

// IsRegistry reports whether this is the registry scope.
func (s Scope) IsRegistry() bool {
	return s.registry
}

// Token returns the token the scope covers. Only meaningful when
// IsRegistry is false.
func (s Scope) Token() domain.TokenID {
	return s.token
}

// Reader is the consistent read surface over ledger state. Absent
// entries read as zero values: balance and supply 0, owner
// ZeroAccount, paused false. Readers never observe the partial writes
// of an in-flight update.
type Reader interface {
	// TokenCount returns the number of tokens ever created, which is
	// also the next TokenID to assign.
	TokenCount(ctx context.Context) (uint32, error)

	// Token retrieves a token descriptor. Returns ErrNotFound if the
	// token was never created.
	Token(ctx context.Context, id domain.TokenID) (*domain.TokenInfo, error)

	// TokenOwner returns the authoritative owner, or ZeroAccount for
	// an unknown token.
	TokenOwner(ctx context.Context, id domain.TokenID) (domain.AccountID, error)

	// Balance returns an account's balance in a token, 0 if absent.
	Balance(ctx context.Context, id domain.TokenID, account domain.AccountID) (domain.Amount, error)

	// Supply returns a token's total supply, 0 if absent.
	Supply(ctx context.Context, id domain.TokenID) (domain.Amount, error)

	// Paused returns a token's paused flag, false if absent.
	Paused(ctx context.Context, id domain.TokenID) (bool, error)

	// Allowance returns the approved spending budget for (owner,
	// spender) on a token, 0 if absent. No operation writes this
	// registry yet, so reads always see 0.
	Allowance(ctx context.Context, id domain.TokenID, owner, spender domain.AccountID) (domain.Amount, error)

	// Tokens retrieves all token descriptors, ordered by ID ascending.
	Tokens(ctx context.Context) ([]*domain.TokenInfo, error)

	// Balances retrieves all non-zero balances of a token, ordered by
	// account ascending.
	Balances(ctx context.Context, id domain.TokenID) ([]domain.BalanceEntry, error)
}

// Tx is the mutation surface handed to an Update closure. Reads
// through a Tx observe the transaction's own writes. Setting a
// balance to 0 removes the entry.
//
// There is deliberately no allowance setter: the approval registry is
// declared and readable but has no write path.
type Tx interface {
	Reader

	// SetTokenCount stores the token counter.
	SetTokenCount(ctx context.Context, count uint32) error

	// PutToken stores a token descriptor under its ID.
	PutToken(ctx context.Context, info *domain.TokenInfo) error

	// SetTokenOwner stores the authoritative owner of a token.
	SetTokenOwner(ctx context.Context, id domain.TokenID, owner domain.AccountID) error

	// SetBalance stores an account's balance in a token.
	SetBalance(ctx context.Context, id domain.TokenID, account domain.AccountID, amount domain.Amount) error

	// SetSupply stores a token's total supply.
	SetSupply(ctx context.Context, id domain.TokenID, amount domain.Amount) error

	// SetPaused stores a token's paused flag.
	SetPaused(ctx context.Context, id domain.TokenID, paused bool) error

	// AppendEvent journals an event in the same atomic unit as the
	// transaction's state writes, assigning the next sequence number
	// to ev.Seq.
	AppendEvent(ctx context.Context, ev *domain.Event) error
}

// LedgerStore is the full persistence contract for one ledger: state
// maps, the event journal and transactional updates. Implementations
// live in memory, badgerstore and postgres.
type LedgerStore interface {
	Reader

	// Update runs fn inside one atomic transaction serialized on
	// scope. If fn returns an error, every write including journaled
	// events is discarded and the error is returned unwrapped for
	// errors.Is matching.
	Update(ctx context.Context, scope Scope, fn func(tx Tx) error) error

	// Events retrieves journaled events with Seq > afterSeq, ordered
	// by Seq ascending, at most limit entries. limit <= 0 means no
	// limit.
	Events(ctx context.Context, afterSeq uint64, limit int) ([]*domain.Event, error)

	// LastEventSeq returns the highest assigned event sequence
	// number, 0 if the journal is empty.
	LastEventSeq(ctx context.Context) (uint64, error)

	// Close releases the store's resources.
	Close() error
}
