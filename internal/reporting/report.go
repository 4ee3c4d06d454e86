package reporting

import (
	"time"

	"token-ledger/internal/domain"
)

// Report is a point-in-time summary of one ledger store: the token
// classes, journal activity and an invariant audit.
type Report struct {
	// Metadata
	GeneratedAt  time.Time
	TokenCount   uint32
	LastEventSeq uint64

	// Per-token state (sorted by token id)
	Tokens []TokenRow

	// Journal activity per event kind (sorted by kind)
	Activity []ActivityRow

	// Largest balances across all tokens (sorted by amount descending)
	LargestHolders []HolderRow

	// Invariant audit results
	Integrity IntegritySection
}

// TokenRow summarizes one token class.
type TokenRow struct {
	ID      domain.TokenID
	Name    string
	Symbol  string
	Owner   domain.AccountID
	Supply  domain.Amount
	Holders int
	Paused  bool
	Created int64 // Unix ms
}

// ActivityRow counts journal events of one kind. Volume is the sum of
// event amounts and saturates at the representable maximum.
type ActivityRow struct {
	Kind   domain.EventKind
	Count  int
	Volume domain.Amount
}

// HolderRow is one account's balance in one token.
type HolderRow struct {
	Token   domain.TokenID
	Account domain.AccountID
	Amount  domain.Amount
}

// IntegritySection carries the audit outcome.
type IntegritySection struct {
	TokensAudited int
	EventsAudited int
	Violations    []string
	Clean         bool
}
