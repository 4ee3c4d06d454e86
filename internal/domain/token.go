package domain

// TokenID identifies a token class within the ledger. IDs are dense
// and monotonically increasing: the first created token gets 0, the
// next 1, and so on. An ID is never reused, even conceptually after
// a full burn.
type TokenID uint32

// TokenInfo is the immutable descriptor recorded when a token class
// is created. Corresponds to the tokens table in PostgreSQL.
//
// Owner here is the creation-time snapshot; authorization decisions
// consult the owners registry, not this field.
type TokenInfo struct {
	ID      TokenID   `json:"id"`      // dense, assigned at creation
	Name    string    `json:"name"`    // display name, free-form bytes
	Symbol  string    `json:"symbol"`  // ticker symbol, free-form bytes
	Owner   AccountID `json:"owner"`   // designated owner at creation time
	Created int64     `json:"created"` // block time at creation, Unix milliseconds
}
