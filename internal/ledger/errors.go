package ledger

import "errors"

// Operation failure kinds. A failed operation leaves ledger state
// untouched and journals nothing; callers match with errors.Is.
var (
	// ErrNotTokenOwner is returned when an owner-gated operation is
	// attempted by an account that does not own the token. Unknown
	// tokens have no owner, so operations on them fail with this too.
	ErrNotTokenOwner = errors.New("not token owner")

	// ErrInsufficientAmount is returned when a debit exceeds the
	// available balance or supply.
	ErrInsufficientAmount = errors.New("insufficient amount")

	// ErrArithmeticOverflow is returned when a credit would exceed the
	// representable range, including token id exhaustion.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	// ErrInsufficientApproval is reserved for delegated transfers
	// checked against the allowance registry. No operation consults
	// allowances yet, so it is never returned.
	ErrInsufficientApproval = errors.New("insufficient approval")
)
