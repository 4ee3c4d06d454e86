package domain

// EventKind classifies a ledger event.
type EventKind string

const (
	EventCreated         EventKind = "CREATED"
	EventTransfer        EventKind = "TRANSFER"
	EventTransferFrom    EventKind = "TRANSFER_FROM"
	EventMint            EventKind = "MINT"
	EventBurn            EventKind = "BURN"
	EventPausedOperation EventKind = "PAUSED_OPERATION"

	// EventApproval is reserved vocabulary: the allowance registry has
	// no write path yet, so nothing produces this kind.
	EventApproval EventKind = "APPROVAL"
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	return string(k)
}

// IsValid checks if the kind is a known value.
func (k EventKind) IsValid() bool {
	switch k {
	case EventCreated, EventTransfer, EventTransferFrom,
		EventMint, EventBurn, EventPausedOperation, EventApproval:
		return true
	}
	return false
}

// Event records one successful state transition. Exactly one event is
// journaled per mutating operation, inside the same atomic commit as
// the state writes. Seq is assigned by the store and is contiguous
// from 1 in commit order.
//
// Field usage by kind:
//
//	CREATED          Token, To (creator receiving the initial supply)
//	TRANSFER         Token, From, To, Amount
//	TRANSFER_FROM    Token, From (debited), To (caller), Amount
//	MINT             Token, To (owner), Amount
//	BURN             Token, From (owner), Amount
//	PAUSED_OPERATION Token, Paused
type Event struct {
	Seq       uint64    `json:"seq"`
	Kind      EventKind `json:"kind"`
	Token     TokenID   `json:"token"`
	From      AccountID `json:"from,omitempty"`
	To        AccountID `json:"to,omitempty"`
	Amount    Amount    `json:"amount"`
	Paused    bool      `json:"paused,omitempty"`
	BlockTime int64     `json:"block_time"` // Unix milliseconds at commit
}
