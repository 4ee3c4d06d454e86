package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// OpKind classifies a ledger operation request.
type OpKind string

const (
	OpCreate       OpKind = "CREATE"
	OpTransfer     OpKind = "TRANSFER"
	OpTransferFrom OpKind = "TRANSFER_FROM"
	OpMint         OpKind = "MINT"
	OpBurn         OpKind = "BURN"
	OpSetPaused    OpKind = "SET_PAUSED"
)

// String returns the string representation of the operation kind.
func (k OpKind) String() string {
	return string(k)
}

// IsValid checks if the kind is a known value.
func (k OpKind) IsValid() bool {
	switch k {
	case OpCreate, OpTransfer, OpTransferFrom, OpMint, OpBurn, OpSetPaused:
		return true
	}
	return false
}

// Operation is the signed request envelope accepted by the transport
// and recorded in operation logs. Caller identifies the signing
// account; Sig is the base58 ed25519 signature over SigningBytes.
//
// Field usage by kind:
//
//	CREATE        Owner, Name, Symbol, Value (initial supply)
//	TRANSFER      Token, To, Value
//	TRANSFER_FROM Token, From, Value (credited to Caller)
//	MINT          Token, Value
//	BURN          Token, Value
//	SET_PAUSED    Token, Paused
type Operation struct {
	Kind   OpKind    `json:"kind"`
	Caller AccountID `json:"caller"`
	Token  TokenID   `json:"token,omitempty"`
	Owner  AccountID `json:"owner,omitempty"`
	From   AccountID `json:"from,omitempty"`
	To     AccountID `json:"to,omitempty"`
	Name   string    `json:"name,omitempty"`
	Symbol string    `json:"symbol,omitempty"`
	Value  Amount    `json:"value"`
	Paused bool      `json:"paused,omitempty"`
	Sig    string    `json:"sig,omitempty"`
}

// SigningBytes returns the canonical encoding covered by Sig. Every
// field is included in a fixed order and length-prefixed, so free-form
// name or symbol bytes cannot forge a field boundary. Sig itself is
// excluded.
func (o Operation) SigningBytes() []byte {
	var b strings.Builder
	b.WriteString("token-ledger/op/v1")
	for _, f := range []string{
		string(o.Kind),
		string(o.Caller),
		strconv.FormatUint(uint64(o.Token), 10),
		string(o.Owner),
		string(o.From),
		string(o.To),
		o.Name,
		o.Symbol,
		o.Value.String(),
		strconv.FormatBool(o.Paused),
	} {
		fmt.Fprintf(&b, "|%d:%s", len(f), f)
	}
	return []byte(b.String())
}

// Validate checks structural well-formedness for the operation kind.
// It does not consult ledger state; insufficient balances or ownership
// failures surface when the operation is applied.
func (o Operation) Validate() error {
	if !o.Kind.IsValid() {
		return fmt.Errorf("unknown operation kind %q", string(o.Kind))
	}
	if o.Caller == ZeroAccount {
		return fmt.Errorf("%s: missing caller", o.Kind)
	}
	switch o.Kind {
	case OpCreate:
		if o.Owner == ZeroAccount {
			return fmt.Errorf("%s: missing owner", o.Kind)
		}
	case OpTransfer:
		if o.To == ZeroAccount {
			return fmt.Errorf("%s: missing recipient", o.Kind)
		}
	case OpTransferFrom:
		if o.From == ZeroAccount {
			return fmt.Errorf("%s: missing source account", o.Kind)
		}
	}
	return nil
}
