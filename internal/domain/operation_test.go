package domain

import (
	"bytes"
	"testing"
)

func TestOperationSigningBytesDeterministic(t *testing.T) {
	op := Operation{
		Kind:   OpTransfer,
		Caller: "alice",
		Token:  3,
		To:     "bob",
		Value:  100,
	}

	a := op.SigningBytes()
	b := op.SigningBytes()
	if !bytes.Equal(a, b) {
		t.Error("signing bytes not deterministic")
	}

	// Sig is excluded from the covered bytes
	signed := op
	signed.Sig = "sigsigsig"
	if !bytes.Equal(a, signed.SigningBytes()) {
		t.Error("signature field must not affect signing bytes")
	}
}

func TestOperationSigningBytesFieldBoundaries(t *testing.T) {
	// Free-form name and symbol bytes must not be able to collide
	// across field boundaries.
	a := Operation{Kind: OpCreate, Caller: "c", Owner: "o", Name: "ab", Symbol: "c"}
	b := Operation{Kind: OpCreate, Caller: "c", Owner: "o", Name: "a", Symbol: "bc"}
	if bytes.Equal(a.SigningBytes(), b.SigningBytes()) {
		t.Error("distinct operations encoded identically")
	}

	// Separator bytes inside a value cannot forge a boundary
	c := Operation{Kind: OpCreate, Caller: "c", Owner: "o", Name: "a|1:b"}
	d := Operation{Kind: OpCreate, Caller: "c", Owner: "o", Name: "a", Symbol: "b"}
	if bytes.Equal(c.SigningBytes(), d.SigningBytes()) {
		t.Error("separator inside value forged a boundary")
	}
}

func TestOperationValidate(t *testing.T) {
	valid := Operation{Kind: OpTransfer, Caller: "alice", Token: 1, To: "bob", Value: 5}
	if err := valid.Validate(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	// Unknown kind
	op := valid
	op.Kind = "NOT_A_KIND"
	if err := op.Validate(); err == nil {
		t.Error("expected error for unknown kind")
	}

	// Missing caller
	op = valid
	op.Caller = ZeroAccount
	if err := op.Validate(); err == nil {
		t.Error("expected error for missing caller")
	}

	// Transfer without recipient
	op = valid
	op.To = ZeroAccount
	if err := op.Validate(); err == nil {
		t.Error("expected error for missing recipient")
	}

	// Create without owner
	op = Operation{Kind: OpCreate, Caller: "alice", Name: "Token", Symbol: "TOK"}
	if err := op.Validate(); err == nil {
		t.Error("expected error for missing owner")
	}

	// TransferFrom without source
	op = Operation{Kind: OpTransferFrom, Caller: "alice", Token: 1, Value: 5}
	if err := op.Validate(); err == nil {
		t.Error("expected error for missing source account")
	}

	// Mint needs only caller and token
	op = Operation{Kind: OpMint, Caller: "alice", Token: 1, Value: 5}
	if err := op.Validate(); err != nil {
		t.Errorf("mint: expected nil, got %v", err)
	}
}
