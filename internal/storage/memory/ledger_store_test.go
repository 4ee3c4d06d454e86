package memory

import (
	"context"
	"errors"
	"testing"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
)

func TestLedgerStore_UpdateCommit(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	err := store.Update(ctx, storage.RegistryScope(), func(tx storage.Tx) error {
		if err := tx.SetTokenCount(ctx, 1); err != nil {
			return err
		}
		if err := tx.PutToken(ctx, &domain.TokenInfo{ID: 0, Name: "Token", Symbol: "TOK", Owner: "alice", Created: 1000}); err != nil {
			return err
		}
		if err := tx.SetTokenOwner(ctx, 0, "alice"); err != nil {
			return err
		}
		if err := tx.SetBalance(ctx, 0, "alice", 500); err != nil {
			return err
		}
		if err := tx.SetSupply(ctx, 0, 500); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, &domain.Event{Kind: domain.EventCreated, Token: 0, To: "alice", Amount: 500})
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	count, err := store.TokenCount(ctx)
	if err != nil || count != 1 {
		t.Errorf("TokenCount: got (%d, %v), want (1, nil)", count, err)
	}

	info, err := store.Token(ctx, 0)
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if info.Symbol != "TOK" {
		t.Errorf("Symbol mismatch: got %s, want TOK", info.Symbol)
	}

	owner, _ := store.TokenOwner(ctx, 0)
	if owner != "alice" {
		t.Errorf("TokenOwner mismatch: got %s, want alice", owner)
	}

	balance, _ := store.Balance(ctx, 0, "alice")
	if balance != 500 {
		t.Errorf("Balance mismatch: got %d, want 500", balance)
	}

	seq, _ := store.LastEventSeq(ctx)
	if seq != 1 {
		t.Errorf("LastEventSeq: got %d, want 1", seq)
	}
}

func TestLedgerStore_UpdateRollback(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	failure := errors.New("boom")
	err := store.Update(ctx, storage.TokenScope(0), func(tx storage.Tx) error {
		if err := tx.SetBalance(ctx, 0, "alice", 100); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, &domain.Event{Kind: domain.EventMint, Token: 0, To: "alice", Amount: 100}); err != nil {
			return err
		}
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("Update should surface the closure error, got %v", err)
	}

	// Nothing staged may have leaked
	balance, _ := store.Balance(ctx, 0, "alice")
	if balance != 0 {
		t.Errorf("Balance after rollback: got %d, want 0", balance)
	}
	seq, _ := store.LastEventSeq(ctx)
	if seq != 0 {
		t.Errorf("LastEventSeq after rollback: got %d, want 0", seq)
	}
	events, _ := store.Events(ctx, 0, 0)
	if len(events) != 0 {
		t.Errorf("Events after rollback: got %d entries, want 0", len(events))
	}
}

func TestLedgerStore_ReadYourWrites(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	err := store.Update(ctx, storage.TokenScope(0), func(tx storage.Tx) error {
		if err := tx.SetBalance(ctx, 0, "alice", 42); err != nil {
			return err
		}
		balance, err := tx.Balance(ctx, 0, "alice")
		if err != nil {
			return err
		}
		if balance != 42 {
			t.Errorf("tx should see its own write: got %d, want 42", balance)
		}
		count, err := tx.TokenCount(ctx)
		if err != nil {
			return err
		}
		if count != 0 {
			t.Errorf("unstaged count should read base: got %d", count)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
}

func TestLedgerStore_ZeroBalanceRemoved(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	_ = store.Update(ctx, storage.TokenScope(0), func(tx storage.Tx) error {
		_ = tx.SetBalance(ctx, 0, "alice", 10)
		_ = tx.SetBalance(ctx, 0, "bob", 20)
		return nil
	})
	_ = store.Update(ctx, storage.TokenScope(0), func(tx storage.Tx) error {
		return tx.SetBalance(ctx, 0, "alice", 0)
	})

	entries, err := store.Balances(ctx, 0)
	if err != nil {
		t.Fatalf("Balances failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 holder, got %d", len(entries))
	}
	if entries[0].Account != "bob" || entries[0].Amount != 20 {
		t.Errorf("unexpected entry: %+v", entries[0])
	}

	// Absent reads as zero either way
	balance, _ := store.Balance(ctx, 0, "alice")
	if balance != 0 {
		t.Errorf("zeroed balance: got %d, want 0", balance)
	}
}

func TestLedgerStore_EventSequencing(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := store.Update(ctx, storage.TokenScope(0), func(tx storage.Tx) error {
			return tx.AppendEvent(ctx, &domain.Event{Kind: domain.EventMint, Token: 0, To: "alice", Amount: 1})
		})
		if err != nil {
			t.Fatalf("Update %d failed: %v", i, err)
		}
	}

	events, err := store.Events(ctx, 0, 0)
	if err != nil {
		t.Fatalf("Events failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i, ev := range events {
		if ev.Seq != uint64(i+1) {
			t.Errorf("event %d: got seq %d, want %d", i, ev.Seq, i+1)
		}
	}

	// Pagination
	page, err := store.Events(ctx, 1, 1)
	if err != nil {
		t.Fatalf("Events page failed: %v", err)
	}
	if len(page) != 1 || page[0].Seq != 2 {
		t.Errorf("page after seq 1 limit 1: got %+v", page)
	}

	past, _ := store.Events(ctx, 99, 0)
	if len(past) != 0 {
		t.Errorf("expected empty page past the journal end, got %d", len(past))
	}
}

func TestLedgerStore_TokensOrdered(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	for _, id := range []domain.TokenID{2, 0, 1} {
		tid := id
		_ = store.Update(ctx, storage.RegistryScope(), func(tx storage.Tx) error {
			return tx.PutToken(ctx, &domain.TokenInfo{ID: tid, Name: "t", Symbol: "T"})
		})
	}

	tokens, err := store.Tokens(ctx)
	if err != nil {
		t.Fatalf("Tokens failed: %v", err)
	}
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tokens, got %d", len(tokens))
	}
	for i, info := range tokens {
		if info.ID != domain.TokenID(i) {
			t.Errorf("position %d: got ID %d", i, info.ID)
		}
	}
}

func TestLedgerStore_NotFound(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	if _, err := store.Token(ctx, 7); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	// Map-style defaults for everything else
	owner, err := store.TokenOwner(ctx, 7)
	if err != nil || owner != domain.ZeroAccount {
		t.Errorf("TokenOwner: got (%q, %v), want zero account", owner, err)
	}
	supply, err := store.Supply(ctx, 7)
	if err != nil || supply != 0 {
		t.Errorf("Supply: got (%d, %v), want 0", supply, err)
	}
	paused, err := store.Paused(ctx, 7)
	if err != nil || paused {
		t.Errorf("Paused: got (%v, %v), want false", paused, err)
	}
	allowance, err := store.Allowance(ctx, 7, "alice", "bob")
	if err != nil || allowance != 0 {
		t.Errorf("Allowance: got (%d, %v), want 0", allowance, err)
	}
}

func TestLedgerStore_ReturnsCopy(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	info := &domain.TokenInfo{ID: 0, Name: "Token", Symbol: "TOK", Owner: "alice"}
	_ = store.Update(ctx, storage.RegistryScope(), func(tx storage.Tx) error {
		return tx.PutToken(ctx, info)
	})

	// Modify original after insert
	info.Symbol = "HACK"

	result, _ := store.Token(ctx, 0)
	if result.Symbol != "TOK" {
		t.Error("Store should return copy, not reference")
	}

	// Modify the returned copy
	result.Symbol = "HACK2"
	again, _ := store.Token(ctx, 0)
	if again.Symbol != "TOK" {
		t.Error("Returned value should not alias stored state")
	}
}

func TestLedgerStore_Closed(t *testing.T) {
	store := NewLedgerStore()
	ctx := context.Background()

	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := store.TokenCount(ctx); !errors.Is(err, storage.ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	err := store.Update(ctx, storage.RegistryScope(), func(tx storage.Tx) error { return nil })
	if !errors.Is(err, storage.ErrClosed) {
		t.Errorf("Expected ErrClosed from Update, got %v", err)
	}
}
