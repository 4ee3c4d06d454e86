package audit

import (
	"context"
	"io"
	"log"
	"testing"

	"token-ledger/internal/domain"
	"token-ledger/internal/ledger"
	"token-ledger/internal/storage"
	"token-ledger/internal/storage/memory"
)

func builtLedgerStore(t *testing.T) *memory.LedgerStore {
	t.Helper()
	store := memory.NewLedgerStore()
	l, err := ledger.New(ledger.Options{
		Store:  store,
		Clock:  ledger.StaticClock(1700000000000),
		Logger: log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("ledger.New failed: %v", err)
	}
	ctx := context.Background()

	id, err := l.Create(ctx, "alice", "alice", "First", "FST", 1000)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := l.Create(ctx, "bob", "carol", "Second", "SND", 50); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := l.Transfer(ctx, "alice", id, "bob", 250); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if err := l.Mint(ctx, "alice", id, 10); err != nil {
		t.Fatalf("Mint failed: %v", err)
	}
	if err := l.Burn(ctx, "alice", id, 5); err != nil {
		t.Fatalf("Burn failed: %v", err)
	}
	return store
}

func TestAuditCleanLedger(t *testing.T) {
	store := builtLedgerStore(t)

	report, err := New(store).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !report.Clean() {
		for _, v := range report.Violations {
			t.Errorf("unexpected violation: %s", v)
		}
	}
	if report.TokensAudited != 2 {
		t.Errorf("TokensAudited: got %d, want 2", report.TokensAudited)
	}
	if report.EventsAudited != 5 {
		t.Errorf("EventsAudited: got %d, want 5", report.EventsAudited)
	}
}

func TestAuditDetectsConservationBreach(t *testing.T) {
	store := builtLedgerStore(t)
	ctx := context.Background()

	// Corrupt a supply entry directly, bypassing the ledger
	err := store.Update(ctx, storage.TokenScope(0), func(tx storage.Tx) error {
		return tx.SetSupply(ctx, 0, 1)
	})
	if err != nil {
		t.Fatalf("corruption failed: %v", err)
	}

	report, err := New(store).Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Clean() {
		t.Fatal("expected a conservation violation")
	}
	found := false
	for _, v := range report.Violations {
		if v.Invariant == "conservation" && v.Token != nil && *v.Token == 0 {
			found = true
		}
	}
	if !found {
		t.Errorf("no conservation violation for token 0 in %v", report.Violations)
	}
}

func TestAuditDetectsCountMismatch(t *testing.T) {
	store := builtLedgerStore(t)
	ctx := context.Background()

	err := store.Update(ctx, storage.RegistryScope(), func(tx storage.Tx) error {
		return tx.SetTokenCount(ctx, 5)
	})
	if err != nil {
		t.Fatalf("corruption failed: %v", err)
	}

	report, err := New(store).Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	var kinds []string
	for _, v := range report.Violations {
		kinds = append(kinds, v.Invariant)
	}
	if report.Clean() {
		t.Fatal("expected violations")
	}
	hasCount := false
	for _, k := range kinds {
		if k == "token-count" || k == "creation-events" {
			hasCount = true
		}
	}
	if !hasCount {
		t.Errorf("expected a count violation, got %v", kinds)
	}
}

func TestAuditDetectsMissingOwner(t *testing.T) {
	store := builtLedgerStore(t)
	ctx := context.Background()

	err := store.Update(ctx, storage.TokenScope(1), func(tx storage.Tx) error {
		return tx.SetTokenOwner(ctx, 1, domain.ZeroAccount)
	})
	if err != nil {
		t.Fatalf("corruption failed: %v", err)
	}

	report, err := New(store).Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	found := false
	for _, v := range report.Violations {
		if v.Invariant == "owner-registered" && v.Token != nil && *v.Token == 1 {
			found = true
		}
	}
	if !found {
		t.Errorf("no owner violation in %v", report.Violations)
	}
}

func TestAuditEmptyLedger(t *testing.T) {
	store := memory.NewLedgerStore()
	report, err := New(store).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !report.Clean() || report.TokensAudited != 0 || report.EventsAudited != 0 {
		t.Errorf("empty ledger should audit clean: %+v", report)
	}
}
