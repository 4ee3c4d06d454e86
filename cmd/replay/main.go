// Command replay rebuilds a ledger from a JSONL operation log and
// audits the result. Block times come from the recorded acceptance
// times, so two replays of the same log produce identical state.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"token-ledger/internal/audit"
	"token-ledger/internal/domain"
	"token-ledger/internal/identity"
	"token-ledger/internal/ledger"
	"token-ledger/internal/oplog"
	"token-ledger/internal/storage"
	"token-ledger/internal/storage/badgerstore"
	"token-ledger/internal/storage/memory"
)

func main() {
	// Parse flags
	oplogPath := flag.String("oplog", "", "Operation log file to replay (required)")
	badgerDir := flag.String("badger-dir", "", "Persist the rebuilt ledger to this badger directory")
	verify := flag.Bool("verify", false, "Verify every operation signature before applying")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	// Setup structured logger
	logger := log.New(os.Stderr, "[replay] ", log.LstdFlags)

	// Validate required flags
	if *oplogPath == "" {
		logger.Fatal("--oplog is required")
	}

	ctx := context.Background()

	// Read the log up front; a malformed line fails the whole replay
	records, err := oplog.Read(*oplogPath)
	if err != nil {
		logger.Fatalf("read oplog: %v", err)
	}
	logger.Printf("Read %d operations from %s", len(records), *oplogPath)

	if *verify {
		for i, rec := range records {
			if err := identity.VerifyOperation(rec.Op); err != nil {
				logger.Fatalf("record %d: %v", i+1, err)
			}
		}
		logger.Printf("Verified %d signatures", len(records))
	}

	// Replay into a fresh store
	var store storage.LedgerStore = memory.NewLedgerStore()
	if *badgerDir != "" {
		bs, err := badgerstore.Open(*badgerDir, badgerstore.Options{Logger: logger})
		if err != nil {
			logger.Fatalf("open badger store: %v", err)
		}
		store = bs
	}
	defer store.Close()

	clock := &ledger.ManualClock{}
	l, err := ledger.New(ledger.Options{
		Store:  store,
		Clock:  clock,
		Logger: logger,
	})
	if err != nil {
		logger.Fatalf("create ledger: %v", err)
	}

	stats := ReplayStats{ByKind: make(map[string]int)}
	for i, rec := range records {
		clock.Set(rec.At)
		if _, err := l.Apply(ctx, rec.Op); err != nil {
			// An accepted operation that fails on replay means the log
			// and the ledger rules disagree; keep going and report.
			stats.Failed++
			logger.Printf("record %d (%s): %v", i+1, rec.Op.Kind, err)
			continue
		}
		stats.Applied++
		stats.ByKind[string(rec.Op.Kind)]++
		if stats.FirstAt == 0 {
			stats.FirstAt = rec.At
		}
		stats.LastAt = rec.At
	}
	stats.Operations = len(records)

	// Audit the rebuilt ledger
	auditReport, err := audit.New(store).Run(ctx)
	if err != nil {
		logger.Fatalf("audit: %v", err)
	}
	stats.TokensAudited = auditReport.TokensAudited
	stats.EventsAudited = auditReport.EventsAudited
	stats.Clean = auditReport.Clean()
	for _, v := range auditReport.Violations {
		stats.Violations = append(stats.Violations, v.String())
	}

	if count, err := store.TokenCount(ctx); err == nil {
		stats.TokenCount = count
	}
	if seq, err := store.LastEventSeq(ctx); err == nil {
		stats.LastEventSeq = seq
	}

	// Output summary
	if *outputJSON {
		output, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Println(string(output))
	} else {
		printSummary(stats)
	}

	if stats.Failed > 0 || !stats.Clean {
		os.Exit(1)
	}
}

// ReplayStats holds replay statistics.
type ReplayStats struct {
	Operations    int            `json:"operations"`
	Applied       int            `json:"applied"`
	Failed        int            `json:"failed"`
	ByKind        map[string]int `json:"by_kind"`
	FirstAt       int64          `json:"first_at"`
	LastAt        int64          `json:"last_at"`
	TokenCount    uint32         `json:"token_count"`
	LastEventSeq  uint64         `json:"last_event_seq"`
	TokensAudited int            `json:"tokens_audited"`
	EventsAudited int            `json:"events_audited"`
	Clean         bool           `json:"clean"`
	Violations    []string       `json:"violations,omitempty"`
}

func printSummary(stats ReplayStats) {
	fmt.Printf("\n=== Replay Summary ===\n")
	fmt.Printf("Operations:     %d\n", stats.Operations)
	fmt.Printf("Applied:        %d\n", stats.Applied)
	fmt.Printf("Failed:         %d\n", stats.Failed)
	for _, kind := range []domain.OpKind{
		domain.OpCreate, domain.OpTransfer, domain.OpTransferFrom,
		domain.OpMint, domain.OpBurn, domain.OpSetPaused,
	} {
		if n := stats.ByKind[string(kind)]; n > 0 {
			fmt.Printf("  %-14s%d\n", kind, n)
		}
	}
	if stats.Operations > 0 {
		fmt.Printf("First Accepted: %s\n", time.UnixMilli(stats.FirstAt).Format(time.RFC3339))
		fmt.Printf("Last Accepted:  %s\n", time.UnixMilli(stats.LastAt).Format(time.RFC3339))
	}
	fmt.Printf("Tokens:         %d\n", stats.TokenCount)
	fmt.Printf("Journal Events: %d\n", stats.LastEventSeq)
	fmt.Printf("Audited:        %d tokens, %d events\n", stats.TokensAudited, stats.EventsAudited)
	if stats.Clean {
		fmt.Printf("Audit:          clean\n")
	} else {
		fmt.Printf("Audit:          %d violations\n", len(stats.Violations))
		for _, v := range stats.Violations {
			fmt.Printf("  - %s\n", v)
		}
	}
}
