// Package audit checks the ledger's structural invariants: supply
// conservation, dense token ids and a contiguous event journal. It
// runs against any LedgerStore, typically after a replay or before
// trusting an imported snapshot.
package audit

import (
	"context"
	"fmt"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
)

// Violation represents one invariant breach found during an audit.
type Violation struct {
	Invariant string          // invariant name
	Token     *domain.TokenID // affected token, nil for ledger-wide breaches
	Expected  interface{}     // value the invariant requires
	Actual    interface{}     // value found in the store
}

// String formats the violation for logs and reports.
func (v Violation) String() string {
	if v.Token != nil {
		return fmt.Sprintf("%s: token %d: expected %v, got %v", v.Invariant, *v.Token, v.Expected, v.Actual)
	}
	return fmt.Sprintf("%s: expected %v, got %v", v.Invariant, v.Expected, v.Actual)
}

// Report contains the results of one audit pass.
type Report struct {
	TokensAudited int         // token classes checked
	EventsAudited int         // journal entries checked
	Violations    []Violation // all breaches found
}

// Clean reports whether the audit found no violations.
func (r *Report) Clean() bool {
	return len(r.Violations) == 0
}

// Auditor verifies a ledger store against the core invariants.
type Auditor struct {
	store storage.LedgerStore
}

// New creates an Auditor over store.
func New(store storage.LedgerStore) *Auditor {
	return &Auditor{store: store}
}

// Run performs a full audit pass and returns the report. Store errors
// abort the audit; invariant breaches do not.
func (a *Auditor) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	if err := a.auditTokens(ctx, report); err != nil {
		return nil, err
	}
	if err := a.auditJournal(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// auditTokens checks per-token invariants and the id space.
func (a *Auditor) auditTokens(ctx context.Context, report *Report) error {
	count, err := a.store.TokenCount(ctx)
	if err != nil {
		return fmt.Errorf("audit: token count: %w", err)
	}
	tokens, err := a.store.Tokens(ctx)
	if err != nil {
		return fmt.Errorf("audit: list tokens: %w", err)
	}
	report.TokensAudited = len(tokens)

	if uint32(len(tokens)) != count {
		report.Violations = append(report.Violations, Violation{
			Invariant: "token-count",
			Expected:  count,
			Actual:    uint32(len(tokens)),
		})
	}

	for i, info := range tokens {
		id := info.ID

		// Dense ids: descriptor i carries id i
		if uint32(id) != uint32(i) {
			report.Violations = append(report.Violations, Violation{
				Invariant: "dense-ids",
				Token:     &id,
				Expected:  uint32(i),
				Actual:    uint32(id),
			})
		}

		// Every created token has a registered owner
		owner, err := a.store.TokenOwner(ctx, id)
		if err != nil {
			return fmt.Errorf("audit: owner of %d: %w", id, err)
		}
		if owner.IsZero() {
			report.Violations = append(report.Violations, Violation{
				Invariant: "owner-registered",
				Token:     &id,
				Expected:  "non-zero owner",
				Actual:    "zero account",
			})
		}

		// Conservation: supply equals the sum of balances
		supply, err := a.store.Supply(ctx, id)
		if err != nil {
			return fmt.Errorf("audit: supply of %d: %w", id, err)
		}
		entries, err := a.store.Balances(ctx, id)
		if err != nil {
			return fmt.Errorf("audit: balances of %d: %w", id, err)
		}
		var sum domain.Amount
		overflow := false
		for _, e := range entries {
			if e.Amount == 0 {
				report.Violations = append(report.Violations, Violation{
					Invariant: "no-zero-entries",
					Token:     &id,
					Expected:  "non-zero listed balances",
					Actual:    fmt.Sprintf("zero entry for %s", e.Account),
				})
			}
			var ok bool
			sum, ok = sum.Add(e.Amount)
			if !ok {
				overflow = true
				break
			}
		}
		if overflow {
			report.Violations = append(report.Violations, Violation{
				Invariant: "conservation",
				Token:     &id,
				Expected:  supply.String(),
				Actual:    "balance sum overflows",
			})
		} else if sum != supply {
			report.Violations = append(report.Violations, Violation{
				Invariant: "conservation",
				Token:     &id,
				Expected:  supply.String(),
				Actual:    sum.String(),
			})
		}
	}
	return nil
}

// auditJournal checks sequence contiguity, timestamp ordering and the
// density of creation events.
func (a *Auditor) auditJournal(ctx context.Context, report *Report) error {
	const page = 1000

	var (
		afterSeq      uint64
		lastBlockTime int64
		created       uint32
	)
	for {
		events, err := a.store.Events(ctx, afterSeq, page)
		if err != nil {
			return fmt.Errorf("audit: events after %d: %w", afterSeq, err)
		}
		if len(events) == 0 {
			break
		}
		for _, ev := range events {
			report.EventsAudited++

			if ev.Seq != afterSeq+1 {
				report.Violations = append(report.Violations, Violation{
					Invariant: "journal-contiguous",
					Expected:  afterSeq + 1,
					Actual:    ev.Seq,
				})
			}
			afterSeq = ev.Seq

			if ev.BlockTime < lastBlockTime {
				report.Violations = append(report.Violations, Violation{
					Invariant: "journal-time-ordered",
					Expected:  fmt.Sprintf(">= %d", lastBlockTime),
					Actual:    ev.BlockTime,
				})
			}
			lastBlockTime = ev.BlockTime

			if ev.Kind == domain.EventCreated {
				id := ev.Token
				if uint32(id) != created {
					report.Violations = append(report.Violations, Violation{
						Invariant: "creation-order",
						Token:     &id,
						Expected:  created,
						Actual:    uint32(id),
					})
				}
				created++
			}
		}
	}

	count, err := a.store.TokenCount(ctx)
	if err != nil {
		return fmt.Errorf("audit: token count: %w", err)
	}
	if created != count {
		report.Violations = append(report.Violations, Violation{
			Invariant: "creation-events",
			Expected:  count,
			Actual:    created,
		})
	}
	return nil
}
