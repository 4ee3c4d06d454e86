package reporting

import (
	"context"
	"sort"
	"time"

	"token-ledger/internal/audit"
	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
)

const (
	defaultHolderLimit = 10
	journalPageSize    = 1000
)

// Generator produces reports from a ledger store.
type Generator struct {
	store       storage.LedgerStore
	holderLimit int
	now         func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(store storage.LedgerStore) *Generator {
	return &Generator{
		store:       store,
		holderLimit: defaultHolderLimit,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithHolderLimit caps the largest-holders section.
func (g *Generator) WithHolderLimit(n int) *Generator {
	g.holderLimit = n
	return g
}

// Generate produces a complete ledger report.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	count, err := g.store.TokenCount(ctx)
	if err != nil {
		return nil, err
	}
	lastSeq, err := g.store.LastEventSeq(ctx)
	if err != nil {
		return nil, err
	}

	tokens, holders, err := g.generateTokenRows(ctx)
	if err != nil {
		return nil, err
	}

	activity, err := g.generateActivity(ctx)
	if err != nil {
		return nil, err
	}

	integrity, err := g.generateIntegrity(ctx)
	if err != nil {
		return nil, err
	}

	return &Report{
		GeneratedAt:    g.now(),
		TokenCount:     count,
		LastEventSeq:   lastSeq,
		Tokens:         tokens,
		Activity:       activity,
		LargestHolders: holders,
		Integrity:      *integrity,
	}, nil
}

// generateTokenRows builds per-token rows and the largest-holders
// section from the balance listings.
func (g *Generator) generateTokenRows(ctx context.Context) ([]TokenRow, []HolderRow, error) {
	infos, err := g.store.Tokens(ctx)
	if err != nil {
		return nil, nil, err
	}

	rows := make([]TokenRow, 0, len(infos))
	var holders []HolderRow
	for _, info := range infos {
		supply, err := g.store.Supply(ctx, info.ID)
		if err != nil {
			return nil, nil, err
		}
		paused, err := g.store.Paused(ctx, info.ID)
		if err != nil {
			return nil, nil, err
		}
		owner, err := g.store.TokenOwner(ctx, info.ID)
		if err != nil {
			return nil, nil, err
		}
		balances, err := g.store.Balances(ctx, info.ID)
		if err != nil {
			return nil, nil, err
		}

		rows = append(rows, TokenRow{
			ID:      info.ID,
			Name:    info.Name,
			Symbol:  info.Symbol,
			Owner:   owner,
			Supply:  supply,
			Holders: len(balances),
			Paused:  paused,
			Created: info.Created,
		})
		for _, b := range balances {
			holders = append(holders, HolderRow{Token: info.ID, Account: b.Account, Amount: b.Amount})
		}
	}

	// Tokens() is already ordered by id. Holders sort by amount, with
	// (token, account) as the tiebreak so equal balances stay stable.
	sort.Slice(holders, func(i, j int) bool {
		if holders[i].Amount != holders[j].Amount {
			return holders[i].Amount > holders[j].Amount
		}
		if holders[i].Token != holders[j].Token {
			return holders[i].Token < holders[j].Token
		}
		return holders[i].Account < holders[j].Account
	})
	if g.holderLimit > 0 && len(holders) > g.holderLimit {
		holders = holders[:g.holderLimit]
	}
	return rows, holders, nil
}

// generateActivity pages through the journal and tallies each kind.
func (g *Generator) generateActivity(ctx context.Context) ([]ActivityRow, error) {
	type tally struct {
		count  int
		volume domain.Amount
	}
	byKind := make(map[domain.EventKind]*tally)

	var cursor uint64
	for {
		evs, err := g.store.Events(ctx, cursor, journalPageSize)
		if err != nil {
			return nil, err
		}
		for _, ev := range evs {
			t := byKind[ev.Kind]
			if t == nil {
				t = &tally{}
				byKind[ev.Kind] = t
			}
			t.count++
			if sum, ok := t.volume.Add(ev.Amount); ok {
				t.volume = sum
			} else {
				t.volume = domain.MaxAmount
			}
			cursor = ev.Seq
		}
		if len(evs) < journalPageSize {
			break
		}
	}

	rows := make([]ActivityRow, 0, len(byKind))
	for kind, t := range byKind {
		rows = append(rows, ActivityRow{Kind: kind, Count: t.count, Volume: t.volume})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Kind < rows[j].Kind })
	return rows, nil
}

// generateIntegrity runs the invariant audit and flattens its report.
func (g *Generator) generateIntegrity(ctx context.Context) (*IntegritySection, error) {
	auditReport, err := audit.New(g.store).Run(ctx)
	if err != nil {
		return nil, err
	}

	violations := make([]string, 0, len(auditReport.Violations))
	for _, v := range auditReport.Violations {
		violations = append(violations, v.String())
	}
	return &IntegritySection{
		TokensAudited: auditReport.TokensAudited,
		EventsAudited: auditReport.EventsAudited,
		Violations:    violations,
		Clean:         auditReport.Clean(),
	}, nil
}
