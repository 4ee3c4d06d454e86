package clickhouse

import (
	"context"
	"fmt"

	"token-ledger/internal/domain"
)

// VolumeRow is per-token activity aggregated from the journal copy.
type VolumeRow struct {
	Token      domain.TokenID
	Kind       domain.EventKind
	Operations uint64
	Total      domain.Amount
}

// AccountActivityRow counts how often an account received a transfer.
type AccountActivityRow struct {
	Account   domain.AccountID
	Transfers uint64
}

// AnalyticsStore runs aggregate queries over the events copy. Queries
// read with FINAL so rows the sink re-inserted after a restart are
// deduplicated.
type AnalyticsStore struct {
	conn *Conn
}

// NewAnalyticsStore creates a new AnalyticsStore.
func NewAnalyticsStore(conn *Conn) *AnalyticsStore {
	return &AnalyticsStore{conn: conn}
}

// VolumeByToken aggregates operation counts and moved amounts per
// token and event kind, ordered by token then kind.
func (s *AnalyticsStore) VolumeByToken(ctx context.Context) ([]*VolumeRow, error) {
	query := `
		SELECT token_id, kind, count() AS operations, sum(amount) AS total
		FROM events FINAL
		GROUP BY token_id, kind
		ORDER BY token_id ASC, kind ASC
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query volume by token: %w", err)
	}
	defer rows.Close()

	var result []*VolumeRow
	for rows.Next() {
		var (
			token      uint32
			kind       string
			operations uint64
			total      uint64
		)
		if err := rows.Scan(&token, &kind, &operations, &total); err != nil {
			return nil, fmt.Errorf("scan volume row: %w", err)
		}
		result = append(result, &VolumeRow{
			Token:      domain.TokenID(token),
			Kind:       domain.EventKind(kind),
			Operations: operations,
			Total:      domain.Amount(total),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate volume rows: %w", err)
	}
	return result, nil
}

// TopRecipients returns the accounts that received the most
// transfers, busiest first.
func (s *AnalyticsStore) TopRecipients(ctx context.Context, limit int) ([]*AccountActivityRow, error) {
	query := `
		SELECT to_account AS account, count() AS transfers
		FROM events FINAL
		WHERE kind IN ('TRANSFER', 'TRANSFER_FROM') AND to_account != ''
		GROUP BY account
		ORDER BY transfers DESC, account ASC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("query top recipients: %w", err)
	}
	defer rows.Close()

	var result []*AccountActivityRow
	for rows.Next() {
		var (
			account   string
			transfers uint64
		)
		if err := rows.Scan(&account, &transfers); err != nil {
			return nil, fmt.Errorf("scan recipient row: %w", err)
		}
		result = append(result, &AccountActivityRow{
			Account:   domain.AccountID(account),
			Transfers: transfers,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipient rows: %w", err)
	}
	return result, nil
}
