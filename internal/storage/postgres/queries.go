package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
)

// querier is the query surface shared by *Pool and pgx.Tx, so the
// same read implementations serve store-level reads and reads inside
// an Update transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// reads implements storage.Reader over any querier. Amounts are
// stored as NUMERIC(20,0) and travel as text so the full uint64 range
// survives the round trip.
type reads struct {
	q querier
}

func (r reads) TokenCount(ctx context.Context) (uint32, error) {
	var count int64
	err := r.q.QueryRow(ctx, `SELECT value FROM ledger_meta WHERE key = 'token_count'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("query token count: %w", err)
	}
	return uint32(count), nil
}

func (r reads) Token(ctx context.Context, id domain.TokenID) (*domain.TokenInfo, error) {
	info := domain.TokenInfo{ID: id}
	var owner string
	err := r.q.QueryRow(ctx, `SELECT name, symbol, owner, created_at FROM tokens WHERE id = $1`,
		int64(id)).Scan(&info.Name, &info.Symbol, &owner, &info.Created)
	if isNotFoundError(err) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query token %d: %w", id, err)
	}
	info.Owner = domain.AccountID(owner)
	return &info, nil
}

func (r reads) TokenOwner(ctx context.Context, id domain.TokenID) (domain.AccountID, error) {
	var owner string
	err := r.q.QueryRow(ctx, `SELECT owner FROM token_owners WHERE token_id = $1`,
		int64(id)).Scan(&owner)
	if isNotFoundError(err) {
		return domain.ZeroAccount, nil
	}
	if err != nil {
		return domain.ZeroAccount, fmt.Errorf("query token owner: %w", err)
	}
	return domain.AccountID(owner), nil
}

func (r reads) Balance(ctx context.Context, id domain.TokenID, account domain.AccountID) (domain.Amount, error) {
	var text string
	err := r.q.QueryRow(ctx, `SELECT amount::text FROM balances WHERE token_id = $1 AND account = $2`,
		int64(id), string(account)).Scan(&text)
	if isNotFoundError(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query balance: %w", err)
	}
	return parseStoredAmount(text)
}

func (r reads) Supply(ctx context.Context, id domain.TokenID) (domain.Amount, error) {
	var text string
	err := r.q.QueryRow(ctx, `SELECT amount::text FROM supplies WHERE token_id = $1`,
		int64(id)).Scan(&text)
	if isNotFoundError(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query supply: %w", err)
	}
	return parseStoredAmount(text)
}

func (r reads) Paused(ctx context.Context, id domain.TokenID) (bool, error) {
	var status bool
	err := r.q.QueryRow(ctx, `SELECT status FROM paused WHERE token_id = $1`,
		int64(id)).Scan(&status)
	if isNotFoundError(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query paused: %w", err)
	}
	return status, nil
}

func (r reads) Allowance(ctx context.Context, id domain.TokenID, owner, spender domain.AccountID) (domain.Amount, error) {
	var text string
	err := r.q.QueryRow(ctx, `SELECT amount::text FROM allowances WHERE token_id = $1 AND owner = $2 AND spender = $3`,
		int64(id), string(owner), string(spender)).Scan(&text)
	if isNotFoundError(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query allowance: %w", err)
	}
	return parseStoredAmount(text)
}

func (r reads) Tokens(ctx context.Context) ([]*domain.TokenInfo, error) {
	rows, err := r.q.Query(ctx, `SELECT id, name, symbol, owner, created_at FROM tokens ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	return scanTokens(rows)
}

func (r reads) Balances(ctx context.Context, id domain.TokenID) ([]domain.BalanceEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT account, amount::text FROM balances
		WHERE token_id = $1 AND amount <> 0
		ORDER BY account`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("query balances: %w", err)
	}
	defer rows.Close()

	var entries []domain.BalanceEntry
	for rows.Next() {
		var account, text string
		if err := rows.Scan(&account, &text); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		amount, err := parseStoredAmount(text)
		if err != nil {
			return nil, err
		}
		entries = append(entries, domain.BalanceEntry{
			Account: domain.AccountID(account),
			Amount:  amount,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balances: %w", err)
	}
	return entries, nil
}

func scanTokens(rows pgx.Rows) ([]*domain.TokenInfo, error) {
	var infos []*domain.TokenInfo
	for rows.Next() {
		var (
			info  domain.TokenInfo
			id    int64
			owner string
		)
		if err := rows.Scan(&id, &info.Name, &info.Symbol, &owner, &info.Created); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		info.ID = domain.TokenID(id)
		info.Owner = domain.AccountID(owner)
		infos = append(infos, &info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return infos, nil
}

func scanEvents(rows pgx.Rows) ([]*domain.Event, error) {
	var events []*domain.Event
	for rows.Next() {
		var (
			ev     domain.Event
			seq    int64
			kind   string
			token  int64
			from   string
			to     string
			amount string
		)
		if err := rows.Scan(&seq, &kind, &token, &from, &to, &amount, &ev.Paused, &ev.BlockTime); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		parsed, err := parseStoredAmount(amount)
		if err != nil {
			return nil, err
		}
		ev.Seq = uint64(seq)
		ev.Kind = domain.EventKind(kind)
		ev.Token = domain.TokenID(token)
		ev.From = domain.AccountID(from)
		ev.To = domain.AccountID(to)
		ev.Amount = parsed
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// parseStoredAmount converts a NUMERIC(20,0) column read as text back
// into an Amount. A value outside the uint64 range means the row was
// written outside the checked-arithmetic path.
func parseStoredAmount(text string) (domain.Amount, error) {
	amount, err := domain.ParseAmount(text)
	if err != nil {
		return 0, fmt.Errorf("stored amount %q: %w", text, err)
	}
	return amount, nil
}
