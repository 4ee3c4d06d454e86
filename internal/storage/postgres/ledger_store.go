package postgres

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"

	"token-ledger/internal/domain"
	"token-ledger/internal/observability"
	"token-ledger/internal/storage"
)

// Advisory lock keyspace for Update scopes. Token creation serializes
// on the registry class; per-token mutations key on the token ID in a
// disjoint class so they never contend with creation.
const (
	lockClassRegistry int32 = 1
	lockClassToken    int32 = 2
)

// LedgerStore persists ledger state and the event journal in
// PostgreSQL. Each state map lives in its own table keyed by token
// and account; the global counters live as rows of ledger_meta so
// they participate in the same transactions as the state writes.
type LedgerStore struct {
	reads
	pool   *Pool
	closed atomic.Bool
}

// NewLedgerStore wraps an open pool. The schema must already be in
// place; callers run migrations.RunPostgresMigrations first.
func NewLedgerStore(pool *Pool) *LedgerStore {
	return &LedgerStore{reads: reads{q: pool}, pool: pool}
}

var _ storage.LedgerStore = (*LedgerStore)(nil)

// Update runs fn inside one transaction holding the scope's advisory
// lock, so same-scope updates apply strictly one after another while
// different scopes commit concurrently. An error from fn aborts the
// transaction and is returned unwrapped.
func (s *LedgerStore) Update(ctx context.Context, scope storage.Scope, fn func(tx storage.Tx) error) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}

	start := time.Now()
	err := s.update(ctx, scope, fn)
	observability.RecordDBQuery("postgres", "update", time.Since(start).Seconds(), err)
	return err
}

func (s *LedgerStore) update(ctx context.Context, scope storage.Scope, fn func(tx storage.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback(ctx)

	class, key := scopeLockKey(scope)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1, $2)`, class, key); err != nil {
		return fmt.Errorf("lock scope: %w", err)
	}

	if err := fn(&pgTx{reads: reads{q: tx}, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	return nil
}

func scopeLockKey(scope storage.Scope) (int32, int32) {
	if scope.IsRegistry() {
		return lockClassRegistry, 0
	}
	return lockClassToken, int32(scope.Token())
}

// Events retrieves journaled events with Seq > afterSeq in sequence
// order, at most limit entries when limit > 0.
func (s *LedgerStore) Events(ctx context.Context, afterSeq uint64, limit int) ([]*domain.Event, error) {
	query := `
		SELECT seq, kind, token_id, from_account, to_account, amount::text, paused, block_time
		FROM events
		WHERE seq > $1
		ORDER BY seq`
	args := []any{int64(afterSeq)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// LastEventSeq returns the highest assigned event sequence number.
func (s *LedgerStore) LastEventSeq(ctx context.Context) (uint64, error) {
	var seq int64
	err := s.pool.QueryRow(ctx, `SELECT value FROM ledger_meta WHERE key = 'event_seq'`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("query event seq: %w", err)
	}
	return uint64(seq), nil
}

// Close closes the underlying pool. Close is idempotent.
func (s *LedgerStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.pool.Close()
	return nil
}

// pgTx adapts a pgx transaction to storage.Tx. Reads through the
// transaction connection observe the transaction's own writes.
type pgTx struct {
	reads
	tx pgx.Tx
}

var _ storage.Tx = (*pgTx)(nil)

func (t *pgTx) SetTokenCount(ctx context.Context, count uint32) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO ledger_meta (key, value) VALUES ('token_count', $1)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`, int64(count))
	if err != nil {
		return fmt.Errorf("set token count: %w", err)
	}
	return nil
}

func (t *pgTx) PutToken(ctx context.Context, info *domain.TokenInfo) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO tokens (id, name, symbol, owner, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		int64(info.ID), info.Name, info.Symbol, string(info.Owner), info.Created)
	if isDuplicateKeyError(err) {
		return fmt.Errorf("%w: token %d already recorded", storage.ErrInvalidInput, info.ID)
	}
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

func (t *pgTx) SetTokenOwner(ctx context.Context, id domain.TokenID, owner domain.AccountID) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO token_owners (token_id, owner) VALUES ($1, $2)
		ON CONFLICT (token_id) DO UPDATE SET owner = EXCLUDED.owner`,
		int64(id), string(owner))
	if err != nil {
		return fmt.Errorf("set token owner: %w", err)
	}
	return nil
}

func (t *pgTx) SetBalance(ctx context.Context, id domain.TokenID, account domain.AccountID, amount domain.Amount) error {
	if amount == 0 {
		_, err := t.tx.Exec(ctx, `DELETE FROM balances WHERE token_id = $1 AND account = $2`,
			int64(id), string(account))
		if err != nil {
			return fmt.Errorf("delete balance: %w", err)
		}
		return nil
	}

	_, err := t.tx.Exec(ctx, `
		INSERT INTO balances (token_id, account, amount)
		VALUES ($1, $2, $3::numeric)
		ON CONFLICT (token_id, account) DO UPDATE SET amount = EXCLUDED.amount`,
		int64(id), string(account), amount.String())
	if err != nil {
		return fmt.Errorf("upsert balance: %w", err)
	}
	return nil
}

func (t *pgTx) SetSupply(ctx context.Context, id domain.TokenID, amount domain.Amount) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO supplies (token_id, amount)
		VALUES ($1, $2::numeric)
		ON CONFLICT (token_id) DO UPDATE SET amount = EXCLUDED.amount`,
		int64(id), amount.String())
	if err != nil {
		return fmt.Errorf("upsert supply: %w", err)
	}
	return nil
}

func (t *pgTx) SetPaused(ctx context.Context, id domain.TokenID, paused bool) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO paused (token_id, status) VALUES ($1, $2)
		ON CONFLICT (token_id) DO UPDATE SET status = EXCLUDED.status`,
		int64(id), paused)
	if err != nil {
		return fmt.Errorf("upsert paused: %w", err)
	}
	return nil
}

// AppendEvent advances the event_seq counter row and journals the
// event under the claimed sequence number. The counter row lock is
// held until commit, which is what makes the journal contiguous in
// commit order across scopes.
func (t *pgTx) AppendEvent(ctx context.Context, ev *domain.Event) error {
	var seq int64
	err := t.tx.QueryRow(ctx,
		`UPDATE ledger_meta SET value = value + 1 WHERE key = 'event_seq' RETURNING value`).Scan(&seq)
	if err != nil {
		return fmt.Errorf("advance event seq: %w", err)
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO events (seq, kind, token_id, from_account, to_account, amount, paused, block_time)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8)`,
		seq, string(ev.Kind), int64(ev.Token), string(ev.From), string(ev.To),
		ev.Amount.String(), ev.Paused, ev.BlockTime)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	ev.Seq = uint64(seq)
	return nil
}
