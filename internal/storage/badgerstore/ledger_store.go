// Package badgerstore persists the ledger in an embedded Badger
// database, for single-process deployments that need durability
// without running PostgreSQL.
package badgerstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	badger "github.com/dgraph-io/badger/v3"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
)

// gcInterval is how often the value log garbage collector runs.
const gcInterval = time.Hour

// Options configures an embedded store.
type Options struct {
	// Logger receives badger's warnings and errors under a
	// [badgerstore] prefix. Defaults to log.Default().
	Logger *log.Logger

	// SyncWrites forces an fsync on every commit.
	SyncWrites bool
}

// LedgerStore implements storage.LedgerStore on a badger database.
// A single writer mutex serializes Update across all scopes, which
// is strictly stronger than the per-scope contract and avoids
// badger's optimistic conflict errors entirely.
type LedgerStore struct {
	db     *badger.DB
	logger *log.Logger

	mu     sync.Mutex // serializes Update
	closed atomic.Bool
	stopGC chan struct{}
}

var _ storage.LedgerStore = (*LedgerStore)(nil)

// Open opens or creates the database under dir.
func Open(dir string, opts Options) (*LedgerStore, error) {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("open badger: create %q: %w", dir, err)
	}

	bopts := badger.DefaultOptions(dir).
		WithLogger(badgerLogger{opts.Logger}).
		WithSyncWrites(opts.SyncWrites)

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	s := &LedgerStore{
		db:     db,
		logger: opts.Logger,
		stopGC: make(chan struct{}),
	}
	go s.gc()
	return s, nil
}

// gc periodically runs badger's value log garbage collection.
func (s *LedgerStore) gc() {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
		}

		err := s.db.RunValueLogGC(0.5)
		if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
			s.logger.Printf("[badgerstore] value log gc: %v", err)
		}
	}
}

// view runs fn in a read-only transaction.
func (s *LedgerStore) view(fn func(txn *badger.Txn) error) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}
	return s.db.View(fn)
}

func (s *LedgerStore) TokenCount(ctx context.Context) (uint32, error) {
	var count uint32
	err := s.view(func(txn *badger.Txn) error {
		var err error
		count, err = readTokenCount(txn)
		return err
	})
	return count, err
}

func (s *LedgerStore) Token(ctx context.Context, id domain.TokenID) (*domain.TokenInfo, error) {
	var info *domain.TokenInfo
	err := s.view(func(txn *badger.Txn) error {
		var err error
		info, err = readToken(txn, id)
		return err
	})
	return info, err
}

func (s *LedgerStore) TokenOwner(ctx context.Context, id domain.TokenID) (domain.AccountID, error) {
	var owner domain.AccountID
	err := s.view(func(txn *badger.Txn) error {
		var err error
		owner, err = readTokenOwner(txn, id)
		return err
	})
	return owner, err
}

func (s *LedgerStore) Balance(ctx context.Context, id domain.TokenID, account domain.AccountID) (domain.Amount, error) {
	var amount domain.Amount
	err := s.view(func(txn *badger.Txn) error {
		var err error
		amount, err = readBalance(txn, id, account)
		return err
	})
	return amount, err
}

func (s *LedgerStore) Supply(ctx context.Context, id domain.TokenID) (domain.Amount, error) {
	var amount domain.Amount
	err := s.view(func(txn *badger.Txn) error {
		var err error
		amount, err = readSupply(txn, id)
		return err
	})
	return amount, err
}

func (s *LedgerStore) Paused(ctx context.Context, id domain.TokenID) (bool, error) {
	var paused bool
	err := s.view(func(txn *badger.Txn) error {
		var err error
		paused, err = readPaused(txn, id)
		return err
	})
	return paused, err
}

func (s *LedgerStore) Allowance(ctx context.Context, id domain.TokenID, owner, spender domain.AccountID) (domain.Amount, error) {
	var amount domain.Amount
	err := s.view(func(txn *badger.Txn) error {
		var err error
		amount, err = readAllowance(txn, id, owner, spender)
		return err
	})
	return amount, err
}

func (s *LedgerStore) Tokens(ctx context.Context) ([]*domain.TokenInfo, error) {
	var infos []*domain.TokenInfo
	err := s.view(func(txn *badger.Txn) error {
		var err error
		infos, err = readTokens(txn)
		return err
	})
	return infos, err
}

func (s *LedgerStore) Balances(ctx context.Context, id domain.TokenID) ([]domain.BalanceEntry, error) {
	var entries []domain.BalanceEntry
	err := s.view(func(txn *badger.Txn) error {
		var err error
		entries, err = readBalances(txn, id)
		return err
	})
	return entries, err
}

// Update runs fn in one read-write transaction under the writer
// mutex. An error from fn discards the transaction and is returned
// unwrapped.
func (s *LedgerStore) Update(ctx context.Context, scope storage.Scope, fn func(tx storage.Tx) error) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	if err := fn(&bdTx{txn: txn}); err != nil {
		return err
	}

	if err := txn.Commit(); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}
	return nil
}

func (s *LedgerStore) Events(ctx context.Context, afterSeq uint64, limit int) ([]*domain.Event, error) {
	var events []*domain.Event
	err := s.view(func(txn *badger.Txn) error {
		var err error
		events, err = readEvents(txn, afterSeq, limit)
		return err
	})
	return events, err
}

func (s *LedgerStore) LastEventSeq(ctx context.Context) (uint64, error) {
	var seq uint64
	err := s.view(func(txn *badger.Txn) error {
		var err error
		seq, err = readLastEventSeq(txn)
		return err
	})
	return seq, err
}

// Close stops the garbage collector and closes the database. Close
// is idempotent.
func (s *LedgerStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.stopGC)

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// bdTx adapts a badger read-write transaction to storage.Tx. Badger
// consults the transaction's pending writes on reads and iterators,
// which gives read-your-writes for free.
type bdTx struct {
	txn *badger.Txn
}

var _ storage.Tx = (*bdTx)(nil)

func (t *bdTx) TokenCount(ctx context.Context) (uint32, error) {
	return readTokenCount(t.txn)
}

func (t *bdTx) Token(ctx context.Context, id domain.TokenID) (*domain.TokenInfo, error) {
	return readToken(t.txn, id)
}

func (t *bdTx) TokenOwner(ctx context.Context, id domain.TokenID) (domain.AccountID, error) {
	return readTokenOwner(t.txn, id)
}

func (t *bdTx) Balance(ctx context.Context, id domain.TokenID, account domain.AccountID) (domain.Amount, error) {
	return readBalance(t.txn, id, account)
}

func (t *bdTx) Supply(ctx context.Context, id domain.TokenID) (domain.Amount, error) {
	return readSupply(t.txn, id)
}

func (t *bdTx) Paused(ctx context.Context, id domain.TokenID) (bool, error) {
	return readPaused(t.txn, id)
}

func (t *bdTx) Allowance(ctx context.Context, id domain.TokenID, owner, spender domain.AccountID) (domain.Amount, error) {
	return readAllowance(t.txn, id, owner, spender)
}

func (t *bdTx) Tokens(ctx context.Context) ([]*domain.TokenInfo, error) {
	return readTokens(t.txn)
}

func (t *bdTx) Balances(ctx context.Context, id domain.TokenID) ([]domain.BalanceEntry, error) {
	return readBalances(t.txn, id)
}

func (t *bdTx) SetTokenCount(ctx context.Context, count uint32) error {
	v := make([]byte, 4)
	binary.BigEndian.PutUint32(v, count)
	if err := t.txn.Set(keyTokenCount, v); err != nil {
		return fmt.Errorf("set token count: %w", err)
	}
	return nil
}

func (t *bdTx) PutToken(ctx context.Context, info *domain.TokenInfo) error {
	v, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode token %d: %w", info.ID, err)
	}
	if err := t.txn.Set(idKey(tagToken, info.ID), v); err != nil {
		return fmt.Errorf("put token %d: %w", info.ID, err)
	}
	return nil
}

func (t *bdTx) SetTokenOwner(ctx context.Context, id domain.TokenID, owner domain.AccountID) error {
	if err := t.txn.Set(idKey(tagOwner, id), []byte(owner)); err != nil {
		return fmt.Errorf("set token owner: %w", err)
	}
	return nil
}

func (t *bdTx) SetBalance(ctx context.Context, id domain.TokenID, account domain.AccountID, amount domain.Amount) error {
	key := balanceKey(id, account)
	if amount == 0 {
		if err := t.txn.Delete(key); err != nil {
			return fmt.Errorf("delete balance: %w", err)
		}
		return nil
	}
	if err := t.txn.Set(key, amountValue(amount)); err != nil {
		return fmt.Errorf("set balance: %w", err)
	}
	return nil
}

func (t *bdTx) SetSupply(ctx context.Context, id domain.TokenID, amount domain.Amount) error {
	if err := t.txn.Set(idKey(tagSupply, id), amountValue(amount)); err != nil {
		return fmt.Errorf("set supply: %w", err)
	}
	return nil
}

func (t *bdTx) SetPaused(ctx context.Context, id domain.TokenID, paused bool) error {
	v := []byte{0x00}
	if paused {
		v[0] = 0x01
	}
	if err := t.txn.Set(idKey(tagPaused, id), v); err != nil {
		return fmt.Errorf("set paused: %w", err)
	}
	return nil
}

func (t *bdTx) AppendEvent(ctx context.Context, ev *domain.Event) error {
	last, err := readLastEventSeq(t.txn)
	if err != nil {
		return err
	}
	seq := last + 1

	ev.Seq = seq
	v, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := t.txn.Set(eventKey(seq), v); err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	sv := make([]byte, 8)
	binary.BigEndian.PutUint64(sv, seq)
	if err := t.txn.Set(keyEventSeq, sv); err != nil {
		return fmt.Errorf("advance event seq: %w", err)
	}
	return nil
}

// badgerLogger forwards badger's warnings and errors to the store's
// logger and drops the chatty info and debug levels.
type badgerLogger struct {
	logger *log.Logger
}

var _ badger.Logger = badgerLogger{}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Printf("[badgerstore] "+format, args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Printf("[badgerstore] "+format, args...)
}

func (l badgerLogger) Infof(string, ...interface{})  {}
func (l badgerLogger) Debugf(string, ...interface{}) {}
