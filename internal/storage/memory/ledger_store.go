// Package memory provides a non-durable LedgerStore backed by maps.
// It is the reference implementation: tests for ledger semantics run
// against it, and replay uses it as scratch state.
package memory

import (
	"context"
	"sort"
	"sync"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
)

// balanceKey identifies one (token, account) balance cell.
type balanceKey struct {
	token   domain.TokenID
	account domain.AccountID
}

// LedgerStore is an in-memory implementation of storage.LedgerStore.
// A single mutex serializes all updates regardless of scope, which is
// strictly stronger than the per-scope serialization the contract
// requires.
type LedgerStore struct {
	mu     sync.RWMutex
	closed bool

	tokenCount uint32
	tokens     map[domain.TokenID]*domain.TokenInfo
	owners     map[domain.TokenID]domain.AccountID
	balances   map[balanceKey]domain.Amount
	supplies   map[domain.TokenID]domain.Amount
	paused     map[domain.TokenID]bool
	events     []*domain.Event // journal; Seq of events[i] is i+1
}

// NewLedgerStore creates an empty in-memory ledger store.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{
		tokens:   make(map[domain.TokenID]*domain.TokenInfo),
		owners:   make(map[domain.TokenID]domain.AccountID),
		balances: make(map[balanceKey]domain.Amount),
		supplies: make(map[domain.TokenID]domain.Amount),
		paused:   make(map[domain.TokenID]bool),
	}
}

// TokenCount returns the number of tokens ever created.
func (s *LedgerStore) TokenCount(_ context.Context) (uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, storage.ErrClosed
	}
	return s.tokenCount, nil
}

// Token retrieves a token descriptor. Returns ErrNotFound if absent.
func (s *LedgerStore) Token(_ context.Context, id domain.TokenID) (*domain.TokenInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrClosed
	}
	info, ok := s.tokens[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *info
	return &copy, nil
}

// TokenOwner returns the authoritative owner, ZeroAccount if absent.
func (s *LedgerStore) TokenOwner(_ context.Context, id domain.TokenID) (domain.AccountID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.ZeroAccount, storage.ErrClosed
	}
	return s.owners[id], nil
}

// Balance returns an account's balance, 0 if absent.
func (s *LedgerStore) Balance(_ context.Context, id domain.TokenID, account domain.AccountID) (domain.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, storage.ErrClosed
	}
	return s.balances[balanceKey{id, account}], nil
}

// Supply returns a token's total supply, 0 if absent.
func (s *LedgerStore) Supply(_ context.Context, id domain.TokenID) (domain.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, storage.ErrClosed
	}
	return s.supplies[id], nil
}

// Paused returns a token's paused flag, false if absent.
func (s *LedgerStore) Paused(_ context.Context, id domain.TokenID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, storage.ErrClosed
	}
	return s.paused[id], nil
}

// Allowance returns the approved budget for (owner, spender), 0 if
// absent. Nothing writes allowances, so this always reads 0.
func (s *LedgerStore) Allowance(_ context.Context, id domain.TokenID, owner, spender domain.AccountID) (domain.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, storage.ErrClosed
	}
	return 0, nil
}

// Tokens retrieves all token descriptors, ordered by ID ascending.
func (s *LedgerStore) Tokens(_ context.Context) ([]*domain.TokenInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrClosed
	}
	result := make([]*domain.TokenInfo, 0, len(s.tokens))
	for _, info := range s.tokens {
		copy := *info
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// Balances retrieves all non-zero balances of a token, ordered by
// account ascending.
func (s *LedgerStore) Balances(_ context.Context, id domain.TokenID) ([]domain.BalanceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrClosed
	}
	var result []domain.BalanceEntry
	for key, amount := range s.balances {
		if key.token == id && amount != 0 {
			result = append(result, domain.BalanceEntry{Account: key.account, Amount: amount})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Account < result[j].Account
	})
	return result, nil
}

// Events retrieves journaled events with Seq > afterSeq, ascending.
func (s *LedgerStore) Events(_ context.Context, afterSeq uint64, limit int) ([]*domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrClosed
	}
	if afterSeq >= uint64(len(s.events)) {
		return nil, nil
	}
	tail := s.events[afterSeq:]
	if limit > 0 && len(tail) > limit {
		tail = tail[:limit]
	}
	result := make([]*domain.Event, len(tail))
	for i, ev := range tail {
		copy := *ev
		result[i] = &copy
	}
	return result, nil
}

// LastEventSeq returns the highest assigned sequence number.
func (s *LedgerStore) LastEventSeq(_ context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, storage.ErrClosed
	}
	return uint64(len(s.events)), nil
}

// Update runs fn against a staging shard and merges the staged writes
// into the committed maps only if fn succeeds.
func (s *LedgerStore) Update(ctx context.Context, _ storage.Scope, fn func(tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}

	shard := newTxShard(s)
	if err := fn(shard); err != nil {
		return err
	}
	shard.commit()
	return nil
}

// Close marks the store closed. Subsequent calls fail with ErrClosed.
func (s *LedgerStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ storage.LedgerStore = (*LedgerStore)(nil)
