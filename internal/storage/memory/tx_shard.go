package memory

import (
	"context"
	"sort"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
)

// txShard stages the writes of one Update on top of the committed
// state. Reads consult the staged layer first, so a transaction sees
// its own writes. The caller holds the store's write lock for the
// shard's whole lifetime.
type txShard struct {
	base *LedgerStore

	tokenCount *uint32
	tokens     map[domain.TokenID]*domain.TokenInfo
	owners     map[domain.TokenID]domain.AccountID
	balances   map[balanceKey]domain.Amount
	supplies   map[domain.TokenID]domain.Amount
	paused     map[domain.TokenID]bool
	events     []*domain.Event
}

func newTxShard(base *LedgerStore) *txShard {
	return &txShard{
		base:     base,
		tokens:   make(map[domain.TokenID]*domain.TokenInfo),
		owners:   make(map[domain.TokenID]domain.AccountID),
		balances: make(map[balanceKey]domain.Amount),
		supplies: make(map[domain.TokenID]domain.Amount),
		paused:   make(map[domain.TokenID]bool),
	}
}

// commit merges staged writes into the committed maps. Zero balances
// are removed so absent and zero stay indistinguishable.
func (t *txShard) commit() {
	if t.tokenCount != nil {
		t.base.tokenCount = *t.tokenCount
	}
	for id, info := range t.tokens {
		t.base.tokens[id] = info
	}
	for id, owner := range t.owners {
		t.base.owners[id] = owner
	}
	for key, amount := range t.balances {
		if amount == 0 {
			delete(t.base.balances, key)
		} else {
			t.base.balances[key] = amount
		}
	}
	for id, amount := range t.supplies {
		t.base.supplies[id] = amount
	}
	for id, flag := range t.paused {
		t.base.paused[id] = flag
	}
	t.base.events = append(t.base.events, t.events...)
}

func (t *txShard) TokenCount(_ context.Context) (uint32, error) {
	if t.tokenCount != nil {
		return *t.tokenCount, nil
	}
	return t.base.tokenCount, nil
}

func (t *txShard) Token(_ context.Context, id domain.TokenID) (*domain.TokenInfo, error) {
	info, ok := t.tokens[id]
	if !ok {
		info, ok = t.base.tokens[id]
	}
	if !ok {
		return nil, storage.ErrNotFound
	}
	copy := *info
	return &copy, nil
}

func (t *txShard) TokenOwner(_ context.Context, id domain.TokenID) (domain.AccountID, error) {
	if owner, ok := t.owners[id]; ok {
		return owner, nil
	}
	return t.base.owners[id], nil
}

func (t *txShard) Balance(_ context.Context, id domain.TokenID, account domain.AccountID) (domain.Amount, error) {
	key := balanceKey{id, account}
	if amount, ok := t.balances[key]; ok {
		return amount, nil
	}
	return t.base.balances[key], nil
}

func (t *txShard) Supply(_ context.Context, id domain.TokenID) (domain.Amount, error) {
	if amount, ok := t.supplies[id]; ok {
		return amount, nil
	}
	return t.base.supplies[id], nil
}

func (t *txShard) Paused(_ context.Context, id domain.TokenID) (bool, error) {
	if flag, ok := t.paused[id]; ok {
		return flag, nil
	}
	return t.base.paused[id], nil
}

func (t *txShard) Allowance(_ context.Context, _ domain.TokenID, _, _ domain.AccountID) (domain.Amount, error) {
	return 0, nil
}

func (t *txShard) Tokens(_ context.Context) ([]*domain.TokenInfo, error) {
	merged := make(map[domain.TokenID]*domain.TokenInfo, len(t.base.tokens)+len(t.tokens))
	for id, info := range t.base.tokens {
		merged[id] = info
	}
	for id, info := range t.tokens {
		merged[id] = info
	}
	result := make([]*domain.TokenInfo, 0, len(merged))
	for _, info := range merged {
		copy := *info
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (t *txShard) Balances(_ context.Context, id domain.TokenID) ([]domain.BalanceEntry, error) {
	merged := make(map[domain.AccountID]domain.Amount)
	for key, amount := range t.base.balances {
		if key.token == id {
			merged[key.account] = amount
		}
	}
	for key, amount := range t.balances {
		if key.token == id {
			merged[key.account] = amount
		}
	}
	var result []domain.BalanceEntry
	for account, amount := range merged {
		if amount != 0 {
			result = append(result, domain.BalanceEntry{Account: account, Amount: amount})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Account < result[j].Account
	})
	return result, nil
}

func (t *txShard) SetTokenCount(_ context.Context, count uint32) error {
	t.tokenCount = &count
	return nil
}

func (t *txShard) PutToken(_ context.Context, info *domain.TokenInfo) error {
	if info == nil {
		return storage.ErrInvalidInput
	}
	copy := *info
	t.tokens[info.ID] = &copy
	return nil
}

func (t *txShard) SetTokenOwner(_ context.Context, id domain.TokenID, owner domain.AccountID) error {
	t.owners[id] = owner
	return nil
}

func (t *txShard) SetBalance(_ context.Context, id domain.TokenID, account domain.AccountID, amount domain.Amount) error {
	t.balances[balanceKey{id, account}] = amount
	return nil
}

func (t *txShard) SetSupply(_ context.Context, id domain.TokenID, amount domain.Amount) error {
	t.supplies[id] = amount
	return nil
}

func (t *txShard) SetPaused(_ context.Context, id domain.TokenID, paused bool) error {
	t.paused[id] = paused
	return nil
}

func (t *txShard) AppendEvent(_ context.Context, ev *domain.Event) error {
	if ev == nil {
		return storage.ErrInvalidInput
	}
	ev.Seq = uint64(len(t.base.events)+len(t.events)) + 1
	copy := *ev
	t.events = append(t.events, &copy)
	return nil
}

var _ storage.Tx = (*txShard)(nil)
