package badgerstore

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	badger "github.com/dgraph-io/badger/v3"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage"
)

// Key space. One tag byte, then big-endian fixed-width components, so
// badger's lexical iteration order matches numeric order.
const (
	tagTokenCount byte = 0x01
	tagToken      byte = 0x02
	tagOwner      byte = 0x03
	tagBalance    byte = 0x04
	tagSupply     byte = 0x05
	tagPaused     byte = 0x06
	tagEvent      byte = 0x07
	tagEventSeq   byte = 0x08
	tagAllowance  byte = 0x09
)

var (
	keyTokenCount = []byte{tagTokenCount}
	keyEventSeq   = []byte{tagEventSeq}
)

func idKey(tag byte, id domain.TokenID) []byte {
	k := make([]byte, 5)
	k[0] = tag
	binary.BigEndian.PutUint32(k[1:], uint32(id))
	return k
}

func balanceKey(id domain.TokenID, account domain.AccountID) []byte {
	k := make([]byte, 0, 5+len(account))
	k = append(k, idKey(tagBalance, id)...)
	k = append(k, account...)
	return k
}

// allowanceKey joins owner and spender with a zero byte. Account IDs
// are base58 text, which never contains 0x00.
func allowanceKey(id domain.TokenID, owner, spender domain.AccountID) []byte {
	k := make([]byte, 0, 6+len(owner)+len(spender))
	k = append(k, idKey(tagAllowance, id)...)
	k = append(k, owner...)
	k = append(k, 0x00)
	k = append(k, spender...)
	return k
}

func eventKey(seq uint64) []byte {
	k := make([]byte, 9)
	k[0] = tagEvent
	binary.BigEndian.PutUint64(k[1:], seq)
	return k
}

func amountValue(a domain.Amount) []byte {
	v := make([]byte, 8)
	binary.BigEndian.PutUint64(v, uint64(a))
	return v
}

func parseAmountValue(v []byte) (domain.Amount, error) {
	if len(v) != 8 {
		return 0, fmt.Errorf("amount value has %d bytes, want 8", len(v))
	}
	return domain.Amount(binary.BigEndian.Uint64(v)), nil
}

// getValue copies the value stored under key. Absent keys surface as
// badger.ErrKeyNotFound for the caller to map to a zero value.
func getValue(txn *badger.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func readTokenCount(txn *badger.Txn) (uint32, error) {
	v, err := getValue(txn, keyTokenCount)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read token count: %w", err)
	}
	if len(v) != 4 {
		return 0, fmt.Errorf("token count value has %d bytes, want 4", len(v))
	}
	return binary.BigEndian.Uint32(v), nil
}

func readToken(txn *badger.Txn, id domain.TokenID) (*domain.TokenInfo, error) {
	v, err := getValue(txn, idKey(tagToken, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read token %d: %w", id, err)
	}
	var info domain.TokenInfo
	if err := json.Unmarshal(v, &info); err != nil {
		return nil, fmt.Errorf("decode token %d: %w", id, err)
	}
	return &info, nil
}

func readTokenOwner(txn *badger.Txn, id domain.TokenID) (domain.AccountID, error) {
	v, err := getValue(txn, idKey(tagOwner, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.ZeroAccount, nil
	}
	if err != nil {
		return domain.ZeroAccount, fmt.Errorf("read token owner: %w", err)
	}
	return domain.AccountID(v), nil
}

func readBalance(txn *badger.Txn, id domain.TokenID, account domain.AccountID) (domain.Amount, error) {
	v, err := getValue(txn, balanceKey(id, account))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return parseAmountValue(v)
}

func readSupply(txn *badger.Txn, id domain.TokenID) (domain.Amount, error) {
	v, err := getValue(txn, idKey(tagSupply, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read supply: %w", err)
	}
	return parseAmountValue(v)
}

func readPaused(txn *badger.Txn, id domain.TokenID) (bool, error) {
	v, err := getValue(txn, idKey(tagPaused, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read paused: %w", err)
	}
	return len(v) == 1 && v[0] == 0x01, nil
}

func readAllowance(txn *badger.Txn, id domain.TokenID, owner, spender domain.AccountID) (domain.Amount, error) {
	v, err := getValue(txn, allowanceKey(id, owner, spender))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read allowance: %w", err)
	}
	return parseAmountValue(v)
}

func readTokens(txn *badger.Txn) ([]*domain.TokenInfo, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte{tagToken}
	it := txn.NewIterator(opts)
	defer it.Close()

	var infos []*domain.TokenInfo
	for it.Rewind(); it.Valid(); it.Next() {
		v, err := it.Item().ValueCopy(nil)
		if err != nil {
			return nil, fmt.Errorf("read token: %w", err)
		}
		var info domain.TokenInfo
		if err := json.Unmarshal(v, &info); err != nil {
			return nil, fmt.Errorf("decode token: %w", err)
		}
		infos = append(infos, &info)
	}
	return infos, nil
}

func readBalances(txn *badger.Txn, id domain.TokenID) ([]domain.BalanceEntry, error) {
	prefix := idKey(tagBalance, id)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	var entries []domain.BalanceEntry
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		account := domain.AccountID(item.Key()[len(prefix):])
		v, err := item.ValueCopy(nil)
		if err != nil {
			return nil, fmt.Errorf("read balance of %s: %w", account, err)
		}
		amount, err := parseAmountValue(v)
		if err != nil {
			return nil, err
		}
		entries = append(entries, domain.BalanceEntry{Account: account, Amount: amount})
	}
	return entries, nil
}

func readEvents(txn *badger.Txn, afterSeq uint64, limit int) ([]*domain.Event, error) {
	if afterSeq == math.MaxUint64 {
		return nil, nil
	}
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte{tagEvent}
	it := txn.NewIterator(opts)
	defer it.Close()

	var events []*domain.Event
	for it.Seek(eventKey(afterSeq + 1)); it.Valid(); it.Next() {
		if limit > 0 && len(events) == limit {
			break
		}
		v, err := it.Item().ValueCopy(nil)
		if err != nil {
			return nil, fmt.Errorf("read event: %w", err)
		}
		var ev domain.Event
		if err := json.Unmarshal(v, &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, &ev)
	}
	return events, nil
}

func readLastEventSeq(txn *badger.Txn) (uint64, error) {
	v, err := getValue(txn, keyEventSeq)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read event seq: %w", err)
	}
	if len(v) != 8 {
		return 0, fmt.Errorf("event seq value has %d bytes, want 8", len(v))
	}
	return binary.BigEndian.Uint64(v), nil
}
