package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"token-ledger/internal/domain"
	"token-ledger/internal/storage/memory"
)

func TestAnalyticsStore_VolumeByToken(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := memory.NewLedgerStore()
	defer store.Close()

	journalEvents(t, ctx, store,
		&domain.Event{Kind: domain.EventCreated, Token: 0, To: "alice", Amount: 1000, BlockTime: 1700000000000},
		&domain.Event{Kind: domain.EventTransfer, Token: 0, From: "alice", To: "bob", Amount: 100, BlockTime: 1700000001000},
		&domain.Event{Kind: domain.EventTransfer, Token: 0, From: "alice", To: "carol", Amount: 150, BlockTime: 1700000002000},
		&domain.Event{Kind: domain.EventCreated, Token: 1, To: "bob", Amount: 50, BlockTime: 1700000003000},
		&domain.Event{Kind: domain.EventMint, Token: 1, To: "bob", Amount: 25, BlockTime: 1700000004000},
	)

	sink := testSink(conn, store, 100)
	_, err := sink.drain(ctx, 0)
	require.NoError(t, err)

	analytics := NewAnalyticsStore(conn)

	rows, err := analytics.VolumeByToken(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	// Ordered by token then kind.
	assert.Equal(t, domain.TokenID(0), rows[0].Token)
	assert.Equal(t, domain.EventCreated, rows[0].Kind)
	assert.Equal(t, uint64(1), rows[0].Operations)
	assert.Equal(t, domain.Amount(1000), rows[0].Total)

	assert.Equal(t, domain.TokenID(0), rows[1].Token)
	assert.Equal(t, domain.EventTransfer, rows[1].Kind)
	assert.Equal(t, uint64(2), rows[1].Operations)
	assert.Equal(t, domain.Amount(250), rows[1].Total)

	assert.Equal(t, domain.TokenID(1), rows[2].Token)
	assert.Equal(t, domain.EventCreated, rows[2].Kind)

	assert.Equal(t, domain.TokenID(1), rows[3].Token)
	assert.Equal(t, domain.EventMint, rows[3].Kind)
	assert.Equal(t, domain.Amount(25), rows[3].Total)
}

func TestAnalyticsStore_TopRecipients(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := memory.NewLedgerStore()
	defer store.Close()

	journalEvents(t, ctx, store,
		&domain.Event{Kind: domain.EventTransfer, Token: 0, From: "alice", To: "bob", Amount: 10, BlockTime: 1700000000000},
		&domain.Event{Kind: domain.EventTransfer, Token: 0, From: "alice", To: "bob", Amount: 10, BlockTime: 1700000001000},
		&domain.Event{Kind: domain.EventTransferFrom, Token: 0, From: "bob", To: "carol", Amount: 5, BlockTime: 1700000002000},
		&domain.Event{Kind: domain.EventMint, Token: 0, To: "alice", Amount: 1, BlockTime: 1700000003000},
	)

	sink := testSink(conn, store, 100)
	_, err := sink.drain(ctx, 0)
	require.NoError(t, err)

	analytics := NewAnalyticsStore(conn)

	rows, err := analytics.TopRecipients(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2, "mint recipients do not count as transfer recipients")

	assert.Equal(t, domain.AccountID("bob"), rows[0].Account)
	assert.Equal(t, uint64(2), rows[0].Transfers)
	assert.Equal(t, domain.AccountID("carol"), rows[1].Account)
	assert.Equal(t, uint64(1), rows[1].Transfers)

	limited, err := analytics.TopRecipients(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, domain.AccountID("bob"), limited[0].Account)
}
