package clickhouse

import (
	"context"
	"fmt"
	"log"
	"time"

	"token-ledger/internal/domain"
	"token-ledger/internal/observability"
	"token-ledger/internal/storage"
)

const (
	defaultSinkInterval  = 2 * time.Second
	defaultSinkBatchSize = 500
)

// SinkOptions configures an EventSink.
type SinkOptions struct {
	// Interval is how often the journal is polled for new events.
	Interval time.Duration

	// BatchSize caps how many events one insert carries.
	BatchSize int

	// Logger defaults to log.Default().
	Logger *log.Logger
}

// EventSink follows the ledger's event journal and copies it into
// ClickHouse in batches. It reads the journal rather than the live
// feed because the feed drops events under backpressure; the journal
// is the complete record, and the cursor makes catch-up automatic
// after downtime.
type EventSink struct {
	conn   *Conn
	store  storage.LedgerStore
	logger *log.Logger

	interval  time.Duration
	batchSize int
}

// NewEventSink creates a sink reading from store and writing to conn.
func NewEventSink(conn *Conn, store storage.LedgerStore, opts SinkOptions) *EventSink {
	if opts.Interval <= 0 {
		opts.Interval = defaultSinkInterval
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultSinkBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &EventSink{
		conn:      conn,
		store:     store,
		logger:    opts.Logger,
		interval:  opts.Interval,
		batchSize: opts.BatchSize,
	}
}

// Run polls the journal until ctx is cancelled. The cursor resumes
// from the highest sequence already present in ClickHouse, so
// restarts re-insert at most one batch; the ReplacingMergeTree keyed
// by seq absorbs those duplicates.
func (s *EventSink) Run(ctx context.Context) error {
	cursor, err := s.lastSunkSeq(ctx)
	if err != nil {
		return fmt.Errorf("resume sink cursor: %w", err)
	}
	s.logger.Printf("[sink] following journal from seq=%d", cursor)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Printf("[sink] stopped at seq=%d", cursor)
			return nil
		case <-ticker.C:
		}

		next, err := s.drain(ctx, cursor)
		if err != nil {
			// Keep the cursor; the next tick retries the same batch.
			s.logger.Printf("[sink] flush failed at seq=%d: %v", cursor, err)
			continue
		}
		cursor = next
	}
}

// drain copies journal entries after cursor until it catches up and
// returns the new cursor.
func (s *EventSink) drain(ctx context.Context, cursor uint64) (uint64, error) {
	for {
		events, err := s.store.Events(ctx, cursor, s.batchSize)
		if err != nil {
			return cursor, fmt.Errorf("read journal: %w", err)
		}
		if len(events) == 0 {
			return cursor, nil
		}

		if err := s.insert(ctx, events); err != nil {
			observability.RecordSinkFlush(0, err)
			return cursor, err
		}
		observability.RecordSinkFlush(len(events), nil)

		cursor = events[len(events)-1].Seq
		if len(events) < s.batchSize {
			return cursor, nil
		}
	}
}

func (s *EventSink) insert(ctx context.Context, events []*domain.Event) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO events (
			seq, kind, token_id, from_account, to_account, amount, paused, block_time
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, ev := range events {
		var paused uint8
		if ev.Paused {
			paused = 1
		}
		err = batch.Append(
			ev.Seq, string(ev.Kind), uint32(ev.Token),
			string(ev.From), string(ev.To), uint64(ev.Amount),
			paused, time.UnixMilli(ev.BlockTime).UTC(),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// lastSunkSeq returns the highest sequence number already inserted,
// 0 for an empty table.
func (s *EventSink) lastSunkSeq(ctx context.Context) (uint64, error) {
	var seq uint64
	if err := s.conn.QueryRow(ctx, `SELECT max(seq) FROM events`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("query max seq: %w", err)
	}
	return seq, nil
}
