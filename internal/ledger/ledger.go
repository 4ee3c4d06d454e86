// Package ledger implements the multi-asset token ledger state
// machine: class creation, transfers, owner-gated supply changes and
// the paused flag. Every mutation runs as one atomic store update
// that journals exactly one event; subscribers see the event only
// after the update commits.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"token-ledger/internal/domain"
	"token-ledger/internal/events"
	"token-ledger/internal/observability"
	"token-ledger/internal/storage"
)

// Ledger is the operation facade over one ledger store.
type Ledger struct {
	store  storage.LedgerStore
	clock  BlockClock
	bus    *events.Bus
	logger *log.Logger
}

// Options for creating a Ledger.
type Options struct {
	// Store is required.
	Store storage.LedgerStore

	// Clock defaults to WallClock.
	Clock BlockClock

	// Bus receives committed events. Nil disables the live feed; the
	// journal is still written.
	Bus *events.Bus

	// Logger defaults to log.Default().
	Logger *log.Logger
}

// New creates a Ledger.
func New(opts Options) (*Ledger, error) {
	if opts.Store == nil {
		return nil, errors.New("ledger: store is required")
	}
	if opts.Clock == nil {
		opts.Clock = WallClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Ledger{
		store:  opts.Store,
		clock:  opts.Clock,
		bus:    opts.Bus,
		logger: opts.Logger,
	}, nil
}

// Create registers a new token class. The id is the current token
// count; the count advances by one. The owner argument becomes the
// authoritative owner while the full initial supply is credited to
// the caller, so owner and initial holder can differ.
func (l *Ledger) Create(ctx context.Context, caller, owner domain.AccountID, name, symbol string, initialSupply domain.Amount) (domain.TokenID, error) {
	start := time.Now()
	now, err := l.clock.BlockTime(ctx)
	if err != nil {
		return 0, fmt.Errorf("create: block time: %w", err)
	}

	var id domain.TokenID
	var ev domain.Event
	err = l.store.Update(ctx, storage.RegistryScope(), func(tx storage.Tx) error {
		count, err := tx.TokenCount(ctx)
		if err != nil {
			return err
		}
		if count == math.MaxUint32 {
			return ErrArithmeticOverflow
		}
		id = domain.TokenID(count)

		if err := tx.SetTokenCount(ctx, count+1); err != nil {
			return err
		}
		if err := tx.PutToken(ctx, &domain.TokenInfo{
			ID:      id,
			Name:    name,
			Symbol:  symbol,
			Owner:   owner,
			Created: now,
		}); err != nil {
			return err
		}
		if err := tx.SetTokenOwner(ctx, id, owner); err != nil {
			return err
		}
		if err := tx.SetBalance(ctx, id, caller, initialSupply); err != nil {
			return err
		}
		if err := tx.SetSupply(ctx, id, initialSupply); err != nil {
			return err
		}

		ev = domain.Event{
			Kind:      domain.EventCreated,
			Token:     id,
			To:        caller,
			Amount:    initialSupply,
			BlockTime: now,
		}
		return tx.AppendEvent(ctx, &ev)
	})
	l.record(domain.OpCreate, start, err)
	if err != nil {
		return 0, err
	}

	observability.RecordTokenCreated(uint32(id) + 1)
	l.logger.Printf("[ledger] created token id=%d symbol=%q owner=%s supply=%s",
		id, symbol, owner, initialSupply)
	l.publish(ev)
	return id, nil
}

// Transfer moves value from the caller to another account. A
// self-transfer is checked and journaled but leaves balances alone.
func (l *Ledger) Transfer(ctx context.Context, caller domain.AccountID, token domain.TokenID, to domain.AccountID, value domain.Amount) error {
	start := time.Now()
	err := l.mutate(ctx, domain.OpTransfer, token, func(tx storage.Tx, now int64) (domain.Event, error) {
		if err := l.move(ctx, tx, token, caller, to, value); err != nil {
			return domain.Event{}, err
		}
		return domain.Event{
			Kind:      domain.EventTransfer,
			Token:     token,
			From:      caller,
			To:        to,
			Amount:    value,
			BlockTime: now,
		}, nil
	})
	l.record(domain.OpTransfer, start, err)
	return err
}

// TransferFrom moves value out of an arbitrary account into the
// caller's. The allowance registry is not consulted: the legacy
// surface this ledger preserves never enforced approvals, and
// callers are already authenticated by the transport.
func (l *Ledger) TransferFrom(ctx context.Context, caller domain.AccountID, token domain.TokenID, from domain.AccountID, value domain.Amount) error {
	start := time.Now()
	err := l.mutate(ctx, domain.OpTransferFrom, token, func(tx storage.Tx, now int64) (domain.Event, error) {
		if err := l.move(ctx, tx, token, from, caller, value); err != nil {
			return domain.Event{}, err
		}
		return domain.Event{
			Kind:      domain.EventTransferFrom,
			Token:     token,
			From:      from,
			To:        caller,
			Amount:    value,
			BlockTime: now,
		}, nil
	})
	l.record(domain.OpTransferFrom, start, err)
	return err
}

// Mint grows the token's supply, crediting the owner. Owner-gated.
func (l *Ledger) Mint(ctx context.Context, caller domain.AccountID, token domain.TokenID, value domain.Amount) error {
	start := time.Now()
	err := l.mutate(ctx, domain.OpMint, token, func(tx storage.Tx, now int64) (domain.Event, error) {
		owner, err := l.requireOwner(ctx, tx, token, caller)
		if err != nil {
			return domain.Event{}, err
		}

		balance, err := tx.Balance(ctx, token, owner)
		if err != nil {
			return domain.Event{}, err
		}
		newBalance, ok := balance.Add(value)
		if !ok {
			return domain.Event{}, ErrArithmeticOverflow
		}
		supply, err := tx.Supply(ctx, token)
		if err != nil {
			return domain.Event{}, err
		}
		newSupply, ok := supply.Add(value)
		if !ok {
			return domain.Event{}, ErrArithmeticOverflow
		}

		if err := tx.SetBalance(ctx, token, owner, newBalance); err != nil {
			return domain.Event{}, err
		}
		if err := tx.SetSupply(ctx, token, newSupply); err != nil {
			return domain.Event{}, err
		}
		return domain.Event{
			Kind:      domain.EventMint,
			Token:     token,
			To:        owner,
			Amount:    value,
			BlockTime: now,
		}, nil
	})
	l.record(domain.OpMint, start, err)
	return err
}

// Burn shrinks the token's supply, debiting the owner. Owner-gated;
// fails if the owner's balance or the supply cannot cover value.
func (l *Ledger) Burn(ctx context.Context, caller domain.AccountID, token domain.TokenID, value domain.Amount) error {
	start := time.Now()
	err := l.mutate(ctx, domain.OpBurn, token, func(tx storage.Tx, now int64) (domain.Event, error) {
		owner, err := l.requireOwner(ctx, tx, token, caller)
		if err != nil {
			return domain.Event{}, err
		}

		balance, err := tx.Balance(ctx, token, owner)
		if err != nil {
			return domain.Event{}, err
		}
		newBalance, ok := balance.Sub(value)
		if !ok {
			return domain.Event{}, ErrInsufficientAmount
		}
		supply, err := tx.Supply(ctx, token)
		if err != nil {
			return domain.Event{}, err
		}
		newSupply, ok := supply.Sub(value)
		if !ok {
			return domain.Event{}, ErrInsufficientAmount
		}

		if err := tx.SetBalance(ctx, token, owner, newBalance); err != nil {
			return domain.Event{}, err
		}
		if err := tx.SetSupply(ctx, token, newSupply); err != nil {
			return domain.Event{}, err
		}
		return domain.Event{
			Kind:      domain.EventBurn,
			Token:     token,
			From:      owner,
			Amount:    value,
			BlockTime: now,
		}, nil
	})
	l.record(domain.OpBurn, start, err)
	return err
}

// SetPaused records the requested paused status. Owner-gated. The
// flag is observable state only; no operation refuses to run on a
// paused token. Setting the current status again still journals an
// event.
func (l *Ledger) SetPaused(ctx context.Context, caller domain.AccountID, token domain.TokenID, status bool) error {
	start := time.Now()
	err := l.mutate(ctx, domain.OpSetPaused, token, func(tx storage.Tx, now int64) (domain.Event, error) {
		if _, err := l.requireOwner(ctx, tx, token, caller); err != nil {
			return domain.Event{}, err
		}
		if err := tx.SetPaused(ctx, token, status); err != nil {
			return domain.Event{}, err
		}
		return domain.Event{
			Kind:      domain.EventPausedOperation,
			Token:     token,
			Paused:    status,
			BlockTime: now,
		}, nil
	})
	l.record(domain.OpSetPaused, start, err)
	return err
}

// Apply dispatches an operation envelope to the matching method. The
// returned id is meaningful only for OpCreate.
func (l *Ledger) Apply(ctx context.Context, op domain.Operation) (domain.TokenID, error) {
	if err := op.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	switch op.Kind {
	case domain.OpCreate:
		return l.Create(ctx, op.Caller, op.Owner, op.Name, op.Symbol, op.Value)
	case domain.OpTransfer:
		return 0, l.Transfer(ctx, op.Caller, op.Token, op.To, op.Value)
	case domain.OpTransferFrom:
		return 0, l.TransferFrom(ctx, op.Caller, op.Token, op.From, op.Value)
	case domain.OpMint:
		return 0, l.Mint(ctx, op.Caller, op.Token, op.Value)
	case domain.OpBurn:
		return 0, l.Burn(ctx, op.Caller, op.Token, op.Value)
	case domain.OpSetPaused:
		return 0, l.SetPaused(ctx, op.Caller, op.Token, op.Paused)
	default:
		return 0, fmt.Errorf("%w: unknown operation kind %q", storage.ErrInvalidInput, op.Kind)
	}
}

// mutate wraps the shared shape of token-scoped operations: one clock
// read, one atomic update journaling the event fn returns, and
// publication after commit.
func (l *Ledger) mutate(ctx context.Context, kind domain.OpKind, token domain.TokenID, fn func(tx storage.Tx, now int64) (domain.Event, error)) error {
	now, err := l.clock.BlockTime(ctx)
	if err != nil {
		return fmt.Errorf("%s: block time: %w", kind, err)
	}

	var ev domain.Event
	err = l.store.Update(ctx, storage.TokenScope(token), func(tx storage.Tx) error {
		var err error
		ev, err = fn(tx, now)
		if err != nil {
			return err
		}
		return tx.AppendEvent(ctx, &ev)
	})
	if err != nil {
		return err
	}

	l.publish(ev)
	return nil
}

// move debits from and credits to inside tx. When the two accounts
// coincide the sufficiency check still applies but balances stay
// untouched, so value is neither lost nor conjured.
func (l *Ledger) move(ctx context.Context, tx storage.Tx, token domain.TokenID, from, to domain.AccountID, value domain.Amount) error {
	fromBalance, err := tx.Balance(ctx, token, from)
	if err != nil {
		return err
	}
	newFrom, ok := fromBalance.Sub(value)
	if !ok {
		return ErrInsufficientAmount
	}
	if from == to {
		return nil
	}

	toBalance, err := tx.Balance(ctx, token, to)
	if err != nil {
		return err
	}
	newTo, ok := toBalance.Add(value)
	if !ok {
		return ErrArithmeticOverflow
	}

	if err := tx.SetBalance(ctx, token, from, newFrom); err != nil {
		return err
	}
	return tx.SetBalance(ctx, token, to, newTo)
}

// requireOwner returns the token's owner if caller is it. Unknown
// tokens have the zero owner, which no authenticated caller matches.
func (l *Ledger) requireOwner(ctx context.Context, tx storage.Tx, token domain.TokenID, caller domain.AccountID) (domain.AccountID, error) {
	owner, err := tx.TokenOwner(ctx, token)
	if err != nil {
		return domain.ZeroAccount, err
	}
	if owner.IsZero() || owner != caller {
		return domain.ZeroAccount, ErrNotTokenOwner
	}
	return owner, nil
}

func (l *Ledger) publish(ev domain.Event) {
	observability.RecordEventJournaled(ev.Seq)
	if l.bus != nil {
		l.bus.Publish(ev)
	}
}

func (l *Ledger) record(kind domain.OpKind, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	} else {
		observability.DefaultMetrics.LastSuccessfulOperation.Set(float64(time.Now().Unix()))
	}
	observability.RecordOperation(string(kind), status, time.Since(start).Seconds())
}

// Token retrieves a token descriptor. Returns storage.ErrNotFound for
// ids never created.
func (l *Ledger) Token(ctx context.Context, id domain.TokenID) (*domain.TokenInfo, error) {
	return l.store.Token(ctx, id)
}

// OwnerOf returns the authoritative owner, ZeroAccount for unknown
// tokens.
func (l *Ledger) OwnerOf(ctx context.Context, id domain.TokenID) (domain.AccountID, error) {
	return l.store.TokenOwner(ctx, id)
}

// BalanceOf returns an account's balance, 0 if absent.
func (l *Ledger) BalanceOf(ctx context.Context, id domain.TokenID, account domain.AccountID) (domain.Amount, error) {
	return l.store.Balance(ctx, id, account)
}

// SupplyOf returns a token's total supply, 0 if absent.
func (l *Ledger) SupplyOf(ctx context.Context, id domain.TokenID) (domain.Amount, error) {
	return l.store.Supply(ctx, id)
}

// IsPaused returns a token's paused flag, false if absent.
func (l *Ledger) IsPaused(ctx context.Context, id domain.TokenID) (bool, error) {
	return l.store.Paused(ctx, id)
}

// AllowanceOf returns the approved budget for (owner, spender) on a
// token. Always 0 until the approval surface gains a write path.
func (l *Ledger) AllowanceOf(ctx context.Context, id domain.TokenID, owner, spender domain.AccountID) (domain.Amount, error) {
	return l.store.Allowance(ctx, id, owner, spender)
}

// TokenCount returns the number of tokens ever created.
func (l *Ledger) TokenCount(ctx context.Context) (uint32, error) {
	return l.store.TokenCount(ctx)
}

// Tokens lists all token descriptors, ordered by id.
func (l *Ledger) Tokens(ctx context.Context) ([]*domain.TokenInfo, error) {
	return l.store.Tokens(ctx)
}

// Balances lists a token's non-zero balances, ordered by account.
func (l *Ledger) Balances(ctx context.Context, id domain.TokenID) ([]domain.BalanceEntry, error) {
	return l.store.Balances(ctx, id)
}

// Events pages the journal: events with Seq > afterSeq, ascending.
func (l *Ledger) Events(ctx context.Context, afterSeq uint64, limit int) ([]*domain.Event, error) {
	return l.store.Events(ctx, afterSeq, limit)
}

// LastEventSeq returns the highest journaled sequence number.
func (l *Ledger) LastEventSeq(ctx context.Context) (uint64, error) {
	return l.store.LastEventSeq(ctx)
}
