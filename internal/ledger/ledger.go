package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/offerhub/offerhub-backend/internal/platform/logger"
	"github.com/offerhub/offerhub-backend/internal/repos"
	"github.com/offerhub/offerhub-backend/internal/types"
)

// InsufficientFundsError is returned when an operation would push a balance
// bucket below zero. The balance row is left untouched.
type InsufficientFundsError struct {
	UserID    uuid.UUID
	Currency  string
	Bucket    string
	Requested string
	Available string
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: user %s %s bucket %s has %s, requested %s",
		e.UserID, e.Currency, e.Bucket, e.Available, e.Requested)
}

// Ledger is the only writer of balance rows. Every operation validates the
// amount, then runs a locked read-modify-write in one transaction, so no
// partial mutation is ever observable.
type Ledger interface {
	Credit(ctx context.Context, userID uuid.UUID, currency, amount, reference string) (*types.BalanceSnapshot, error)
	Debit(ctx context.Context, userID uuid.UUID, currency, amount, reference string) (*types.BalanceSnapshot, error)
	Reserve(ctx context.Context, userID uuid.UUID, currency, amount, reference string) (*types.BalanceSnapshot, error)
	Release(ctx context.Context, userID uuid.UUID, currency, amount, reference string) (*types.BalanceSnapshot, error)
	CancelReservation(ctx context.Context, userID uuid.UUID, currency, amount, reference string) (*types.BalanceSnapshot, error)
	DeductReserved(ctx context.Context, userID uuid.UUID, currency, amount, reference string) (*types.BalanceSnapshot, error)
	Snapshot(ctx context.Context, userID uuid.UUID, currency string) (*types.BalanceSnapshot, error)
}

type ledger struct {
	db       *gorm.DB
	log      *logger.Logger
	balances repos.BalanceRepo
}

func New(db *gorm.DB, baseLog *logger.Logger, balances repos.BalanceRepo) Ledger {
	return &ledger{db: db, log: baseLog.With("service", "BalanceLedger"), balances: balances}
}

func (l *ledger) Credit(ctx context.Context, userID uuid.UUID, currency, amount, reference string) (*types.BalanceSnapshot, error) {
	return l.mutate(ctx, userID, currency, amount, reference, "credit", func(bal *types.Balance, amt decimal.Decimal) error {
		bal.Available = bal.Available.Add(amt)
		return nil
	})
}

func (l *ledger) Debit(ctx context.Context, userID uuid.UUID, currency, amount, reference string) (*types.BalanceSnapshot, error) {
	return l.mutate(ctx, userID, currency, amount, reference, "debit", func(bal *types.Balance, amt decimal.Decimal) error {
		if bal.Available.LessThan(amt) {
			return l.insufficient(userID, currency, "available", amt, bal.Available)
		}
		bal.Available = bal.Available.Sub(amt)
		return nil
	})
}

func (l *ledger) Reserve(ctx context.Context, userID uuid.UUID, currency, amount, reference string) (*types.BalanceSnapshot, error) {
	return l.mutate(ctx, userID, currency, amount, reference, "reserve", func(bal *types.Balance, amt decimal.Decimal) error {
		if bal.Available.LessThan(amt) {
			return l.insufficient(userID, currency, "available", amt, bal.Available)
		}
		bal.Available = bal.Available.Sub(amt)
		bal.Reserved = bal.Reserved.Add(amt)
		return nil
	})
}

func (l *ledger) Release(ctx context.Context, userID uuid.UUID, currency, amount, reference string) (*types.BalanceSnapshot, error) {
	return l.mutate(ctx, userID, currency, amount, reference, "release", l.reservedToAvailable(userID, currency))
}

func (l *ledger) CancelReservation(ctx context.Context, userID uuid.UUID, currency, amount, reference string) (*types.BalanceSnapshot, error) {
	return l.mutate(ctx, userID, currency, amount, reference, "cancel_reservation", l.reservedToAvailable(userID, currency))
}

func (l *ledger) DeductReserved(ctx context.Context, userID uuid.UUID, currency, amount, reference string) (*types.BalanceSnapshot, error) {
	return l.mutate(ctx, userID, currency, amount, reference, "deduct_reserved", func(bal *types.Balance, amt decimal.Decimal) error {
		if bal.Reserved.LessThan(amt) {
			return l.insufficient(userID, currency, "reserved", amt, bal.Reserved)
		}
		bal.Reserved = bal.Reserved.Sub(amt)
		return nil
	})
}

func (l *ledger) Snapshot(ctx context.Context, userID uuid.UUID, currency string) (*types.BalanceSnapshot, error) {
	bal, err := l.balances.Get(ctx, nil, userID, currency)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		zero := types.Balance{UserID: userID, Currency: currency}
		return zero.Snapshot(), nil
	}
	if err != nil {
		return nil, err
	}
	return bal.Snapshot(), nil
}

func (l *ledger) reservedToAvailable(userID uuid.UUID, currency string) func(*types.Balance, decimal.Decimal) error {
	return func(bal *types.Balance, amt decimal.Decimal) error {
		if bal.Reserved.LessThan(amt) {
			return l.insufficient(userID, currency, "reserved", amt, bal.Reserved)
		}
		bal.Reserved = bal.Reserved.Sub(amt)
		bal.Available = bal.Available.Add(amt)
		return nil
	}
}

func (l *ledger) insufficient(userID uuid.UUID, currency, bucket string, requested, available decimal.Decimal) error {
	return &InsufficientFundsError{
		UserID:    userID,
		Currency:  currency,
		Bucket:    bucket,
		Requested: requested.StringFixed(2),
		Available: available.StringFixed(2),
	}
}

func (l *ledger) mutate(ctx context.Context, userID uuid.UUID, currency, amount, reference, op string, apply func(*types.Balance, decimal.Decimal) error) (*types.BalanceSnapshot, error) {
	amt, err := parseAmount(amount)
	if err != nil {
		return nil, err
	}
	if userID == uuid.Nil {
		return nil, &ValidationError{Field: "user_id", Value: userID.String(), Reason: "required"}
	}
	if currency == "" {
		return nil, &ValidationError{Field: "currency", Value: currency, Reason: "required"}
	}

	var snap *types.BalanceSnapshot
	run := func() error {
		return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			bal, err := l.balances.GetForUpdate(ctx, tx, userID, currency)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				bal = &types.Balance{
					UserID:    userID,
					Currency:  currency,
					Available: decimal.Zero,
					Reserved:  decimal.Zero,
				}
				if err := l.balances.Create(ctx, tx, bal); err != nil {
					return err
				}
			} else if err != nil {
				return err
			}
			if err := apply(bal, amt); err != nil {
				return err
			}
			if err := l.balances.Save(ctx, tx, bal); err != nil {
				return err
			}
			snap = bal.Snapshot()
			return nil
		})
	}

	err = run()
	// Two concurrent first-touches of the same balance race on the unique
	// (user, currency) index; the loser retries against the committed row.
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		err = run()
	}
	if err != nil {
		return nil, err
	}
	l.log.Debug("balance mutated",
		"op", op, "user_id", userID, "currency", currency, "amount", amount, "reference", reference)
	return snap, nil
}
