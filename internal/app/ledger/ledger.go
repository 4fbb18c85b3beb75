// Package ledger owns the one strict invariant in the system: a user's
// balance always equals the signed sum of their surviving transactions.
// Every balance write in the codebase goes through this service, and every
// operation pairs its balance write with its transaction write inside one
// atomic storage unit.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kaizen-app/kaizen/internal/domain"
	"github.com/kaizen-app/kaizen/internal/infra/observability"
)

// Service is the ledger. Balance-affecting operations on the same user are
// serialized by a per-user mutex; the duplicate-reward race is additionally
// closed by the storage layer's unique constraint, so even two processes
// sharing a database cannot double-pay a period.
type Service struct {
	store domain.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a ledger over the given store.
func New(store domain.Store) *Service {
	return &Service{store: store, locks: make(map[string]*sync.Mutex)}
}

func (s *Service) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// ─── Reward Path ────────────────────────────────────────────────────────────

// AlreadyGranted reports whether a REWARD transaction exists for the
// (user, goal, period) key.
func (s *Service) AlreadyGranted(ctx context.Context, userID, goalID, periodID string) (bool, error) {
	return s.store.RewardExists(ctx, userID, goalID, periodID)
}

// GrantReward credits amount to the user and records the REWARD row tagged
// with (goalID, periodID), as one atomic unit. If the period was already
// paid it returns domain.ErrAlreadyGranted and writes nothing — the unique
// constraint makes the check-then-act race harmless.
func (s *Service) GrantReward(ctx context.Context, userID, goalID, periodID string, amount decimal.Decimal, title, notes string) (*domain.Transaction, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	tx := &domain.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Type:      domain.TxReward,
		GoalID:    goalID,
		PeriodID:  periodID,
		Title:     title,
		Notes:     notes,
		CreatedAt: time.Now(),
	}

	err := s.store.Atomic(ctx, func(st domain.Store) error {
		if err := st.CreateTransaction(ctx, tx); err != nil {
			return err
		}
		return st.AddToBalance(ctx, userID, amount)
	})
	observability.ObserveLedgerOp("grant_reward", err)
	if err != nil {
		return nil, err
	}

	observability.RewardsGranted.Inc()
	observability.RewardAmountPaid.Add(amount.InexactFloat64())
	return tx, nil
}

// ─── Manual Operations ──────────────────────────────────────────────────────

// ManualCredit records a positive adjustment.
func (s *Service) ManualCredit(ctx context.Context, userID string, amount decimal.Decimal, title, notes string) (*domain.Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) || title == "" {
		return nil, fmt.Errorf("%w: credit needs a title and a positive amount", domain.ErrValidation)
	}
	return s.adjust(ctx, "manual_credit", userID, amount, domain.TxManualCredit, title, notes)
}

// ManualDebit records a negative adjustment. The caller passes the positive
// magnitude; the stored amount is negative. Rejected when the balance
// cannot cover it.
func (s *Service) ManualDebit(ctx context.Context, userID string, amount decimal.Decimal, title, notes string) (*domain.Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) || title == "" {
		return nil, fmt.Errorf("%w: debit needs a title and a positive amount", domain.ErrValidation)
	}
	return s.adjust(ctx, "manual_debit", userID, amount.Neg(), domain.TxManualDebit, title, notes)
}

// Cashout withdraws amount from the balance, guarded like a debit.
func (s *Service) Cashout(ctx context.Context, userID string, amount decimal.Decimal) (*domain.Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: cashout amount must be positive", domain.ErrValidation)
	}
	return s.adjust(ctx, "cashout", userID, amount.Neg(), domain.TxCashout, "Cashout", "User cashout")
}

// adjust applies a signed amount to the user's balance with the matching
// transaction row. Negative amounts are refused when they would take the
// balance below zero.
func (s *Service) adjust(ctx context.Context, op, userID string, amount decimal.Decimal, typ domain.TransactionType, title, notes string) (*domain.Transaction, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		observability.ObserveLedgerOp(op, err)
		return nil, err
	}
	if amount.IsNegative() && user.Balance.LessThan(amount.Abs()) {
		observability.ObserveLedgerOp(op, domain.ErrInsufficientBalance)
		return nil, domain.ErrInsufficientBalance
	}

	tx := &domain.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Amount:    amount,
		Type:      typ,
		Title:     title,
		Notes:     notes,
		CreatedAt: time.Now(),
	}

	err = s.store.Atomic(ctx, func(st domain.Store) error {
		if err := st.CreateTransaction(ctx, tx); err != nil {
			return err
		}
		return st.AddToBalance(ctx, userID, amount)
	})
	observability.ObserveLedgerOp(op, err)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// ─── Edits ──────────────────────────────────────────────────────────────────

// TransactionPatch carries the editable fields. Nil means "leave as is".
type TransactionPatch struct {
	Amount *decimal.Decimal
	Title  *string
	Notes  *string
}

// EditTransaction updates amount/title/notes on the caller's transaction.
// When the amount changes, the balance moves by exactly (new - old). The
// new amount's sign is clamped to the row's original polarity: a REWARD or
// MANUAL_CREDIT stays non-negative, a CASHOUT or MANUAL_DEBIT stays
// non-positive — an edit cannot flip a transaction's economic direction.
func (s *Service) EditTransaction(ctx context.Context, userID, id string, patch TransactionPatch) (*domain.Transaction, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.store.TransactionByID(ctx, id)
	if err != nil {
		observability.ObserveLedgerOp("edit", err)
		return nil, err
	}
	if tx.UserID != userID {
		observability.ObserveLedgerOp("edit", domain.ErrNotFound)
		return nil, domain.ErrNotFound
	}

	if patch.Title != nil {
		tx.Title = *patch.Title
	}
	if patch.Notes != nil {
		tx.Notes = *patch.Notes
	}

	delta := decimal.Zero
	if patch.Amount != nil {
		newAmount := *patch.Amount
		if tx.Type.Credits() {
			newAmount = newAmount.Abs()
		} else {
			newAmount = newAmount.Abs().Neg()
		}
		delta = newAmount.Sub(tx.Amount)
		tx.Amount = newAmount
	}

	err = s.store.Atomic(ctx, func(st domain.Store) error {
		if err := st.UpdateTransaction(ctx, tx); err != nil {
			return err
		}
		if delta.IsZero() {
			return nil
		}
		return st.AddToBalance(ctx, userID, delta)
	})
	observability.ObserveLedgerOp("edit", err)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// DeleteTransaction removes the caller's transaction and fully reverses its
// balance effect.
func (s *Service) DeleteTransaction(ctx context.Context, userID, id string) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.store.TransactionByID(ctx, id)
	if err != nil {
		observability.ObserveLedgerOp("delete", err)
		return err
	}
	if tx.UserID != userID {
		observability.ObserveLedgerOp("delete", domain.ErrNotFound)
		return domain.ErrNotFound
	}

	err = s.store.Atomic(ctx, func(st domain.Store) error {
		if err := st.DeleteTransaction(ctx, id); err != nil {
			return err
		}
		return st.AddToBalance(ctx, userID, tx.Amount.Neg())
	})
	observability.ObserveLedgerOp("delete", err)
	return err
}

// History returns the user's transactions, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]domain.Transaction, error) {
	return s.store.TransactionsByUser(ctx, userID)
}

// ─── Audit ──────────────────────────────────────────────────────────────────

// Drift is one user's deviation from the balance invariant.
type Drift struct {
	UserID  string
	Balance decimal.Decimal
	Sum     decimal.Decimal
}

// Audit sweeps every user and reports those whose stored balance differs
// from the sum of their transactions. A healthy ledger returns an empty
// slice; any drift means something wrote balance outside this service.
func (s *Service) Audit(ctx context.Context) ([]Drift, error) {
	ids, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return nil, err
	}

	var drifts []Drift
	for _, id := range ids {
		user, err := s.store.UserByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("audit user %s: %w", id, err)
		}
		sum, err := s.store.SumTransactions(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("audit user %s: %w", id, err)
		}
		if !user.Balance.Equal(sum) {
			drifts = append(drifts, Drift{UserID: id, Balance: user.Balance, Sum: sum})
		}
	}

	observability.AuditRuns.Inc()
	observability.AuditDriftUsers.Set(float64(len(drifts)))
	return drifts, nil
}
