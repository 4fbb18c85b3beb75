package ledger_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kaizen-app/kaizen/internal/app/ledger"
	"github.com/kaizen-app/kaizen/internal/domain"
	"github.com/kaizen-app/kaizen/internal/infra/sqlite"
)

func newFixture(t *testing.T) (*ledger.Service, *sqlite.Store, *domain.User) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	u := &domain.User{
		ID:        uuid.NewString(),
		Email:     uuid.NewString() + "@example.com",
		Name:      "Ledger User",
		Balance:   decimal.Zero,
		WeekStart: domain.WeekStartSunday,
		CreatedAt: time.Now(),
	}
	if err := store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser() error: %v", err)
	}
	return ledger.New(store), store, u
}

// checkInvariant asserts balance == Σ transaction.amount — the property
// every ledger operation must restore before returning.
func checkInvariant(t *testing.T, store *sqlite.Store, userID string) {
	t.Helper()
	ctx := context.Background()
	u, err := store.UserByID(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	sum, err := store.SumTransactions(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	if !u.Balance.Equal(sum) {
		t.Fatalf("invariant broken: balance %s != transaction sum %s", u.Balance, sum)
	}
}

func TestManualCredit(t *testing.T) {
	svc, store, u := newFixture(t)
	ctx := context.Background()

	tx, err := svc.ManualCredit(ctx, u.ID, decimal.NewFromInt(60), "Allowance", "")
	if err != nil {
		t.Fatalf("ManualCredit() error: %v", err)
	}
	if tx.Type != domain.TxManualCredit || !tx.Amount.Equal(decimal.NewFromInt(60)) {
		t.Errorf("tx = %+v, want MANUAL_CREDIT of 60", tx)
	}
	checkInvariant(t, store, u.ID)
}

func TestManualCredit_Validation(t *testing.T) {
	svc, _, u := newFixture(t)
	ctx := context.Background()

	if _, err := svc.ManualCredit(ctx, u.ID, decimal.NewFromInt(-5), "x", ""); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("negative credit: err = %v, want ErrValidation", err)
	}
	if _, err := svc.ManualCredit(ctx, u.ID, decimal.NewFromInt(5), "", ""); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("missing title: err = %v, want ErrValidation", err)
	}
}

func TestDebitGuard(t *testing.T) {
	svc, store, u := newFixture(t)
	ctx := context.Background()

	if _, err := svc.ManualCredit(ctx, u.ID, decimal.NewFromInt(60), "Seed", ""); err != nil {
		t.Fatal(err)
	}

	_, err := svc.ManualDebit(ctx, u.ID, decimal.NewFromInt(1000), "Too much", "")
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Errorf("debit: err = %v, want ErrInsufficientBalance", err)
	}
	if _, err := svc.Cashout(ctx, u.ID, decimal.NewFromInt(1000)); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Errorf("cashout: err = %v, want ErrInsufficientBalance", err)
	}

	got, _ := store.UserByID(ctx, u.ID)
	if want := decimal.NewFromInt(60); !got.Balance.Equal(want) {
		t.Errorf("balance after rejected debits = %s, want %s", got.Balance, want)
	}
	checkInvariant(t, store, u.ID)
}

func TestDebitAndCashout_StoreNegativeAmounts(t *testing.T) {
	svc, store, u := newFixture(t)
	ctx := context.Background()

	svc.ManualCredit(ctx, u.ID, decimal.NewFromInt(100), "Seed", "")

	debit, err := svc.ManualDebit(ctx, u.ID, decimal.NewFromInt(30), "Spent", "")
	if err != nil {
		t.Fatalf("ManualDebit() error: %v", err)
	}
	if !debit.Amount.Equal(decimal.NewFromInt(-30)) {
		t.Errorf("debit amount = %s, want -30", debit.Amount)
	}

	cashout, err := svc.Cashout(ctx, u.ID, decimal.NewFromInt(25))
	if err != nil {
		t.Fatalf("Cashout() error: %v", err)
	}
	if !cashout.Amount.Equal(decimal.NewFromInt(-25)) || cashout.Type != domain.TxCashout {
		t.Errorf("cashout = %+v, want CASHOUT of -25", cashout)
	}

	got, _ := store.UserByID(ctx, u.ID)
	if want := decimal.NewFromInt(45); !got.Balance.Equal(want) {
		t.Errorf("balance = %s, want %s", got.Balance, want)
	}
	checkInvariant(t, store, u.ID)
}

func TestGrantReward_Idempotent(t *testing.T) {
	svc, store, u := newFixture(t)
	ctx := context.Background()

	amount := decimal.NewFromInt(5)
	var granted int
	for i := 0; i < 3; i++ {
		_, err := svc.GrantReward(ctx, u.ID, "goal-1", "2024-03-09", amount, "Goal Met", "")
		switch {
		case err == nil:
			granted++
		case errors.Is(err, domain.ErrAlreadyGranted):
		default:
			t.Fatalf("GrantReward() error: %v", err)
		}
	}
	if granted != 1 {
		t.Errorf("granted %d times, want exactly 1", granted)
	}

	txs, _ := store.TransactionsByUser(ctx, u.ID)
	if len(txs) != 1 {
		t.Errorf("len(transactions) = %d, want 1", len(txs))
	}
	got, _ := store.UserByID(ctx, u.ID)
	if !got.Balance.Equal(amount) {
		t.Errorf("balance = %s, want %s", got.Balance, amount)
	}
	checkInvariant(t, store, u.ID)
}

func TestGrantReward_ConcurrentCallersPayOnce(t *testing.T) {
	svc, store, u := newFixture(t)
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.GrantReward(ctx, u.ID, "goal-1", "WEEK-2024-03-10", decimal.NewFromInt(10), "Goal Met", "")
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
		} else if !errors.Is(err, domain.ErrAlreadyGranted) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("%d callers succeeded, want exactly 1", ok)
	}
	got, _ := store.UserByID(ctx, u.ID)
	if want := decimal.NewFromInt(10); !got.Balance.Equal(want) {
		t.Errorf("balance = %s, want %s", got.Balance, want)
	}
	checkInvariant(t, store, u.ID)
}

func TestEditTransaction_AdjustsBalanceByDelta(t *testing.T) {
	svc, store, u := newFixture(t)
	ctx := context.Background()

	tx, err := svc.GrantReward(ctx, u.ID, "goal-1", "2024-03-09", decimal.NewFromInt(5), "Goal Met", "")
	if err != nil {
		t.Fatal(err)
	}

	eight := decimal.NewFromInt(8)
	edited, err := svc.EditTransaction(ctx, u.ID, tx.ID, ledger.TransactionPatch{Amount: &eight})
	if err != nil {
		t.Fatalf("EditTransaction() error: %v", err)
	}
	if !edited.Amount.Equal(eight) {
		t.Errorf("amount = %s, want 8", edited.Amount)
	}

	got, _ := store.UserByID(ctx, u.ID)
	if !got.Balance.Equal(eight) {
		t.Errorf("balance = %s, want 8 (increased by exactly 3)", got.Balance)
	}
	checkInvariant(t, store, u.ID)
}

func TestEditTransaction_ClampsSignToPolarity(t *testing.T) {
	svc, store, u := newFixture(t)
	ctx := context.Background()

	svc.ManualCredit(ctx, u.ID, decimal.NewFromInt(100), "Seed", "")
	debit, err := svc.ManualDebit(ctx, u.ID, decimal.NewFromInt(40), "Spent", "")
	if err != nil {
		t.Fatal(err)
	}

	// Sending +15 against a debit row must land as -15.
	fifteen := decimal.NewFromInt(15)
	edited, err := svc.EditTransaction(ctx, u.ID, debit.ID, ledger.TransactionPatch{Amount: &fifteen})
	if err != nil {
		t.Fatalf("EditTransaction() error: %v", err)
	}
	if !edited.Amount.Equal(decimal.NewFromInt(-15)) {
		t.Errorf("amount = %s, want -15 (clamped to debit polarity)", edited.Amount)
	}

	got, _ := store.UserByID(ctx, u.ID)
	if want := decimal.NewFromInt(85); !got.Balance.Equal(want) {
		t.Errorf("balance = %s, want %s", got.Balance, want)
	}
	checkInvariant(t, store, u.ID)
}

func TestEditTransaction_TitleNotesOnly(t *testing.T) {
	svc, store, u := newFixture(t)
	ctx := context.Background()

	tx, _ := svc.ManualCredit(ctx, u.ID, decimal.NewFromInt(20), "Old", "")
	title, notes := "New title", "some notes"
	edited, err := svc.EditTransaction(ctx, u.ID, tx.ID, ledger.TransactionPatch{Title: &title, Notes: &notes})
	if err != nil {
		t.Fatalf("EditTransaction() error: %v", err)
	}
	if edited.Title != title || edited.Notes != notes {
		t.Errorf("edited = %+v, want title/notes updated", edited)
	}
	got, _ := store.UserByID(ctx, u.ID)
	if want := decimal.NewFromInt(20); !got.Balance.Equal(want) {
		t.Errorf("balance moved on a metadata-only edit: %s", got.Balance)
	}
	checkInvariant(t, store, u.ID)
}

func TestEditTransaction_ForeignLooksMissing(t *testing.T) {
	svc, store, u := newFixture(t)
	ctx := context.Background()

	other := &domain.User{ID: uuid.NewString(), Email: "other@example.com", Name: "Other",
		Balance: decimal.Zero, WeekStart: domain.WeekStartSunday, CreatedAt: time.Now()}
	if err := store.CreateUser(ctx, other); err != nil {
		t.Fatal(err)
	}
	tx, _ := svc.ManualCredit(ctx, other.ID, decimal.NewFromInt(20), "Theirs", "")

	five := decimal.NewFromInt(5)
	if _, err := svc.EditTransaction(ctx, u.ID, tx.ID, ledger.TransactionPatch{Amount: &five}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("foreign edit: err = %v, want ErrNotFound", err)
	}
	if err := svc.DeleteTransaction(ctx, u.ID, tx.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("foreign delete: err = %v, want ErrNotFound", err)
	}
}

func TestDeleteTransaction_ReversesEffect(t *testing.T) {
	svc, store, u := newFixture(t)
	ctx := context.Background()

	svc.ManualCredit(ctx, u.ID, decimal.NewFromInt(100), "Seed", "")
	debit, err := svc.ManualDebit(ctx, u.ID, decimal.NewFromInt(40), "Spent", "")
	if err != nil {
		t.Fatal(err)
	}

	// Deleting the -40 row restores the balance by +40.
	if err := svc.DeleteTransaction(ctx, u.ID, debit.ID); err != nil {
		t.Fatalf("DeleteTransaction() error: %v", err)
	}
	got, _ := store.UserByID(ctx, u.ID)
	if want := decimal.NewFromInt(100); !got.Balance.Equal(want) {
		t.Errorf("balance = %s, want %s", got.Balance, want)
	}
	checkInvariant(t, store, u.ID)
}

func TestAudit_CleanLedger(t *testing.T) {
	svc, _, u := newFixture(t)
	ctx := context.Background()

	svc.ManualCredit(ctx, u.ID, decimal.NewFromInt(30), "Seed", "")
	svc.Cashout(ctx, u.ID, decimal.NewFromInt(10))

	drifts, err := svc.Audit(ctx)
	if err != nil {
		t.Fatalf("Audit() error: %v", err)
	}
	if len(drifts) != 0 {
		t.Errorf("drifts = %+v, want none", drifts)
	}
}

func TestAudit_DetectsDrift(t *testing.T) {
	svc, store, u := newFixture(t)
	ctx := context.Background()

	svc.ManualCredit(ctx, u.ID, decimal.NewFromInt(30), "Seed", "")
	// Corrupt the balance behind the ledger's back.
	if err := store.AddToBalance(ctx, u.ID, decimal.NewFromInt(7)); err != nil {
		t.Fatal(err)
	}

	drifts, err := svc.Audit(ctx)
	if err != nil {
		t.Fatalf("Audit() error: %v", err)
	}
	if len(drifts) != 1 || drifts[0].UserID != u.ID {
		t.Fatalf("drifts = %+v, want one for the corrupted user", drifts)
	}
	if !drifts[0].Balance.Equal(decimal.NewFromInt(37)) || !drifts[0].Sum.Equal(decimal.NewFromInt(30)) {
		t.Errorf("drift = %+v, want balance 37 vs sum 30", drifts[0])
	}
}
