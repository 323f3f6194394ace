package service

import (
	"errors"
	"testing"

	"buildmart/internal/domain"
	"buildmart/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type withdrawalFixture struct {
	svc          *WithdrawalService
	wallets      *repository.WalletRepository
	withdrawals  *repository.WithdrawalRepository
	restrictions *fakeRestrictions
	anomaly      *fakeAnomaly
	audit        *fakeAudit
	notify       *fakeNotifier
	db           *gorm.DB
}

func newWithdrawalFixture(t *testing.T) *withdrawalFixture {
	t.Helper()
	db := newTestDB(t)
	f := &withdrawalFixture{
		db:           db,
		wallets:      repository.NewWalletRepository(db),
		withdrawals:  repository.NewWithdrawalRepository(db),
		restrictions: &fakeRestrictions{},
		anomaly:      &fakeAnomaly{},
		audit:        &fakeAudit{},
		notify:       &fakeNotifier{},
	}
	f.svc = NewWithdrawalService(db, f.wallets, f.withdrawals, f.restrictions, f.anomaly, f.audit, f.notify, testLogger())
	return f
}

func (f *withdrawalFixture) fund(t *testing.T, userID uint, amount int64) {
	t.Helper()
	w, err := f.wallets.GetOrCreate(userID)
	require.NoError(t, err)
	_, err = f.wallets.Deposit(w.ID, amount, "seed", nil)
	require.NoError(t, err)
}

var testBank = BankDetails{BankName: "Vietcombank", AccountNumber: "0071000123456", AccountHolder: "Tran Thi B"}

func TestWithdrawalService_RequestWithdrawal(t *testing.T) {
	f := newWithdrawalFixture(t)
	f.fund(t, 1, 10_000_000)

	txn, w, err := f.svc.RequestWithdrawal(1, 4_000_000, testBank, "")
	require.NoError(t, err)
	assert.Equal(t, domain.TxnStatusPending, txn.Status)
	assert.Equal(t, int64(-4_000_000), txn.Amount)
	assert.Equal(t, domain.WithdrawalStatusPending, w.Status)
	assert.Equal(t, txn.ID, w.TransactionID)
	assert.False(t, w.Flagged)

	wallet, err := f.wallets.GetByOwnerID(1)
	require.NoError(t, err)
	assert.Equal(t, int64(6_000_000), wallet.Balance)

	assert.True(t, f.audit.has("WALLET_WITHDRAWAL"))
	assert.True(t, f.notify.has("WITHDRAWAL_PENDING"))
}

func TestWithdrawalService_Restricted(t *testing.T) {
	f := newWithdrawalFixture(t)
	f.fund(t, 1, 10_000_000)
	f.restrictions.blocked = true
	f.restrictions.rtype = domain.RestrictionWalletHold
	f.restrictions.reason = "pending fraud review"

	_, _, err := f.svc.RequestWithdrawal(1, 1_000_000, testBank, "")
	var restricted *domain.RestrictedError
	require.ErrorAs(t, err, &restricted)
	assert.Equal(t, domain.RestrictionWalletHold, restricted.Type)

	// Blocked attempt is audited and leaves the wallet untouched.
	assert.True(t, f.audit.has("WALLET_WITHDRAWAL_BLOCKED"))
	wallet, err := f.wallets.GetByOwnerID(1)
	require.NoError(t, err)
	assert.Equal(t, int64(10_000_000), wallet.Balance)
	assert.Equal(t, 0, f.anomaly.calls, "anomaly check must not run for blocked users")
}

func TestWithdrawalService_InsufficientBalance(t *testing.T) {
	f := newWithdrawalFixture(t)
	f.fund(t, 1, 1_000_000)

	_, _, err := f.svc.RequestWithdrawal(1, 2_000_000, testBank, "")
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	_, _, err = f.svc.RequestWithdrawal(1, 0, testBank, "")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestWithdrawalService_FlaggedRidesAlong(t *testing.T) {
	f := newWithdrawalFixture(t)
	f.fund(t, 1, 10_000_000)
	f.anomaly.flagged = true

	txn, w, err := f.svc.RequestWithdrawal(1, 1_000_000, testBank, "")
	require.NoError(t, err, "a flagged verdict must not block the withdrawal")
	assert.True(t, w.Flagged)
	assert.Equal(t, domain.TxnStatusPending, txn.Status)
}

func TestWithdrawalService_AnomalyErrorIsAdvisory(t *testing.T) {
	f := newWithdrawalFixture(t)
	f.fund(t, 1, 10_000_000)
	f.anomaly.err = errors.New("detector down")

	_, w, err := f.svc.RequestWithdrawal(1, 1_000_000, testBank, "")
	require.NoError(t, err)
	assert.False(t, w.Flagged)
}

func TestWithdrawalService_IdempotencyKey(t *testing.T) {
	f := newWithdrawalFixture(t)
	f.fund(t, 1, 10_000_000)

	txn1, w1, err := f.svc.RequestWithdrawal(1, 3_000_000, testBank, "retry-key-1")
	require.NoError(t, err)

	txn2, w2, err := f.svc.RequestWithdrawal(1, 3_000_000, testBank, "retry-key-1")
	require.NoError(t, err)
	assert.Equal(t, txn1.ID, txn2.ID)
	assert.Equal(t, w1.ID, w2.ID)

	// Only one debit happened.
	wallet, err := f.wallets.GetByOwnerID(1)
	require.NoError(t, err)
	assert.Equal(t, int64(7_000_000), wallet.Balance)
}

func TestWithdrawalService_Complete(t *testing.T) {
	f := newWithdrawalFixture(t)
	f.fund(t, 1, 10_000_000)
	txn, w, err := f.svc.RequestWithdrawal(1, 4_000_000, testBank, "")
	require.NoError(t, err)

	done, err := f.svc.Complete(w.ID, 99)
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusCompleted, done.Status)
	assert.NotNil(t, done.CompletedAt)

	got, err := f.wallets.GetTransaction(txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxnStatusCompleted, got.Status)

	// Settled withdrawals cannot be settled again.
	_, err = f.svc.Complete(w.ID, 99)
	assert.ErrorIs(t, err, domain.ErrNotReversible)
	assert.True(t, f.notify.has("WITHDRAWAL_COMPLETED"))
}

func TestWithdrawalService_Fail(t *testing.T) {
	f := newWithdrawalFixture(t)
	f.fund(t, 1, 10_000_000)
	txn, w, err := f.svc.RequestWithdrawal(1, 4_000_000, testBank, "")
	require.NoError(t, err)

	failed, err := f.svc.Fail(w.ID, 99, "account number rejected by bank")
	require.NoError(t, err)
	assert.Equal(t, domain.WithdrawalStatusFailed, failed.Status)
	assert.Equal(t, "account number rejected by bank", failed.FailReason)

	// The debit is reversed; money returns to the balance.
	wallet, err := f.wallets.GetByOwnerID(1)
	require.NoError(t, err)
	assert.Equal(t, int64(10_000_000), wallet.Balance)

	got, err := f.wallets.GetTransaction(txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxnStatusReversed, got.Status)

	// And the log still replays consistently.
	balance, hold, err := f.wallets.ReplayBalances(wallet.ID)
	require.NoError(t, err)
	assert.Equal(t, wallet.Balance, balance)
	assert.Equal(t, wallet.HoldBalance, hold)

	_, err = f.svc.Fail(w.ID, 99, "again")
	assert.ErrorIs(t, err, domain.ErrNotReversible)
	assert.True(t, f.notify.has("WITHDRAWAL_FAILED"))
}
