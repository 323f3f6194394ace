package repository

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"buildmart/internal/domain"
	"buildmart/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Wallet{},
		&models.WalletTransaction{},
		&models.Order{},
		&models.DeliveryPhase{},
		&models.Withdrawal{},
		&models.Notification{},
		&models.AuditLog{},
		&models.UserRestriction{},
		&models.SuspiciousActivity{},
	))
	return db
}

func seedWallet(t *testing.T, repo *WalletRepository, ownerID uint, balance int64) *models.Wallet {
	t.Helper()
	w, err := repo.GetOrCreate(ownerID)
	require.NoError(t, err)
	if balance > 0 {
		_, err = repo.Deposit(w.ID, balance, "seed", nil)
		require.NoError(t, err)
		w, err = repo.GetByID(w.ID)
		require.NoError(t, err)
	}
	return w
}

func TestWalletRepository_Deposit(t *testing.T) {
	repo := NewWalletRepository(newTestDB(t))
	w := seedWallet(t, repo, 1, 0)

	txn, err := repo.Deposit(w.ID, 500_000, "Top up", map[string]interface{}{"method": "bank"})
	require.NoError(t, err)
	assert.Equal(t, domain.TxnTypeDeposit, txn.Type)
	assert.Equal(t, domain.TxnStatusCompleted, txn.Status)
	assert.Equal(t, int64(500_000), txn.Amount)

	got, err := repo.GetByID(w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500_000), got.Balance)
	assert.Equal(t, int64(0), got.HoldBalance)
}

func TestWalletRepository_Deposit_InvalidAmount(t *testing.T) {
	repo := NewWalletRepository(newTestDB(t))
	w := seedWallet(t, repo, 1, 0)

	_, err := repo.Deposit(w.ID, 0, "zero", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = repo.Deposit(w.ID, -100, "negative", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestWalletRepository_Withdraw(t *testing.T) {
	repo := NewWalletRepository(newTestDB(t))
	w := seedWallet(t, repo, 1, 1_000_000)

	t.Run("debits balance and records pending transaction", func(t *testing.T) {
		txn, err := repo.Withdraw(w.ID, 300_000, "Withdrawal to VCB", nil)
		require.NoError(t, err)
		assert.Equal(t, int64(-300_000), txn.Amount)
		assert.Equal(t, domain.TxnStatusPending, txn.Status)

		got, err := repo.GetByID(w.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(700_000), got.Balance)
	})

	t.Run("rejects amount above balance without mutation", func(t *testing.T) {
		_, err := repo.Withdraw(w.ID, 5_000_000, "too much", nil)
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

		got, err := repo.GetByID(w.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(700_000), got.Balance)

		var count int64
		require.NoError(t, repo.db.Model(&models.WalletTransaction{}).
			Where("wallet_id = ? AND amount = ?", w.ID, int64(-5_000_000)).Count(&count).Error)
		assert.Equal(t, int64(0), count, "failed withdrawal must not write a ledger row")
	})

	t.Run("hold balance does not cover withdrawals", func(t *testing.T) {
		_, err := repo.EscrowHold(w.ID, 2_000_000, 42)
		require.NoError(t, err)

		_, err = repo.Withdraw(w.ID, 1_000_000, "hold is not withdrawable", nil)
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	})

	t.Run("missing wallet", func(t *testing.T) {
		_, err := repo.Withdraw(9999, 100, "ghost", nil)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}

func TestWalletRepository_EscrowLifecycle(t *testing.T) {
	repo := NewWalletRepository(newTestDB(t))
	w := seedWallet(t, repo, 7, 0)

	txn, err := repo.EscrowHold(w.ID, 4_000_000, 11)
	require.NoError(t, err)
	assert.Equal(t, domain.TxnTypeEscrowHold, txn.Type)

	got, err := repo.GetByID(w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.Balance)
	assert.Equal(t, int64(4_000_000), got.HoldBalance)

	rel, err := repo.ReleaseEscrow(w.ID, 4_000_000, 11)
	require.NoError(t, err)
	assert.Equal(t, domain.TxnTypeEscrowRelease, rel.Type)

	got, err = repo.GetByID(w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4_000_000), got.Balance)
	assert.Equal(t, int64(0), got.HoldBalance)
	assert.Equal(t, int64(4_000_000), got.TotalEarned)

	// Releasing more than held fails and leaves both buckets untouched.
	_, err = repo.ReleaseEscrow(w.ID, 1, 11)
	assert.ErrorIs(t, err, domain.ErrInsufficientHold)
	got, err = repo.GetByID(w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4_000_000), got.Balance)
	assert.Equal(t, int64(0), got.HoldBalance)
}

func TestWalletRepository_Reverse(t *testing.T) {
	t.Run("pending withdrawal re-credits balance", func(t *testing.T) {
		repo := NewWalletRepository(newTestDB(t))
		w := seedWallet(t, repo, 1, 1_000_000)
		txn, err := repo.Withdraw(w.ID, 400_000, "wd", nil)
		require.NoError(t, err)

		reversal, err := repo.Reverse(txn.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TxnTypeReversal, reversal.Type)
		assert.Equal(t, int64(400_000), reversal.Amount)
		assert.Equal(t, domain.TxnStatusReversed, reversal.Status)
		require.NotNil(t, reversal.ReversalOfID)
		assert.Equal(t, txn.ID, *reversal.ReversalOfID)

		orig, err := repo.GetTransaction(txn.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TxnStatusReversed, orig.Status)

		got, err := repo.GetByID(w.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1_000_000), got.Balance)
	})

	t.Run("completed transaction is not reversible", func(t *testing.T) {
		repo := NewWalletRepository(newTestDB(t))
		w := seedWallet(t, repo, 1, 0)
		txn, err := repo.Deposit(w.ID, 100_000, "dep", nil)
		require.NoError(t, err)

		_, err = repo.Reverse(txn.ID)
		assert.ErrorIs(t, err, domain.ErrNotReversible)
	})

	t.Run("double reverse fails", func(t *testing.T) {
		repo := NewWalletRepository(newTestDB(t))
		w := seedWallet(t, repo, 1, 1_000_000)
		txn, err := repo.Withdraw(w.ID, 100_000, "wd", nil)
		require.NoError(t, err)

		_, err = repo.Reverse(txn.ID)
		require.NoError(t, err)
		_, err = repo.Reverse(txn.ID)
		assert.ErrorIs(t, err, domain.ErrNotReversible)

		got, err := repo.GetByID(w.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1_000_000), got.Balance)
	})
}

func TestWalletRepository_SetTransactionStatus(t *testing.T) {
	repo := NewWalletRepository(newTestDB(t))
	w := seedWallet(t, repo, 1, 500_000)
	txn, err := repo.Withdraw(w.ID, 200_000, "wd", nil)
	require.NoError(t, err)

	require.NoError(t, repo.SetTransactionStatus(txn.ID, domain.TxnStatusPending, domain.TxnStatusCompleted))

	got, err := repo.GetTransaction(txn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TxnStatusCompleted, got.Status)

	// Guard: cannot move it again from PENDING.
	err = repo.SetTransactionStatus(txn.ID, domain.TxnStatusPending, domain.TxnStatusCompleted)
	assert.ErrorIs(t, err, domain.ErrNotReversible)
}

// TestWalletRepository_ReplayMatchesStoredBalances drives a wallet through a
// full mixed history and checks the transaction log projects exactly the
// stored balances, including after a reversal.
func TestWalletRepository_ReplayMatchesStoredBalances(t *testing.T) {
	repo := NewWalletRepository(newTestDB(t))
	w := seedWallet(t, repo, 3, 0)

	_, err := repo.Deposit(w.ID, 10_000_000, "dep", nil)
	require.NoError(t, err)
	_, err = repo.EscrowHold(w.ID, 6_000_000, 1)
	require.NoError(t, err)
	_, err = repo.ReleaseEscrow(w.ID, 2_500_000, 1)
	require.NoError(t, err)
	wd, err := repo.Withdraw(w.ID, 4_000_000, "wd", nil)
	require.NoError(t, err)
	wd2, err := repo.Withdraw(w.ID, 1_000_000, "wd2", nil)
	require.NoError(t, err)
	_, err = repo.Reverse(wd2.ID)
	require.NoError(t, err)
	require.NoError(t, repo.SetTransactionStatus(wd.ID, domain.TxnStatusPending, domain.TxnStatusCompleted))

	stored, err := repo.GetByID(w.ID)
	require.NoError(t, err)
	balance, hold, err := repo.ReplayBalances(w.ID)
	require.NoError(t, err)

	assert.Equal(t, stored.Balance, balance)
	assert.Equal(t, stored.HoldBalance, hold)
	assert.Equal(t, int64(8_500_000), balance)
	assert.Equal(t, int64(3_500_000), hold)
}

func TestWalletRepository_WithdrawalStats(t *testing.T) {
	repo := NewWalletRepository(newTestDB(t))
	w := seedWallet(t, repo, 5, 100_000_000)

	for i := 0; i < 3; i++ {
		_, err := repo.Withdraw(w.ID, 10_000_000, fmt.Sprintf("wd %d", i), nil)
		require.NoError(t, err)
	}

	count, total, err := repo.WithdrawalStats(5, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
	assert.Equal(t, int64(30_000_000), total)

	// Other owners do not leak in.
	count, total, err = repo.WithdrawalStats(6, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	assert.Equal(t, int64(0), total)
}

func TestWalletRepository_GetOrCreate(t *testing.T) {
	repo := NewWalletRepository(newTestDB(t))

	w1, err := repo.GetOrCreate(42)
	require.NoError(t, err)
	assert.Equal(t, int64(0), w1.Balance)
	assert.Equal(t, "VND", w1.Currency)

	w2, err := repo.GetOrCreate(42)
	require.NoError(t, err)
	assert.Equal(t, w1.ID, w2.ID)
}

// TestWalletRepository_ConcurrentWithdraw races two withdrawals that each
// individually fit the balance but cannot both succeed. Exactly one must
// win; the loser must leave no trace.
func TestWalletRepository_ConcurrentWithdraw(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", filepath.Join(t.TempDir(), "wallet.db"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Wallet{}, &models.WalletTransaction{}))

	repo := NewWalletRepository(db)
	w := seedWallet(t, repo, 1, 1_000_000)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.Withdraw(w.ID, 700_000, "race", nil)
		}(i)
	}
	wg.Wait()

	var succeeded, failed int
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			failed++
			assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, failed)

	got, err := repo.GetByID(w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(300_000), got.Balance)

	balance, hold, err := repo.ReplayBalances(w.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Balance, balance)
	assert.Equal(t, got.HoldBalance, hold)
}
