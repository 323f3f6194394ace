package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"buildmart/internal/domain"
	"buildmart/internal/models"

	"gorm.io/gorm"
)

// WalletRepository is the ledger. Every mutating operation runs as a single
// database transaction covering both the wallet row and its transaction-log
// entry, so the two are never observable independently. Balance checks use
// guarded UPDATEs (compare-and-swap on the balance columns) instead of
// SELECT FOR UPDATE, which keeps concurrent operations on the same wallet
// serialized at the row while operations on different wallets never block
// each other.
type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// WithTx returns a repository bound to an existing transaction, so callers
// can compose ledger operations with their own row updates atomically.
func (r *WalletRepository) WithTx(tx *gorm.DB) *WalletRepository {
	return &WalletRepository{db: tx}
}

func (r *WalletRepository) GetByID(id uint) (*models.Wallet, error) {
	var w models.Wallet
	if err := r.db.First(&w, id).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *WalletRepository) GetByOwnerID(ownerID uint) (*models.Wallet, error) {
	var w models.Wallet
	if err := r.db.Where("owner_id = ?", ownerID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// GetOrCreate lazily creates a wallet on the owner's first financial event.
func (r *WalletRepository) GetOrCreate(ownerID uint) (*models.Wallet, error) {
	w, err := r.GetByOwnerID(ownerID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	w = &models.Wallet{OwnerID: ownerID, Currency: "VND"}
	if err := r.db.Create(w).Error; err != nil {
		// Lost a create race; the existing row wins.
		if existing, gerr := r.GetByOwnerID(ownerID); gerr == nil {
			return existing, nil
		}
		return nil, err
	}
	return w, nil
}

// Deposit credits the withdrawable balance. Completed immediately.
func (r *WalletRepository) Deposit(walletID uint, amount int64, description string, metadata map[string]interface{}) (*models.WalletTransaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	txn := &models.WalletTransaction{
		WalletID:    walletID,
		Amount:      amount,
		Type:        domain.TxnTypeDeposit,
		Status:      domain.TxnStatusCompleted,
		Description: description,
		Metadata:    marshalMetadata(metadata),
	}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Wallet{}).Where("id = ?", walletID).
			Update("balance", gorm.Expr("balance + ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Create(txn).Error
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// EscrowHold credits the hold balance with funds received from the payer's
// off-ledger payment. It does not touch the withdrawable balance: escrowed
// money only becomes withdrawable through ReleaseEscrow.
func (r *WalletRepository) EscrowHold(walletID uint, amount int64, phaseID uint) (*models.WalletTransaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	txn := &models.WalletTransaction{
		WalletID:    walletID,
		Amount:      amount,
		Type:        domain.TxnTypeEscrowHold,
		Status:      domain.TxnStatusCompleted,
		Description: fmt.Sprintf("Escrow hold for delivery phase #%d", phaseID),
		Metadata:    marshalMetadata(map[string]interface{}{"phase_id": phaseID}),
	}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Wallet{}).Where("id = ?", walletID).
			Update("hold_balance", gorm.Expr("hold_balance + ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Create(txn).Error
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// ReleaseEscrow moves amount from the hold balance to the withdrawable
// balance in one statement and bumps the lifetime earnings counter.
func (r *WalletRepository) ReleaseEscrow(walletID uint, amount int64, phaseID uint) (*models.WalletTransaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	txn := &models.WalletTransaction{
		WalletID:    walletID,
		Amount:      amount,
		Type:        domain.TxnTypeEscrowRelease,
		Status:      domain.TxnStatusCompleted,
		Description: fmt.Sprintf("Escrow release for delivery phase #%d", phaseID),
		Metadata:    marshalMetadata(map[string]interface{}{"phase_id": phaseID}),
	}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Wallet{}).
			Where("id = ? AND hold_balance >= ?", walletID, amount).
			Updates(map[string]interface{}{
				"hold_balance": gorm.Expr("hold_balance - ?", amount),
				"balance":      gorm.Expr("balance + ?", amount),
				"total_earned": gorm.Expr("total_earned + ?", amount),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return r.classifyShortfall(tx, walletID, domain.ErrInsufficientHold)
		}
		return tx.Create(txn).Error
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// Withdraw debits the withdrawable balance and records a PENDING transaction
// awaiting manual bank execution. Settlement flips the status to COMPLETED,
// or the transaction is reversed if the transfer fails.
func (r *WalletRepository) Withdraw(walletID uint, amount int64, description string, metadata map[string]interface{}) (*models.WalletTransaction, error) {
	if amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	txn := &models.WalletTransaction{
		WalletID:    walletID,
		Amount:      -amount,
		Type:        domain.TxnTypeWithdrawal,
		Status:      domain.TxnStatusPending,
		Description: description,
		Metadata:    marshalMetadata(metadata),
	}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Wallet{}).
			Where("id = ? AND balance >= ?", walletID, amount).
			Update("balance", gorm.Expr("balance - ?", amount))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return r.classifyShortfall(tx, walletID, domain.ErrInsufficientBalance)
		}
		return tx.Create(txn).Error
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// Reverse undoes a PENDING transaction: the original mutation is flipped and
// both the original and the reversal entry are marked REVERSED. Completed,
// failed or already-reversed transactions cannot be reversed.
func (r *WalletRepository) Reverse(transactionID uint) (*models.WalletTransaction, error) {
	var reversal *models.WalletTransaction
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var orig models.WalletTransaction
		if err := tx.First(&orig, transactionID).Error; err != nil {
			return err
		}
		if orig.Status != domain.TxnStatusPending {
			return domain.ErrNotReversible
		}

		switch orig.Type {
		case domain.TxnTypeWithdrawal, domain.TxnTypeDeposit:
			// balance -= orig.Amount; for a withdrawal the amount is
			// negative, so this re-credits the balance.
			res := tx.Model(&models.Wallet{}).
				Where("id = ? AND balance >= ?", orig.WalletID, orig.Amount).
				Update("balance", gorm.Expr("balance - ?", orig.Amount))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return r.classifyShortfall(tx, orig.WalletID, domain.ErrInsufficientBalance)
			}
		case domain.TxnTypeEscrowHold:
			res := tx.Model(&models.Wallet{}).
				Where("id = ? AND hold_balance >= ?", orig.WalletID, orig.Amount).
				Update("hold_balance", gorm.Expr("hold_balance - ?", orig.Amount))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return r.classifyShortfall(tx, orig.WalletID, domain.ErrInsufficientHold)
			}
		default:
			return domain.ErrNotReversible
		}

		// Guard on status so a concurrent reversal loses cleanly.
		res := tx.Model(&models.WalletTransaction{}).
			Where("id = ? AND status = ?", orig.ID, domain.TxnStatusPending).
			Update("status", domain.TxnStatusReversed)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotReversible
		}

		reversal = &models.WalletTransaction{
			WalletID:     orig.WalletID,
			Amount:       -orig.Amount,
			Type:         domain.TxnTypeReversal,
			Status:       domain.TxnStatusReversed,
			Description:  fmt.Sprintf("Reversal of transaction #%d", orig.ID),
			Metadata:     marshalMetadata(map[string]interface{}{"original_type": orig.Type}),
			ReversalOfID: &orig.ID,
		}
		return tx.Create(reversal).Error
	})
	if err != nil {
		return nil, err
	}
	return reversal, nil
}

// SetTransactionStatus moves a transaction's status forward with a guard on
// the expected current status.
func (r *WalletRepository) SetTransactionStatus(transactionID uint, from, to string) error {
	res := r.db.Model(&models.WalletTransaction{}).
		Where("id = ? AND status = ?", transactionID, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotReversible
	}
	return nil
}

func (r *WalletRepository) GetTransaction(id uint) (*models.WalletTransaction, error) {
	var t models.WalletTransaction
	if err := r.db.First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *WalletRepository) ListTransactions(walletID uint, limit, offset int) ([]models.WalletTransaction, error) {
	var list []models.WalletTransaction
	err := r.db.Where("wallet_id = ?", walletID).
		Order("id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

// ReplayBalances projects the wallet's balance and hold balance from its
// transaction log (PENDING and COMPLETED rows, creation order). The log is
// the source of truth: a mismatch with the stored wallet row means the
// ledger has diverged and needs investigation.
func (r *WalletRepository) ReplayBalances(walletID uint) (balance, hold int64, err error) {
	var txns []models.WalletTransaction
	err = r.db.Where("wallet_id = ? AND status IN ?", walletID,
		[]string{domain.TxnStatusPending, domain.TxnStatusCompleted}).
		Order("id ASC").Find(&txns).Error
	if err != nil {
		return 0, 0, err
	}
	for _, t := range txns {
		switch t.Type {
		case domain.TxnTypeDeposit, domain.TxnTypeWithdrawal, domain.TxnTypeReversal:
			balance += t.Amount
		case domain.TxnTypeEscrowHold:
			hold += t.Amount
		case domain.TxnTypeEscrowRelease:
			hold -= t.Amount
			balance += t.Amount
		}
	}
	return balance, hold, nil
}

// WithdrawalStats returns the number and absolute total of withdrawal
// transactions for an owner since the given time. Used by the anomaly
// detector's velocity check.
func (r *WalletRepository) WithdrawalStats(ownerID uint, since time.Time) (count int64, total int64, err error) {
	var row struct {
		Count int64
		Total int64
	}
	err = r.db.Model(&models.WalletTransaction{}).
		Joins("JOIN wallets ON wallets.id = wallet_transactions.wallet_id").
		Where("wallets.owner_id = ? AND wallet_transactions.type = ? AND wallet_transactions.created_at >= ?",
			ownerID, domain.TxnTypeWithdrawal, since).
		Select("COUNT(*) AS count, COALESCE(SUM(ABS(wallet_transactions.amount)), 0) AS total").
		Scan(&row).Error
	return row.Count, row.Total, err
}

// classifyShortfall distinguishes a missing wallet from a failed balance
// guard after a zero-row UPDATE.
func (r *WalletRepository) classifyShortfall(tx *gorm.DB, walletID uint, shortfall error) error {
	var count int64
	if err := tx.Model(&models.Wallet{}).Where("id = ?", walletID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return gorm.ErrRecordNotFound
	}
	return shortfall
}

func marshalMetadata(metadata map[string]interface{}) string {
	if metadata == nil {
		return ""
	}
	b, _ := json.Marshal(metadata)
	return string(b)
}
