package service

import (
	"errors"
	"fmt"
	"time"

	"buildmart/internal/domain"
	"buildmart/internal/models"
	"buildmart/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// BankDetails is the manual transfer destination attached to a withdrawal.
type BankDetails struct {
	BankName      string
	AccountNumber string
	AccountHolder string
}

// WithdrawalService composes the wallet ledger with the restriction
// authority and the anomaly detector to process a payee-initiated cash-out.
// The restriction and balance checks happen before any mutation; the only
// mutating step debits the balance and creates the operator-facing pending
// withdrawal in a single transaction.
type WithdrawalService struct {
	db           *gorm.DB
	wallets      *repository.WalletRepository
	withdrawals  *repository.WithdrawalRepository
	restrictions RestrictionAuthority
	anomaly      AnomalyDetector
	audit        AuditRecorder
	notify       Notifier
	log          *zap.Logger
}

func NewWithdrawalService(
	db *gorm.DB,
	wallets *repository.WalletRepository,
	withdrawals *repository.WithdrawalRepository,
	restrictions RestrictionAuthority,
	anomaly AnomalyDetector,
	audit AuditRecorder,
	notify Notifier,
	log *zap.Logger,
) *WithdrawalService {
	return &WithdrawalService{
		db:           db,
		wallets:      wallets,
		withdrawals:  withdrawals,
		restrictions: restrictions,
		anomaly:      anomaly,
		audit:        audit,
		notify:       notify,
		log:          log,
	}
}

// RequestWithdrawal processes a cash-out request. The returned transaction
// is PENDING: the actual bank transfer is executed manually by an operator,
// who then completes or fails the withdrawal.
//
// A non-empty idempotencyKey makes the request safely retryable: a repeat
// with the same key returns the original transaction without touching the
// wallet again.
func (s *WithdrawalService) RequestWithdrawal(userID uint, amount int64, bank BankDetails, idempotencyKey string) (*models.WalletTransaction, *models.Withdrawal, error) {
	if amount <= 0 {
		return nil, nil, domain.ErrInvalidAmount
	}

	if idempotencyKey != "" {
		existing, err := s.withdrawals.GetByIdempotencyKey(idempotencyKey)
		if err == nil {
			txn, terr := s.wallets.GetTransaction(existing.TransactionID)
			if terr != nil {
				return nil, nil, terr
			}
			return txn, existing, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, err
		}
	}

	allowed, rtype, reason, err := s.restrictions.CanWithdraw(userID)
	if err != nil {
		return nil, nil, err
	}
	if !allowed {
		s.audit.Record(&userID, "WALLET_WITHDRAWAL_BLOCKED", "Wallet", userID,
			map[string]interface{}{
				"attempted_amount": amount,
				"restriction_type": rtype,
				"reason":           reason,
			}, domain.SeverityWarning)
		return nil, nil, &domain.RestrictedError{Type: rtype, Reason: reason}
	}

	wallet, err := s.wallets.GetOrCreate(userID)
	if err != nil {
		return nil, nil, err
	}
	if amount > wallet.Balance {
		return nil, nil, domain.ErrInsufficientBalance
	}

	// Advisory only: a flagged verdict rides along for operator review and
	// never blocks the withdrawal.
	flagged, err := s.anomaly.CheckWithdrawalVelocity(userID)
	if err != nil {
		s.log.Warn("anomaly check failed, proceeding unflagged",
			zap.Uint("user_id", userID), zap.Error(err))
		flagged = false
	}

	orderID := "wd-" + uuid.NewString()
	description := fmt.Sprintf("Withdrawal to %s - %s - %s", bank.BankName, bank.AccountNumber, bank.AccountHolder)
	metadata := map[string]interface{}{
		"bank_name":          bank.BankName,
		"account_number":     bank.AccountNumber,
		"account_holder":     bank.AccountHolder,
		"requested_at":       time.Now().Format(time.RFC3339),
		"flagged_for_review": flagged,
	}

	var txn *models.WalletTransaction
	var withdrawal *models.Withdrawal
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var werr error
		txn, werr = s.wallets.WithTx(tx).Withdraw(wallet.ID, amount, description, metadata)
		if werr != nil {
			return werr
		}
		withdrawal = &models.Withdrawal{
			UserID:        userID,
			OrderID:       orderID,
			TransactionID: txn.ID,
			Amount:        amount,
			BankName:      bank.BankName,
			AccountNumber: bank.AccountNumber,
			AccountHolder: bank.AccountHolder,
			Status:        domain.WithdrawalStatusPending,
			Flagged:       flagged,
		}
		if idempotencyKey != "" {
			key := idempotencyKey
			withdrawal.IdempotencyKey = &key
		}
		return s.withdrawals.WithTx(tx).Create(withdrawal)
	})
	if err != nil {
		return nil, nil, err
	}

	s.audit.Record(&userID, "WALLET_WITHDRAWAL", "Wallet", wallet.ID,
		map[string]interface{}{
			"old_balance": wallet.Balance,
			"new_balance": wallet.Balance - amount,
			"amount":      amount,
			"reason":      fmt.Sprintf("Withdrawal to %s - %s", bank.BankName, bank.AccountNumber),
			"flagged":     flagged,
		}, domain.SeverityInfo)

	title := "Withdrawal request received"
	priority := domain.PriorityMedium
	if flagged {
		title = "Withdrawal request received (under review)"
		priority = domain.PriorityHigh
	}
	s.notify.Notify(userID, "WITHDRAWAL_PENDING", title,
		fmt.Sprintf("Your withdrawal of %d VND to %s is pending. We process transfers within 24 hours.", amount, bank.BankName),
		priority, map[string]interface{}{"transaction_id": txn.ID, "flagged": flagged})

	return txn, withdrawal, nil
}

// Complete marks a pending withdrawal as settled after the operator has
// executed the bank transfer. The ledger transaction moves PENDING -> COMPLETED.
func (s *WithdrawalService) Complete(withdrawalID, adminID uint) (*models.Withdrawal, error) {
	w, err := s.withdrawals.GetByID(withdrawalID)
	if err != nil {
		return nil, err
	}
	if w.Status != domain.WithdrawalStatusPending {
		return nil, domain.ErrNotReversible
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.wallets.WithTx(tx).SetTransactionStatus(w.TransactionID,
			domain.TxnStatusPending, domain.TxnStatusCompleted); err != nil {
			return err
		}
		now := time.Now()
		w.Status = domain.WithdrawalStatusCompleted
		w.CompletedAt = &now
		return s.withdrawals.WithTx(tx).Update(w)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(&adminID, "WITHDRAWAL_COMPLETED", "Withdrawal", w.ID,
		map[string]interface{}{"transaction_id": w.TransactionID, "amount": w.Amount}, domain.SeverityInfo)
	s.notify.Notify(w.UserID, "WITHDRAWAL_COMPLETED", "Withdrawal completed",
		fmt.Sprintf("Your withdrawal of %d VND to %s has been transferred.", w.Amount, w.BankName),
		domain.PriorityMedium, map[string]interface{}{"withdrawal_id": w.ID})
	return w, nil
}

// Fail marks a pending withdrawal as failed (bank transfer rejected) and
// reverses the PENDING ledger transaction, re-crediting the balance.
func (s *WithdrawalService) Fail(withdrawalID, adminID uint, reason string) (*models.Withdrawal, error) {
	w, err := s.withdrawals.GetByID(withdrawalID)
	if err != nil {
		return nil, err
	}
	if w.Status != domain.WithdrawalStatusPending {
		return nil, domain.ErrNotReversible
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if _, rerr := s.wallets.WithTx(tx).Reverse(w.TransactionID); rerr != nil {
			return rerr
		}
		w.Status = domain.WithdrawalStatusFailed
		w.FailReason = reason
		return s.withdrawals.WithTx(tx).Update(w)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(&adminID, "WITHDRAWAL_FAILED", "Withdrawal", w.ID,
		map[string]interface{}{"transaction_id": w.TransactionID, "amount": w.Amount, "reason": reason}, domain.SeverityWarning)
	s.notify.Notify(w.UserID, "WITHDRAWAL_FAILED", "Withdrawal failed",
		fmt.Sprintf("Your withdrawal of %d VND could not be transferred and has been refunded to your wallet. %s", w.Amount, reason),
		domain.PriorityHigh, map[string]interface{}{"withdrawal_id": w.ID})
	return w, nil
}
