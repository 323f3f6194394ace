package handler

import (
	"errors"
	"net/http"
	"strconv"

	"buildmart/internal/domain"
	"buildmart/internal/middleware"
	"buildmart/internal/repository"
	"buildmart/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type WithdrawalHandler struct {
	svc            *service.WithdrawalService
	withdrawalRepo *repository.WithdrawalRepository
	log            *zap.Logger
}

func NewWithdrawalHandler(svc *service.WithdrawalService, withdrawalRepo *repository.WithdrawalRepository, log *zap.Logger) *WithdrawalHandler {
	return &WithdrawalHandler{svc: svc, withdrawalRepo: withdrawalRepo, log: log}
}

// Create requests a withdrawal to the user's bank account. Suppliers and
// contractors cash out their released escrow earnings here.
func (h *WithdrawalHandler) Create(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req struct {
		Amount        int64  `json:"amount" binding:"required,min=1"`
		BankName      string `json:"bank_name" binding:"required"`
		AccountNumber string `json:"account_number" binding:"required"`
		AccountHolder string `json:"account_holder" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	idempotencyKey := c.GetHeader("Idempotency-Key")
	txn, withdrawal, err := h.svc.RequestWithdrawal(userID, req.Amount, service.BankDetails{
		BankName:      req.BankName,
		AccountNumber: req.AccountNumber,
		AccountHolder: req.AccountHolder,
	}, idempotencyKey)
	if err != nil {
		var restricted *domain.RestrictedError
		switch {
		case errors.As(err, &restricted):
			c.JSON(http.StatusForbidden, gin.H{
				"error":            "withdrawals are blocked on this account",
				"restriction_type": restricted.Type,
				"reason":           restricted.Reason,
			})
		case errors.Is(err, domain.ErrInsufficientBalance):
			c.JSON(http.StatusBadRequest, gin.H{"error": "insufficient withdrawable balance"})
		case errors.Is(err, domain.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		default:
			h.log.Error("withdrawal request failed", zap.Uint("user_id", userID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "withdrawal failed"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":             withdrawal.ID,
		"order_id":       withdrawal.OrderID,
		"transaction_id": txn.ID,
		"amount":         withdrawal.Amount,
		"status":         withdrawal.Status,
		"message":        "Withdrawal requested. Transfers are processed within 24 hours.",
	})
}

// ListMine returns the user's withdrawal history.
func (h *WithdrawalHandler) ListMine(c *gin.Context) {
	userID := middleware.GetUserID(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	list, err := h.withdrawalRepo.ListByUser(userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load withdrawals"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": list})
}
