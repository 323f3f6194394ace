package handler

import (
	"net/http"
	"strconv"

	"buildmart/internal/middleware"
	"buildmart/internal/repository"

	"github.com/gin-gonic/gin"
)

type WalletHandler struct {
	walletRepo *repository.WalletRepository
}

func NewWalletHandler(walletRepo *repository.WalletRepository) *WalletHandler {
	return &WalletHandler{walletRepo: walletRepo}
}

// GetBalance returns the current user's wallet balances.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID := middleware.GetUserID(c)
	w, err := h.walletRepo.GetOrCreate(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "wallet error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"balance":      w.Balance,
		"hold_balance": w.HoldBalance,
		"total_earned": w.TotalEarned,
		"currency":     w.Currency,
	})
}

// GetTransactions returns the user's transaction history, newest first.
func (h *WalletHandler) GetTransactions(c *gin.Context) {
	userID := middleware.GetUserID(c)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	w, err := h.walletRepo.GetOrCreate(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "wallet error"})
		return
	}
	txns, err := h.walletRepo.ListTransactions(w.ID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transactions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txns})
}

// Reconcile replays a wallet's transaction log and compares the projected
// balances against the stored row. Admin only.
func (h *WalletHandler) Reconcile(c *gin.Context) {
	walletID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid wallet id"})
		return
	}
	w, err := h.walletRepo.GetByID(uint(walletID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "wallet not found"})
		return
	}
	balance, hold, err := h.walletRepo.ReplayBalances(w.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "replay failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"wallet_id":         w.ID,
		"stored_balance":    w.Balance,
		"stored_hold":       w.HoldBalance,
		"projected_balance": balance,
		"projected_hold":    hold,
		"consistent":        balance == w.Balance && hold == w.HoldBalance,
	})
}
