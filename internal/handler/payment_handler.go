package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"buildmart/config"
	"buildmart/internal/middleware"
	"buildmart/internal/models"
	"buildmart/internal/repository"
	"buildmart/internal/service"
	"buildmart/pkg/payment"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type PaymentHandler struct {
	cfg         *config.Config
	paymentRepo *repository.PaymentRepository
	phases      *service.PhaseService
	provider    payment.Provider
	log         *zap.Logger
}

func NewPaymentHandler(cfg *config.Config, paymentRepo *repository.PaymentRepository, phases *service.PhaseService, provider payment.Provider, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{cfg: cfg, paymentRepo: paymentRepo, phases: phases, provider: provider, log: log}
}

// InitiateDeposit starts a hosted checkout for a delivery phase deposit.
// The customer pays at the gateway; the webhook completes the flow.
func (h *PaymentHandler) InitiateDeposit(c *gin.Context) {
	userID := middleware.GetUserID(c)
	var req struct {
		PhaseID uint  `json:"phase_id" binding:"required"`
		Amount  int64 `json:"amount" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	idempotencyKey := c.GetHeader("Idempotency-Key")
	if idempotencyKey != "" {
		existing, err := h.paymentRepo.GetByIdempotencyKey(idempotencyKey)
		if err == nil {
			c.JSON(http.StatusOK, gin.H{
				"payment_id": existing.ID,
				"reference":  existing.ProviderRef,
				"status":     existing.Status,
			})
			return
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "payment lookup failed"})
			return
		}
	}

	phase, err := h.phases.GetPhase(req.PhaseID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "phase not found"})
		return
	}
	if req.Amount < phase.DepositRequired {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":            "amount below required deposit",
			"deposit_required": phase.DepositRequired,
		})
		return
	}

	orderRef := "pay-" + uuid.NewString()
	resp, err := h.provider.InitiatePayment(c.Request.Context(), payment.PaymentRequest{
		UserID:         userID,
		Amount:         req.Amount,
		Currency:       "VND",
		IdempotencyKey: idempotencyKey,
		OrderID:        orderRef,
		Description:    fmt.Sprintf("Deposit for delivery phase %d: %s", phase.PhaseNumber, phase.PhaseName),
		ExpiresIn:      h.cfg.Payment.PaymentExpiry,
	})
	if err != nil {
		h.log.Error("checkout initiation failed", zap.Uint("phase_id", req.PhaseID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment gateway unavailable"})
		return
	}

	meta, _ := json.Marshal(map[string]interface{}{"phase_id": req.PhaseID})
	phaseID := req.PhaseID
	p := &models.Payment{
		UserID:      userID,
		PhaseID:     &phaseID,
		Amount:      req.Amount,
		Currency:    "VND",
		Provider:    "gateway",
		ProviderRef: resp.Reference,
		Status:      "PENDING",
		Metadata:    string(meta),
		ExpiresAt:   &resp.ExpiresAt,
	}
	if idempotencyKey != "" {
		key := idempotencyKey
		p.IdempotencyKey = &key
	}
	if err := h.paymentRepo.Create(p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record payment"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"payment_id":   p.ID,
		"reference":    resp.Reference,
		"checkout_url": resp.CheckoutURL,
		"expires_at":   resp.ExpiresAt.Format(time.RFC3339),
		"status":       "PENDING",
	})
}

func (h *PaymentHandler) Get(c *gin.Context) {
	userID := middleware.GetUserID(c)
	ref := c.Param("reference")
	p, err := h.paymentRepo.GetByProviderRef(ref)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
		return
	}
	if p.UserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.JSON(http.StatusOK, p)
}
