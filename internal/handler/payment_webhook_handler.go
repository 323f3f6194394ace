package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"buildmart/internal/domain"
	"buildmart/internal/models"
	"buildmart/internal/repository"
	"buildmart/internal/service"
	"buildmart/pkg/payment"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GatewayCallback is the webhook payload from the payment gateway after a
// hosted checkout finishes.
type GatewayCallback struct {
	Reference       string `json:"reference"`
	MerchantOrderID string `json:"merchant_order_id"`
	Status          string `json:"status"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	Method          string `json:"method"`
	TransactionDate string `json:"transaction_date"`
}

type PaymentWebhookHandler struct {
	paymentRepo   *repository.PaymentRepository
	orderRepo     *repository.OrderRepository
	walletRepo    *repository.WalletRepository
	phases        *service.PhaseService
	provider      payment.Provider
	notify        service.Notifier
	webhookSecret string
	log           *zap.Logger
}

func NewPaymentWebhookHandler(
	paymentRepo *repository.PaymentRepository,
	orderRepo *repository.OrderRepository,
	walletRepo *repository.WalletRepository,
	phases *service.PhaseService,
	provider payment.Provider,
	notify service.Notifier,
	webhookSecret string,
	log *zap.Logger,
) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{
		paymentRepo:   paymentRepo,
		orderRepo:     orderRepo,
		walletRepo:    walletRepo,
		phases:        phases,
		provider:      provider,
		notify:        notify,
		webhookSecret: webhookSecret,
		log:           log,
	}
}

// Handle processes the gateway callback. On COMPLETED it marks the payment
// done exactly once, records the phase deposit, and escrows the funds on the
// contractor's wallet. Retried deliveries are acknowledged without effect.
func (h *PaymentWebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if h.webhookSecret != "" && !h.verifySignature(body, c.GetHeader("X-Gateway-Signature")) {
		h.log.Warn("webhook signature mismatch")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}
	var payload GatewayCallback
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	ref := payload.Reference
	if ref == "" {
		ref = payload.MerchantOrderID
	}
	if ref == "" {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	p, err := h.paymentRepo.GetByProviderRef(ref)
	if err != nil {
		h.log.Warn("webhook for unknown payment", zap.String("reference", ref))
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	if p.Status == "COMPLETED" {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if payload.Status != "COMPLETED" && payload.Status != "PAID" {
		if p.Status == "PENDING" {
			p.Status = "FAILED"
			_ = h.paymentRepo.Update(p)
		}
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	// The callback is untrusted input; confirm with the gateway before
	// moving any money.
	ok, verr := h.provider.VerifyPayment(c.Request.Context(), ref)
	if verr != nil {
		h.log.Error("payment verification failed", zap.String("reference", ref), zap.Error(verr))
		c.JSON(http.StatusBadGateway, gin.H{"error": "verification failed"})
		return
	}
	if !ok {
		h.log.Warn("webhook claims COMPLETED but gateway disagrees", zap.String("reference", ref))
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	changed, err := h.paymentRepo.MarkCompleted(p.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to complete payment"})
		return
	}
	if !changed {
		// A concurrent delivery won the race.
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if p.PhaseID != nil {
		h.settlePhase(p, payload.Method)
	}
	h.notify.Notify(p.UserID, "PAYMENT_CONFIRMED", "Payment confirmed",
		"Your payment was received successfully.", domain.PriorityMedium,
		map[string]interface{}{"payment_id": p.ID, "amount": p.Amount})

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// settlePhase records the deposit and escrows the funds on the contractor's
// wallet. Deposit and escrow failures are logged, not retried here: the
// payment stays COMPLETED and an operator can re-drive the phase.
func (h *PaymentWebhookHandler) settlePhase(p *models.Payment, method string) {
	if method == "" {
		method = "GATEWAY"
	}
	phase, err := h.phases.ProcessDeposit(*p.PhaseID, p.Amount, method)
	if err != nil {
		h.log.Error("deposit processing failed",
			zap.Uint("payment_id", p.ID), zap.Uint("phase_id", *p.PhaseID), zap.Error(err))
		return
	}
	order, err := h.orderRepo.GetByID(phase.OrderID)
	if err != nil {
		h.log.Error("order lookup failed for escrow", zap.Uint("order_id", phase.OrderID), zap.Error(err))
		return
	}
	if order.ContractorID == nil {
		// No recipient assigned yet; funds stay as a recorded deposit and
		// escrow happens when the contractor is attached.
		h.log.Info("phase deposit recorded without contractor; escrow deferred",
			zap.Uint("phase_id", phase.ID))
		return
	}
	wallet, err := h.walletRepo.GetOrCreate(*order.ContractorID)
	if err != nil {
		h.log.Error("recipient wallet lookup failed", zap.Uint("contractor_id", *order.ContractorID), zap.Error(err))
		return
	}
	if err := h.phases.EscrowPhase(phase.ID, wallet.ID); err != nil {
		h.log.Error("escrow failed after deposit",
			zap.Uint("phase_id", phase.ID), zap.Uint("wallet_id", wallet.ID), zap.Error(err))
	}
}

func (h *PaymentWebhookHandler) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
