package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"buildmart/config"
	"buildmart/internal/domain"
	"buildmart/internal/middleware"
	"buildmart/internal/repository"
	"buildmart/internal/service"
	"buildmart/pkg/cloudinary"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type PhaseHandler struct {
	phases    *service.PhaseService
	orderRepo *repository.OrderRepository
	cloud     cloudinary.Client
	escrow    *config.EscrowConfig
	log       *zap.Logger
}

func NewPhaseHandler(phases *service.PhaseService, orderRepo *repository.OrderRepository, cloud cloudinary.Client, escrow *config.EscrowConfig, log *zap.Logger) *PhaseHandler {
	return &PhaseHandler{phases: phases, orderRepo: orderRepo, cloud: cloud, escrow: escrow, log: log}
}

type phaseItemRequest struct {
	ProductID   uint   `json:"product_id"`
	ProductName string `json:"product_name" binding:"required"`
	Quantity    int64  `json:"quantity" binding:"required,min=1"`
	UnitPrice   int64  `json:"unit_price" binding:"required,min=1"`
	Unit        string `json:"unit"`
}

type phaseRequest struct {
	Name           string             `json:"name" binding:"required"`
	Description    string             `json:"description"`
	ScheduledDate  string             `json:"scheduled_date"` // ISO date
	DepositPercent int                `json:"deposit_percent" binding:"omitempty,min=0,max=100"`
	Items          []phaseItemRequest `json:"items" binding:"required,min=1,dive"`
}

// Create splits an order into delivery phases.
func (h *PhaseHandler) Create(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("order_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	var req struct {
		Phases []phaseRequest `json:"phases" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	inputs := make([]service.PhaseInput, 0, len(req.Phases))
	for _, p := range req.Phases {
		depositPercent := p.DepositPercent
		if depositPercent == 0 {
			depositPercent = int(h.escrow.DefaultDepositPercent)
		}
		in := service.PhaseInput{
			Name:           p.Name,
			Description:    p.Description,
			DepositPercent: depositPercent,
		}
		if p.ScheduledDate != "" {
			d, derr := time.Parse("2006-01-02", p.ScheduledDate)
			if derr != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scheduled_date format (use YYYY-MM-DD)"})
				return
			}
			in.ScheduledDate = &d
		}
		for _, item := range p.Items {
			in.Items = append(in.Items, service.PhaseItem{
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				Unit:        item.Unit,
			})
		}
		inputs = append(inputs, in)
	}
	phases, err := h.phases.CreatePhases(uint(orderID), inputs)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		h.log.Error("phase creation failed", zap.Uint64("order_id", orderID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create phases"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"phases": phases})
}

func (h *PhaseHandler) ListByOrder(c *gin.Context) {
	orderID, err := strconv.ParseUint(c.Param("order_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}
	phases, err := h.phases.ListOrderPhases(uint(orderID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load phases"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"phases": phases})
}

func (h *PhaseHandler) Get(c *gin.Context) {
	phaseID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid phase id"})
		return
	}
	phase, err := h.phases.GetPhase(uint(phaseID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "phase not found"})
		return
	}
	c.JSON(http.StatusOK, phase)
}

// UpdateStatus advances a phase through the delivery state machine.
func (h *PhaseHandler) UpdateStatus(c *gin.Context) {
	phaseID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid phase id"})
		return
	}
	var req struct {
		Status            string `json:"status" binding:"required,oneof=PREPARING READY IN_TRANSIT DELIVERED CANCELLED"`
		CarrierName       string `json:"carrier_name"`
		TrackingNumber    string `json:"tracking_number"`
		DeliveryProof     string `json:"delivery_proof"`
		ReceiverName      string `json:"receiver_name"`
		ReceiverSignature string `json:"receiver_signature"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID := middleware.GetUserID(c)
	phase, err := h.phases.UpdateStatus(uint(phaseID), req.Status, userID, service.StatusUpdate{
		CarrierName:       req.CarrierName,
		TrackingNumber:    req.TrackingNumber,
		DeliveryProof:     req.DeliveryProof,
		ReceiverName:      req.ReceiverName,
		ReceiverSignature: req.ReceiverSignature,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			c.JSON(http.StatusConflict, gin.H{"error": "invalid status transition"})
			return
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "phase not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update status"})
		return
	}
	c.JSON(http.StatusOK, phase)
}

// ConfirmDelivery is the customer's confirmation of a delivered phase; it
// releases the escrowed funds to the recipient wallet.
func (h *PhaseHandler) ConfirmDelivery(c *gin.Context) {
	phaseID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid phase id"})
		return
	}
	userID := middleware.GetUserID(c)
	phase, err := h.phases.GetPhase(uint(phaseID))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "phase not found"})
		return
	}
	order, err := h.orderRepo.GetByID(phase.OrderID)
	if err != nil || order.CustomerID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "only the order customer can confirm delivery"})
		return
	}
	if phase.RecipientWalletID == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "phase has no escrowed funds"})
		return
	}
	if err := h.phases.ConfirmAndRelease(uint(phaseID), userID, *phase.RecipientWalletID); err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyReleased):
			c.JSON(http.StatusConflict, gin.H{"error": "phase already confirmed"})
		case errors.Is(err, domain.ErrNotDelivered):
			c.JSON(http.StatusConflict, gin.H{"error": "phase is not delivered yet"})
		case errors.Is(err, domain.ErrNotEscrowed):
			c.JSON(http.StatusConflict, gin.H{"error": "phase has no escrowed funds"})
		default:
			h.log.Error("confirm and release failed", zap.Uint64("phase_id", phaseID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to confirm delivery"})
		}
		return
	}
	updated, _ := h.phases.GetPhase(uint(phaseID))
	c.JSON(http.StatusOK, updated)
}

// Upcoming lists phases scheduled in the next N days. The default horizon
// comes from the escrow config.
func (h *PhaseHandler) Upcoming(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", strconv.Itoa(h.escrow.ReminderDays)))
	if days <= 0 || days > 30 {
		days = h.escrow.ReminderDays
	}
	phases, err := h.phases.UpcomingDeliveries(days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load deliveries"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"phases": phases})
}

// UploadProof uploads a proof-of-delivery photo and returns its URL for use
// in the DELIVERED status update.
func (h *PhaseHandler) UploadProof(c *gin.Context) {
	phaseID := c.Param("id")
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	defer file.Close()
	publicID := fmt.Sprintf("phase_%s_%s", phaseID, uuid.NewString())
	url, thumb, err := h.cloud.UploadImage(c.Request.Context(), file, "delivery-proofs", publicID)
	if err != nil {
		h.log.Error("proof upload failed", zap.String("phase_id", phaseID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url, "thumbnail_url": thumb})
}
