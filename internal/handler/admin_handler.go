package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"buildmart/internal/domain"
	"buildmart/internal/middleware"
	"buildmart/internal/repository"
	"buildmart/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminHandler groups the operator endpoints: restriction management, the
// withdrawal review queue, suspicious-activity alerts and the audit trail.
type AdminHandler struct {
	restrictions   *service.RestrictionService
	withdrawals    *service.WithdrawalService
	anomaly        *service.AnomalyService
	audit          *service.AuditService
	withdrawalRepo *repository.WithdrawalRepository
	log            *zap.Logger
}

func NewAdminHandler(
	restrictions *service.RestrictionService,
	withdrawals *service.WithdrawalService,
	anomaly *service.AnomalyService,
	audit *service.AuditService,
	withdrawalRepo *repository.WithdrawalRepository,
	log *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		restrictions:   restrictions,
		withdrawals:    withdrawals,
		anomaly:        anomaly,
		audit:          audit,
		withdrawalRepo: withdrawalRepo,
		log:            log,
	}
}

func (h *AdminHandler) ApplyRestriction(c *gin.Context) {
	adminID := middleware.GetUserID(c)
	var req struct {
		UserID  uint   `json:"user_id" binding:"required"`
		Type    string `json:"type" binding:"required,oneof=FULL_BAN MARKETPLACE_BAN WALLET_HOLD BIDDING_BAN PROBATION"`
		Reason  string `json:"reason" binding:"required"`
		EndDate string `json:"end_date"` // ISO date; empty = permanent
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var endDate *time.Time
	if req.EndDate != "" {
		d, derr := time.Parse("2006-01-02", req.EndDate)
		if derr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_date format (use YYYY-MM-DD)"})
			return
		}
		endDate = &d
	}
	restriction, err := h.restrictions.Apply(req.UserID, req.Type, req.Reason, endDate, adminID)
	if err != nil {
		h.log.Error("restriction apply failed", zap.Uint("user_id", req.UserID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to apply restriction"})
		return
	}
	c.JSON(http.StatusCreated, restriction)
}

func (h *AdminHandler) LiftRestriction(c *gin.Context) {
	adminID := middleware.GetUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid restriction id"})
		return
	}
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	restriction, err := h.restrictions.Lift(uint(id), adminID, req.Reason)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "restriction not found"})
		return
	}
	c.JSON(http.StatusOK, restriction)
}

func (h *AdminHandler) ListUserRestrictions(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("user_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	list, err := h.restrictions.ListByUser(uint(userID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load restrictions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"restrictions": list})
}

// PendingWithdrawals is the operator review queue, flagged requests first.
func (h *AdminHandler) PendingWithdrawals(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	list, err := h.withdrawalRepo.ListPending(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load withdrawals"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": list})
}

// CompleteWithdrawal settles a pending withdrawal after the bank transfer.
func (h *AdminHandler) CompleteWithdrawal(c *gin.Context) {
	adminID := middleware.GetUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid withdrawal id"})
		return
	}
	w, err := h.withdrawals.Complete(uint(id), adminID)
	if err != nil {
		if errors.Is(err, domain.ErrNotReversible) {
			c.JSON(http.StatusConflict, gin.H{"error": "withdrawal is not pending"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to complete withdrawal"})
		return
	}
	c.JSON(http.StatusOK, w)
}

// FailWithdrawal marks a pending withdrawal failed and refunds the wallet.
func (h *AdminHandler) FailWithdrawal(c *gin.Context) {
	adminID := middleware.GetUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid withdrawal id"})
		return
	}
	var req struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	w, err := h.withdrawals.Fail(uint(id), adminID, req.Reason)
	if err != nil {
		if errors.Is(err, domain.ErrNotReversible) {
			c.JSON(http.StatusConflict, gin.H{"error": "withdrawal is not pending"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fail withdrawal"})
		return
	}
	c.JSON(http.StatusOK, w)
}

func (h *AdminHandler) OpenAlerts(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := h.anomaly.OpenAlerts(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load alerts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": list})
}

func (h *AdminHandler) ResolveAlert(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid alert id"})
		return
	}
	var req struct {
		Status string `json:"status" binding:"required,oneof=RESOLVED DISMISSED"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.anomaly.ResolveAlert(uint(id), req.Status); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update alert"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *AdminHandler) AuditTrail(c *gin.Context) {
	entityType := c.Query("entity_type")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if entityType != "" {
		entityID, _ := strconv.ParseUint(c.Query("entity_id"), 10, 32)
		list, err := h.audit.ListByEntity(entityType, uint(entityID), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load audit log"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": list})
		return
	}
	list, err := h.audit.ListRecent(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load audit log"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": list})
}
