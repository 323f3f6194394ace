package service

import (
	"fmt"
	"time"

	"buildmart/internal/domain"
	"buildmart/internal/models"
	"buildmart/internal/repository"

	"go.uber.org/zap"
)

// withdrawalBlockingTypes are the restriction types consulted by the
// withdrawal gate. Marketplace and bidding bans do not freeze funds.
var withdrawalBlockingTypes = []string{domain.RestrictionFullBan, domain.RestrictionWalletHold}

// RestrictionService manages admin-imposed account restrictions and answers
// the ledger's pre-withdrawal gate. Satisfies RestrictionAuthority.
type RestrictionService struct {
	restrictions *repository.RestrictionRepository
	audit        AuditRecorder
	notify       Notifier
	log          *zap.Logger
}

func NewRestrictionService(restrictions *repository.RestrictionRepository, audit AuditRecorder, notify Notifier, log *zap.Logger) *RestrictionService {
	return &RestrictionService{restrictions: restrictions, audit: audit, notify: notify, log: log}
}

// CanWithdraw reports whether the user is clear of withdrawal-blocking
// restrictions. A database failure is returned as an error so the caller
// fails closed rather than paying out under an unknown restriction state.
func (s *RestrictionService) CanWithdraw(userID uint) (bool, string, string, error) {
	restriction, err := s.restrictions.ActiveByTypes(userID, withdrawalBlockingTypes)
	if err != nil {
		return false, "", "", err
	}
	if restriction == nil {
		return true, "", "", nil
	}
	return false, restriction.Type, restriction.Reason, nil
}

// Apply imposes a restriction on a user. A nil endDate means permanent.
func (s *RestrictionService) Apply(userID uint, restrictionType, reason string, endDate *time.Time, adminID uint) (*models.UserRestriction, error) {
	restriction := &models.UserRestriction{
		UserID:    userID,
		Type:      restrictionType,
		Reason:    reason,
		IsActive:  true,
		EndDate:   endDate,
		ImposedBy: adminID,
	}
	if err := s.restrictions.Create(restriction); err != nil {
		return nil, err
	}

	s.audit.Record(&adminID, "RESTRICTION_APPLIED", "UserRestriction", restriction.ID,
		map[string]interface{}{"user_id": userID, "type": restrictionType, "reason": reason}, domain.SeverityHigh)

	duration := "until further notice"
	if endDate != nil {
		duration = "until " + endDate.Format("2006-01-02")
	}
	s.notify.Notify(userID, "ACCOUNT_RESTRICTED", "Account restriction applied",
		fmt.Sprintf("A %s restriction has been placed on your account %s. Reason: %s", restrictionType, duration, reason),
		domain.PriorityHigh, map[string]interface{}{"restriction_id": restriction.ID, "type": restrictionType})
	return restriction, nil
}

// Lift deactivates a restriction before its end date.
func (s *RestrictionService) Lift(restrictionID, adminID uint, reason string) (*models.UserRestriction, error) {
	restriction, err := s.restrictions.GetByID(restrictionID)
	if err != nil {
		return nil, err
	}
	if !restriction.IsActive {
		return restriction, nil
	}
	now := time.Now()
	restriction.IsActive = false
	restriction.LiftedAt = &now
	restriction.LiftedBy = &adminID
	restriction.LiftReason = reason
	if err := s.restrictions.Update(restriction); err != nil {
		return nil, err
	}

	s.audit.Record(&adminID, "RESTRICTION_LIFTED", "UserRestriction", restriction.ID,
		map[string]interface{}{"user_id": restriction.UserID, "type": restriction.Type, "reason": reason}, domain.SeverityInfo)
	s.notify.Notify(restriction.UserID, "RESTRICTION_LIFTED", "Account restriction lifted",
		fmt.Sprintf("The %s restriction on your account has been lifted.", restriction.Type),
		domain.PriorityMedium, map[string]interface{}{"restriction_id": restriction.ID})
	return restriction, nil
}

func (s *RestrictionService) ListByUser(userID uint) ([]models.UserRestriction, error) {
	return s.restrictions.ListByUser(userID)
}
