package service

import (
	"encoding/json"
	"fmt"
	"time"

	"buildmart/internal/domain"
	"buildmart/internal/models"
	"buildmart/internal/repository"

	"go.uber.org/zap"
)

// Velocity thresholds for the rapid-withdrawal check: either trips the flag.
const (
	velocityWindow     = 24 * time.Hour
	velocityMaxCount   = 5
	velocityMaxTotal   = 50_000_000 // VND
	velocityRiskCap    = 100
	velocityRiskBase   = 40
	velocityRiskPerTxn = 5
)

// AnomalyService watches withdrawal velocity and files advisory alerts for
// human review. Satisfies AnomalyDetector. A verdict never blocks money
// movement; it only marks the transaction for operator attention.
type AnomalyService struct {
	wallets *repository.WalletRepository
	alerts  *repository.AnomalyRepository
	log     *zap.Logger
}

func NewAnomalyService(wallets *repository.WalletRepository, alerts *repository.AnomalyRepository, log *zap.Logger) *AnomalyService {
	return &AnomalyService{wallets: wallets, alerts: alerts, log: log}
}

// CheckWithdrawalVelocity flags users with 5 or more withdrawals, or more
// than 50,000,000 VND withdrawn, inside a rolling 24 hour window. The stats
// include the pending withdrawal being requested right now only if it has
// already been written, so callers run this check before debiting.
func (s *AnomalyService) CheckWithdrawalVelocity(userID uint) (bool, error) {
	since := time.Now().Add(-velocityWindow)
	count, total, err := s.wallets.WithdrawalStats(userID, since)
	if err != nil {
		return false, err
	}

	// +1 accounts for the withdrawal about to be written.
	projectedCount := count + 1
	if projectedCount < velocityMaxCount && total <= velocityMaxTotal {
		return false, nil
	}

	risk := velocityRiskBase + int(projectedCount)*velocityRiskPerTxn + int(total/1_000_000)
	if risk > velocityRiskCap {
		risk = velocityRiskCap
	}
	severity := domain.SeverityWarning
	if risk >= 80 {
		severity = domain.SeverityCritical
	}

	evidence, _ := json.Marshal(map[string]interface{}{
		"window_hours":     24,
		"withdrawal_count": projectedCount,
		"withdrawal_total": total,
		"max_count":        velocityMaxCount,
		"max_total":        velocityMaxTotal,
	})
	alert := &models.SuspiciousActivity{
		UserID:      userID,
		Type:        "RAPID_WITHDRAWALS",
		Description: fmt.Sprintf("%d withdrawals totaling %d VND within 24 hours", projectedCount, total),
		Evidence:    string(evidence),
		RiskScore:   risk,
		Severity:    severity,
		Status:      "OPEN",
	}
	if err := s.alerts.Create(alert); err != nil {
		// The flag still rides on the withdrawal even if the alert row failed.
		s.log.Error("failed to file suspicious activity alert",
			zap.Uint("user_id", userID), zap.Error(err))
	}
	s.log.Warn("withdrawal velocity flagged",
		zap.Uint("user_id", userID),
		zap.Int64("count", projectedCount),
		zap.Int64("total", total),
		zap.Int("risk_score", risk))
	return true, nil
}

func (s *AnomalyService) OpenAlerts(limit int) ([]models.SuspiciousActivity, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.alerts.ListOpen(limit)
}

// ResolveAlert closes an alert after review.
func (s *AnomalyService) ResolveAlert(alertID uint, status string) error {
	if status != "RESOLVED" && status != "DISMISSED" {
		return fmt.Errorf("invalid alert status %q", status)
	}
	return s.alerts.SetStatus(alertID, status)
}
