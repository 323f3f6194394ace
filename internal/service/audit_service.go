package service

import (
	"encoding/json"

	"buildmart/internal/models"
	"buildmart/internal/repository"

	"go.uber.org/zap"
)

// AuditService persists the append-only audit trail. Satisfies AuditRecorder.
// Record never returns an error: a broken audit sink must not roll back the
// financial transaction it describes, so failures are logged and dropped.
type AuditService struct {
	logs *repository.AuditLogRepository
	log  *zap.Logger
}

func NewAuditService(logs *repository.AuditLogRepository, log *zap.Logger) *AuditService {
	return &AuditService{logs: logs, log: log}
}

func (s *AuditService) Record(actorID *uint, action, entityType string, entityID uint, metadata map[string]interface{}, severity string) {
	var meta string
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			s.log.Error("failed to marshal audit metadata", zap.String("action", action), zap.Error(err))
		} else {
			meta = string(b)
		}
	}
	entry := &models.AuditLog{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Severity:   severity,
		Metadata:   meta,
	}
	if err := s.logs.Create(entry); err != nil {
		s.log.Error("failed to write audit log",
			zap.String("action", action),
			zap.String("entity_type", entityType),
			zap.Uint("entity_id", entityID),
			zap.Error(err))
	}
}

func (s *AuditService) ListByEntity(entityType string, entityID uint, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.logs.ListByEntity(entityType, entityID, limit)
}

func (s *AuditService) ListRecent(limit, offset int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.logs.ListRecent(limit, offset)
}
