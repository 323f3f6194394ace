package service

import (
	"context"
	"encoding/json"

	"buildmart/internal/models"
	"buildmart/internal/repository"
	"buildmart/internal/ws"

	"go.uber.org/zap"
)

// NotificationService persists notifications and fans them out over FCM and
// the websocket event hub. Satisfies Notifier. Delivery is best-effort: a
// failure here never affects the transaction that triggered it.
type NotificationService struct {
	repo     *repository.NotificationRepository
	userRepo *repository.UserRepository
	fcm      *FCMService
	hub      *ws.Hub
	log      *zap.Logger
}

func NewNotificationService(repo *repository.NotificationRepository, userRepo *repository.UserRepository, fcm *FCMService, hub *ws.Hub, log *zap.Logger) *NotificationService {
	return &NotificationService{repo: repo, userRepo: userRepo, fcm: fcm, hub: hub, log: log}
}

func (s *NotificationService) Notify(userID uint, notifType, title, body, priority string, data map[string]interface{}) {
	var dataJSON string
	if data != nil {
		b, _ := json.Marshal(data)
		dataJSON = string(b)
	}
	n := &models.Notification{
		UserID:   userID,
		Type:     notifType,
		Title:    title,
		Body:     body,
		Priority: priority,
		Data:     dataJSON,
	}
	if err := s.repo.Create(n); err != nil {
		s.log.Error("failed to persist notification",
			zap.Uint("user_id", userID), zap.String("type", notifType), zap.Error(err))
	}

	if s.hub != nil {
		s.hub.BroadcastToUser(userID, map[string]interface{}{
			"event":    "notification",
			"type":     notifType,
			"title":    title,
			"body":     body,
			"priority": priority,
			"data":     data,
		})
	}
	s.sendPush(userID, notifType, title, body, data)
}

func (s *NotificationService) sendPush(userID uint, notifType, title, body string, data map[string]interface{}) {
	if s.fcm == nil || s.userRepo == nil {
		return
	}
	u, err := s.userRepo.GetByID(userID)
	if err != nil || u == nil || u.FCMToken == "" {
		return
	}
	_ = s.fcm.SendToUser(context.Background(), u.FCMToken, notifType, title, body, data)
}

func (s *NotificationService) List(userID uint, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByUserID(userID, limit, offset)
}

func (s *NotificationService) MarkRead(id, userID uint) error {
	return s.repo.MarkRead(id, userID)
}
