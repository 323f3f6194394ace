package service

import (
	"sync"
	"testing"

	"buildmart/internal/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Wallet{},
		&models.WalletTransaction{},
		&models.Order{},
		&models.DeliveryPhase{},
		&models.Withdrawal{},
		&models.Notification{},
		&models.AuditLog{},
		&models.UserRestriction{},
		&models.SuspiciousActivity{},
	))
	return db
}

// fakeAudit records actions in memory for assertions.
type fakeAudit struct {
	mu      sync.Mutex
	actions []string
}

func (f *fakeAudit) Record(actorID *uint, action, entityType string, entityID uint, metadata map[string]interface{}, severity string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
}

func (f *fakeAudit) has(action string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.actions {
		if a == action {
			return true
		}
	}
	return false
}

// fakeNotifier records notification types per user.
type fakeNotifier struct {
	mu    sync.Mutex
	sent  []string
	users []uint
}

func (f *fakeNotifier) Notify(userID uint, notifType, title, body, priority string, data map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, notifType)
	f.users = append(f.users, userID)
}

func (f *fakeNotifier) has(notifType string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sent {
		if s == notifType {
			return true
		}
	}
	return false
}

// fakeRestrictions is a scriptable RestrictionAuthority.
type fakeRestrictions struct {
	blocked bool
	rtype   string
	reason  string
	err     error
}

func (f *fakeRestrictions) CanWithdraw(userID uint) (bool, string, string, error) {
	if f.err != nil {
		return false, "", "", f.err
	}
	if f.blocked {
		return false, f.rtype, f.reason, nil
	}
	return true, "", "", nil
}

// fakeAnomaly is a scriptable AnomalyDetector.
type fakeAnomaly struct {
	flagged bool
	err     error
	calls   int
}

func (f *fakeAnomaly) CheckWithdrawalVelocity(userID uint) (bool, error) {
	f.calls++
	return f.flagged, f.err
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
