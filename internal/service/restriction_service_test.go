package service

import (
	"testing"
	"time"

	"buildmart/internal/domain"
	"buildmart/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRestrictionService(t *testing.T) (*RestrictionService, *fakeAudit, *fakeNotifier) {
	t.Helper()
	db := newTestDB(t)
	audit := &fakeAudit{}
	notify := &fakeNotifier{}
	svc := NewRestrictionService(repository.NewRestrictionRepository(db), audit, notify, testLogger())
	return svc, audit, notify
}

func TestRestrictionService_CanWithdraw(t *testing.T) {
	svc, _, _ := newRestrictionService(t)

	t.Run("clear by default", func(t *testing.T) {
		allowed, _, _, err := svc.CanWithdraw(1)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("wallet hold blocks", func(t *testing.T) {
		_, err := svc.Apply(1, domain.RestrictionWalletHold, "fraud review", nil, 99)
		require.NoError(t, err)

		allowed, rtype, reason, err := svc.CanWithdraw(1)
		require.NoError(t, err)
		assert.False(t, allowed)
		assert.Equal(t, domain.RestrictionWalletHold, rtype)
		assert.Equal(t, "fraud review", reason)
	})

	t.Run("marketplace ban does not block withdrawals", func(t *testing.T) {
		_, err := svc.Apply(2, domain.RestrictionMarketplaceBan, "listing abuse", nil, 99)
		require.NoError(t, err)

		allowed, _, _, err := svc.CanWithdraw(2)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("expired restriction no longer blocks", func(t *testing.T) {
		past := time.Now().Add(-time.Hour)
		_, err := svc.Apply(3, domain.RestrictionFullBan, "cooldown", &past, 99)
		require.NoError(t, err)

		allowed, _, _, err := svc.CanWithdraw(3)
		require.NoError(t, err)
		assert.True(t, allowed)
	})
}

func TestRestrictionService_Lift(t *testing.T) {
	svc, audit, notify := newRestrictionService(t)

	restriction, err := svc.Apply(1, domain.RestrictionFullBan, "chargebacks", nil, 99)
	require.NoError(t, err)
	assert.True(t, audit.has("RESTRICTION_APPLIED"))
	assert.True(t, notify.has("ACCOUNT_RESTRICTED"))

	lifted, err := svc.Lift(restriction.ID, 99, "resolved with bank")
	require.NoError(t, err)
	assert.False(t, lifted.IsActive)
	require.NotNil(t, lifted.LiftedBy)
	assert.Equal(t, uint(99), *lifted.LiftedBy)

	allowed, _, _, err := svc.CanWithdraw(1)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.True(t, audit.has("RESTRICTION_LIFTED"))

	// Lifting twice is a no-op.
	again, err := svc.Lift(restriction.ID, 99, "again")
	require.NoError(t, err)
	assert.False(t, again.IsActive)
}
