package service

import (
	"testing"

	"buildmart/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnomalyFixture(t *testing.T) (*AnomalyService, *repository.WalletRepository, *repository.AnomalyRepository) {
	t.Helper()
	db := newTestDB(t)
	wallets := repository.NewWalletRepository(db)
	alerts := repository.NewAnomalyRepository(db)
	return NewAnomalyService(wallets, alerts, testLogger()), wallets, alerts
}

func withdrawN(t *testing.T, wallets *repository.WalletRepository, ownerID uint, n int, amount int64) {
	t.Helper()
	w, err := wallets.GetOrCreate(ownerID)
	require.NoError(t, err)
	_, err = wallets.Deposit(w.ID, int64(n)*amount+amount, "seed", nil)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		_, err := wallets.Withdraw(w.ID, amount, "wd", nil)
		require.NoError(t, err)
	}
}

func TestAnomalyService_UnderThreshold(t *testing.T) {
	svc, wallets, alerts := newAnomalyFixture(t)
	withdrawN(t, wallets, 1, 3, 1_000_000)

	flagged, err := svc.CheckWithdrawalVelocity(1)
	require.NoError(t, err)
	assert.False(t, flagged)

	open, err := alerts.ListOpen(10)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestAnomalyService_CountThreshold(t *testing.T) {
	svc, wallets, alerts := newAnomalyFixture(t)
	// 4 prior withdrawals; the one being requested makes 5.
	withdrawN(t, wallets, 1, 4, 1_000_000)

	flagged, err := svc.CheckWithdrawalVelocity(1)
	require.NoError(t, err)
	assert.True(t, flagged)

	open, err := alerts.ListOpen(10)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "RAPID_WITHDRAWALS", open[0].Type)
	assert.Equal(t, uint(1), open[0].UserID)
	assert.Greater(t, open[0].RiskScore, 0)
	assert.LessOrEqual(t, open[0].RiskScore, 100)
}

func TestAnomalyService_TotalThreshold(t *testing.T) {
	svc, wallets, _ := newAnomalyFixture(t)
	// Two withdrawals but a large 24h total.
	withdrawN(t, wallets, 1, 2, 30_000_000)

	flagged, err := svc.CheckWithdrawalVelocity(1)
	require.NoError(t, err)
	assert.True(t, flagged)
}

func TestAnomalyService_PerUserIsolation(t *testing.T) {
	svc, wallets, _ := newAnomalyFixture(t)
	withdrawN(t, wallets, 1, 6, 1_000_000)
	withdrawN(t, wallets, 2, 1, 1_000_000)

	flagged, err := svc.CheckWithdrawalVelocity(2)
	require.NoError(t, err)
	assert.False(t, flagged, "one user's velocity must not flag another")
}

func TestAnomalyService_ResolveAlert(t *testing.T) {
	svc, wallets, alerts := newAnomalyFixture(t)
	withdrawN(t, wallets, 1, 5, 1_000_000)
	_, err := svc.CheckWithdrawalVelocity(1)
	require.NoError(t, err)

	open, err := alerts.ListOpen(10)
	require.NoError(t, err)
	require.Len(t, open, 1)

	require.NoError(t, svc.ResolveAlert(open[0].ID, "RESOLVED"))
	open, err = alerts.ListOpen(10)
	require.NoError(t, err)
	assert.Empty(t, open)

	assert.Error(t, svc.ResolveAlert(1, "BOGUS"))
}
