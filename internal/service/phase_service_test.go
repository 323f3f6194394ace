package service

import (
	"testing"
	"time"

	"buildmart/internal/domain"
	"buildmart/internal/models"
	"buildmart/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type phaseFixture struct {
	svc     *PhaseService
	wallets *repository.WalletRepository
	phases  *repository.PhaseRepository
	audit   *fakeAudit
	notify  *fakeNotifier
	db      *gorm.DB
	order   *models.Order
}

func newPhaseFixture(t *testing.T) *phaseFixture {
	t.Helper()
	db := newTestDB(t)
	wallets := repository.NewWalletRepository(db)
	phases := repository.NewPhaseRepository(db)
	orders := repository.NewOrderRepository(db)
	audit := &fakeAudit{}
	notify := &fakeNotifier{}
	svc := NewPhaseService(db, phases, orders, wallets, audit, notify, testLogger())

	order := &models.Order{CustomerID: 10, Title: "Villa foundation materials", Status: "ACTIVE"}
	require.NoError(t, orders.Create(order))
	return &phaseFixture{svc: svc, wallets: wallets, phases: phases, audit: audit, notify: notify, db: db, order: order}
}

func (f *phaseFixture) createPhase(t *testing.T, depositPercent int) *models.DeliveryPhase {
	t.Helper()
	created, err := f.svc.CreatePhases(f.order.ID, []PhaseInput{{
		Name:           "Foundation",
		DepositPercent: depositPercent,
		Items: []PhaseItem{
			{ProductName: "Cement PCB40", Quantity: 100, UnitPrice: 95_000, Unit: "bag"},
			{ProductName: "Steel rebar D16", Quantity: 50, UnitPrice: 210_000, Unit: "bar"},
		},
	}})
	require.NoError(t, err)
	require.Len(t, created, 1)
	return &created[0]
}

func TestPhaseService_CreatePhases(t *testing.T) {
	f := newPhaseFixture(t)
	phase := f.createPhase(t, 30)

	// 100*95k + 50*210k = 20,000,000; 30% deposit
	assert.Equal(t, int64(20_000_000), phase.PhaseValue)
	assert.Equal(t, int64(6_000_000), phase.DepositRequired)
	assert.Equal(t, 1, phase.PhaseNumber)
	assert.Equal(t, domain.PhasePending, phase.Status)
	assert.Equal(t, domain.PhaseUnpaid, phase.PaymentStatus)

	_, err := f.svc.CreatePhases(9999, []PhaseInput{{Name: "x"}})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPhaseService_UpdateStatus(t *testing.T) {
	f := newPhaseFixture(t)
	phase := f.createPhase(t, 0)

	t.Run("walks the happy path in order", func(t *testing.T) {
		for _, status := range []string{domain.PhasePreparing, domain.PhaseReady, domain.PhaseInTransit} {
			p, err := f.svc.UpdateStatus(phase.ID, status, 10, StatusUpdate{})
			require.NoError(t, err)
			assert.Equal(t, status, p.Status)
		}
		p, err := f.svc.UpdateStatus(phase.ID, domain.PhaseDelivered, 10, StatusUpdate{
			DeliveryProof: "https://res.cloudinary.com/x/proof.jpg",
			ReceiverName:  "Nguyen Van A",
		})
		require.NoError(t, err)
		assert.Equal(t, domain.PhaseDelivered, p.Status)
		assert.NotNil(t, p.ActualDate)
		assert.Equal(t, "Nguyen Van A", p.ReceiverName)
	})

	t.Run("rejects skipped edges", func(t *testing.T) {
		p2 := f.createPhase(t, 0)
		_, err := f.svc.UpdateStatus(p2.ID, domain.PhaseDelivered, 10, StatusUpdate{})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("rejects CONFIRMED as a direct target", func(t *testing.T) {
		p3 := f.createPhase(t, 0)
		_, err := f.svc.UpdateStatus(p3.ID, domain.PhaseConfirmed, 10, StatusUpdate{})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("terminal statuses admit nothing", func(t *testing.T) {
		p4 := f.createPhase(t, 0)
		_, err := f.svc.UpdateStatus(p4.ID, domain.PhaseCancelled, 10, StatusUpdate{})
		require.NoError(t, err)
		_, err = f.svc.UpdateStatus(p4.ID, domain.PhasePreparing, 10, StatusUpdate{})
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})
}

func TestPhaseService_ProcessDeposit(t *testing.T) {
	f := newPhaseFixture(t)
	phase := f.createPhase(t, 30) // deposit required 6,000,000

	t.Run("rejects underpayment", func(t *testing.T) {
		_, err := f.svc.ProcessDeposit(phase.ID, 5_999_999, "GATEWAY")
		assert.ErrorIs(t, err, domain.ErrInsufficientDeposit)
	})

	t.Run("records deposit at or above the requirement", func(t *testing.T) {
		p, err := f.svc.ProcessDeposit(phase.ID, 6_000_000, "GATEWAY")
		require.NoError(t, err)
		assert.Equal(t, domain.PhaseDepositPaid, p.PaymentStatus)
		assert.Equal(t, int64(6_000_000), p.PaidAmount)
		assert.NotNil(t, p.DepositPaidAt)
	})

	t.Run("rejects invalid amounts", func(t *testing.T) {
		_, err := f.svc.ProcessDeposit(phase.ID, 0, "GATEWAY")
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	})
}

func TestPhaseService_EscrowPhase(t *testing.T) {
	f := newPhaseFixture(t)
	phase := f.createPhase(t, 30)
	wallet, err := f.wallets.GetOrCreate(20) // contractor
	require.NoError(t, err)

	t.Run("cannot escrow an unpaid phase", func(t *testing.T) {
		err := f.svc.EscrowPhase(phase.ID, wallet.ID)
		assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	})

	_, err = f.svc.ProcessDeposit(phase.ID, 6_000_000, "GATEWAY")
	require.NoError(t, err)

	t.Run("escrow moves the paid amount into the hold balance", func(t *testing.T) {
		require.NoError(t, f.svc.EscrowPhase(phase.ID, wallet.ID))

		p, err := f.phases.GetByID(phase.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PhaseEscrowed, p.PaymentStatus)
		assert.Equal(t, int64(6_000_000), p.EscrowedAmount)
		require.NotNil(t, p.RecipientWalletID)
		assert.Equal(t, wallet.ID, *p.RecipientWalletID)

		w, err := f.wallets.GetByID(wallet.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(6_000_000), w.HoldBalance)
		assert.Equal(t, int64(0), w.Balance)
		assert.True(t, f.notify.has("ESCROW_FUNDED"))
	})

	t.Run("double escrow does not double-credit", func(t *testing.T) {
		err := f.svc.EscrowPhase(phase.ID, wallet.ID)
		assert.ErrorIs(t, err, domain.ErrAlreadyEscrowed)

		w, err := f.wallets.GetByID(wallet.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(6_000_000), w.HoldBalance)
	})
}

// TestPhaseService_FullLifecycle drives one phase from creation through
// confirmed delivery and checks the money lands in the recipient's
// withdrawable balance exactly once.
func TestPhaseService_FullLifecycle(t *testing.T) {
	f := newPhaseFixture(t)
	phase := f.createPhase(t, 30)
	wallet, err := f.wallets.GetOrCreate(20)
	require.NoError(t, err)

	_, err = f.svc.ProcessDeposit(phase.ID, 6_000_000, "GATEWAY")
	require.NoError(t, err)
	require.NoError(t, f.svc.EscrowPhase(phase.ID, wallet.ID))

	t.Run("release before delivery is rejected", func(t *testing.T) {
		err := f.svc.ConfirmAndRelease(phase.ID, 10, wallet.ID)
		assert.ErrorIs(t, err, domain.ErrNotDelivered)
	})

	for _, status := range []string{domain.PhasePreparing, domain.PhaseReady, domain.PhaseInTransit, domain.PhaseDelivered} {
		_, err := f.svc.UpdateStatus(phase.ID, status, 20, StatusUpdate{})
		require.NoError(t, err)
	}

	t.Run("confirm releases escrow to balance", func(t *testing.T) {
		require.NoError(t, f.svc.ConfirmAndRelease(phase.ID, 10, wallet.ID))

		p, err := f.phases.GetByID(phase.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PhaseConfirmed, p.Status)
		assert.Equal(t, domain.PhaseReleased, p.PaymentStatus)
		require.NotNil(t, p.ConfirmedBy)
		assert.Equal(t, uint(10), *p.ConfirmedBy)
		assert.NotNil(t, p.ReleasedAt)

		w, err := f.wallets.GetByID(wallet.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(6_000_000), w.Balance)
		assert.Equal(t, int64(0), w.HoldBalance)
		assert.Equal(t, int64(6_000_000), w.TotalEarned)
		assert.True(t, f.notify.has("ESCROW_RELEASED"))
	})

	t.Run("double release fails and does not double-pay", func(t *testing.T) {
		err := f.svc.ConfirmAndRelease(phase.ID, 10, wallet.ID)
		assert.ErrorIs(t, err, domain.ErrAlreadyReleased)

		w, err := f.wallets.GetByID(wallet.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(6_000_000), w.Balance)
	})

	t.Run("ledger replay matches after the whole flow", func(t *testing.T) {
		w, err := f.wallets.GetByID(wallet.ID)
		require.NoError(t, err)
		balance, hold, err := f.wallets.ReplayBalances(wallet.ID)
		require.NoError(t, err)
		assert.Equal(t, w.Balance, balance)
		assert.Equal(t, w.HoldBalance, hold)
	})
}

func TestPhaseService_ConfirmRequiresEscrow(t *testing.T) {
	f := newPhaseFixture(t)
	phase := f.createPhase(t, 0)
	wallet, err := f.wallets.GetOrCreate(20)
	require.NoError(t, err)

	for _, status := range []string{domain.PhasePreparing, domain.PhaseReady, domain.PhaseInTransit, domain.PhaseDelivered} {
		_, err := f.svc.UpdateStatus(phase.ID, status, 20, StatusUpdate{})
		require.NoError(t, err)
	}

	err = f.svc.ConfirmAndRelease(phase.ID, 10, wallet.ID)
	assert.ErrorIs(t, err, domain.ErrNotEscrowed)
}

func TestPhaseService_UpcomingDeliveries(t *testing.T) {
	f := newPhaseFixture(t)
	soon := time.Now().Add(24 * time.Hour)
	later := time.Now().Add(10 * 24 * time.Hour)

	created, err := f.svc.CreatePhases(f.order.ID, []PhaseInput{
		{Name: "Tomorrow", ScheduledDate: &soon, Items: []PhaseItem{{ProductName: "Sand", Quantity: 1, UnitPrice: 1}}},
		{Name: "Next week", ScheduledDate: &later, Items: []PhaseItem{{ProductName: "Bricks", Quantity: 1, UnitPrice: 1}}},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)

	phases, err := f.svc.UpcomingDeliveries(3)
	require.NoError(t, err)
	require.Len(t, phases, 1)
	assert.Equal(t, "Tomorrow", phases[0].PhaseName)

	sent := f.svc.SendDeliveryReminders(3)
	assert.Equal(t, 1, sent)
	assert.True(t, f.notify.has("DELIVERY_REMINDER"))
}
