package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"buildmart/internal/domain"
	"buildmart/internal/models"
	"buildmart/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PhaseItem is one order line included in a delivery phase.
type PhaseItem struct {
	ProductID   uint   `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	Unit        string `json:"unit"`
}

// PhaseInput describes one phase when splitting an order into milestones.
type PhaseInput struct {
	Name           string
	Description    string
	ScheduledDate  *time.Time
	DepositPercent int // percentage of phase value required up front; 0 = full value
	Items          []PhaseItem
}

// StatusUpdate carries the tracking metadata attached while a phase moves
// through delivery: carrier and tracking number when it ships, proof of
// delivery and receiver signature when it arrives.
type StatusUpdate struct {
	CarrierName       string
	TrackingNumber    string
	DeliveryProof     string
	ReceiverName      string
	ReceiverSignature string
}

// PhaseService owns the delivery-phase state machine and its coupling to
// the wallet ledger. Splitting "customer paid" (ProcessDeposit) from "funds
// escrowed" (EscrowPhase) from "funds released" (ConfirmAndRelease) gives
// three auditable checkpoints; a failure at any step leaves the phase in a
// recoverable state rather than a half-applied money movement.
type PhaseService struct {
	db      *gorm.DB
	phases  *repository.PhaseRepository
	orders  *repository.OrderRepository
	wallets *repository.WalletRepository
	audit   AuditRecorder
	notify  Notifier
	log     *zap.Logger
}

func NewPhaseService(
	db *gorm.DB,
	phases *repository.PhaseRepository,
	orders *repository.OrderRepository,
	wallets *repository.WalletRepository,
	audit AuditRecorder,
	notify Notifier,
	log *zap.Logger,
) *PhaseService {
	return &PhaseService{db: db, phases: phases, orders: orders, wallets: wallets, audit: audit, notify: notify, log: log}
}

// CreatePhases splits an order into numbered delivery phases. Phase value is
// the sum of its item lines; the required deposit is a percentage of that.
func (s *PhaseService) CreatePhases(orderID uint, inputs []PhaseInput) ([]models.DeliveryPhase, error) {
	if _, err := s.orders.GetByID(orderID); err != nil {
		return nil, err
	}
	created := make([]models.DeliveryPhase, 0, len(inputs))
	for i, in := range inputs {
		var phaseValue int64
		for _, item := range in.Items {
			phaseValue += item.Quantity * item.UnitPrice
		}
		depositRequired := phaseValue
		if in.DepositPercent > 0 && in.DepositPercent < 100 {
			depositRequired = phaseValue * int64(in.DepositPercent) / 100
		}
		itemsJSON, _ := json.Marshal(in.Items)
		phase := models.DeliveryPhase{
			OrderID:         orderID,
			PhaseNumber:     i + 1,
			PhaseName:       in.Name,
			Description:     in.Description,
			Items:           string(itemsJSON),
			ItemCount:       len(in.Items),
			Status:          domain.PhasePending,
			PaymentStatus:   domain.PhaseUnpaid,
			PhaseValue:      phaseValue,
			DepositRequired: depositRequired,
			ScheduledDate:   in.ScheduledDate,
		}
		if err := s.phases.Create(&phase); err != nil {
			return created, err
		}
		created = append(created, phase)
	}
	return created, nil
}

func (s *PhaseService) GetPhase(phaseID uint) (*models.DeliveryPhase, error) {
	return s.phases.GetByID(phaseID)
}

func (s *PhaseService) ListOrderPhases(orderID uint) ([]models.DeliveryPhase, error) {
	return s.phases.ListByOrderID(orderID)
}

func (s *PhaseService) UpcomingDeliveries(days int) ([]models.DeliveryPhase, error) {
	return s.phases.Upcoming(days)
}

// SendDeliveryReminders notifies each order's customer about phases scheduled
// within the given horizon. Returns the number of reminders sent.
func (s *PhaseService) SendDeliveryReminders(days int) int {
	phases, err := s.phases.Upcoming(days)
	if err != nil {
		s.log.Error("upcoming deliveries query failed", zap.Error(err))
		return 0
	}
	sent := 0
	for _, p := range phases {
		order, err := s.orders.GetByID(p.OrderID)
		if err != nil {
			continue
		}
		date := ""
		if p.ScheduledDate != nil {
			date = p.ScheduledDate.Format("2006-01-02")
		}
		s.notify.Notify(order.CustomerID, "DELIVERY_REMINDER", "Upcoming delivery",
			fmt.Sprintf("Delivery phase %d (%s) is scheduled for %s.", p.PhaseNumber, p.PhaseName, date),
			domain.PriorityMedium, map[string]interface{}{"phase_id": p.ID, "order_id": p.OrderID})
		sent++
	}
	return sent
}

// UpdateStatus validates the transition edge and attaches tracking metadata
// for the target status. CONFIRMED is rejected here: it is only reachable
// through ConfirmAndRelease.
func (s *PhaseService) UpdateStatus(phaseID uint, newStatus string, actorID uint, meta StatusUpdate) (*models.DeliveryPhase, error) {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var p models.DeliveryPhase
		if err := tx.First(&p, phaseID).Error; err != nil {
			return err
		}
		if !domain.CanTransition(p.Status, newStatus) {
			return domain.ErrInvalidTransition
		}

		updates := map[string]interface{}{"status": newStatus}
		if meta.CarrierName != "" {
			updates["carrier_name"] = meta.CarrierName
		}
		if meta.TrackingNumber != "" {
			updates["tracking_number"] = meta.TrackingNumber
		}
		if meta.DeliveryProof != "" {
			updates["delivery_proof"] = meta.DeliveryProof
		}
		if meta.ReceiverName != "" {
			updates["receiver_name"] = meta.ReceiverName
		}
		if meta.ReceiverSignature != "" {
			updates["receiver_signature"] = meta.ReceiverSignature
		}
		if newStatus == domain.PhaseDelivered {
			updates["actual_date"] = time.Now()
		}

		// Guard on the status we validated against, so a concurrent
		// transition loses instead of skipping an edge.
		res := tx.Model(&models.DeliveryPhase{}).
			Where("id = ? AND status = ?", phaseID, p.Status).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	phase, err := s.phases.GetByID(phaseID)
	if err != nil {
		return nil, err
	}

	s.audit.Record(&actorID, "PHASE_STATUS_UPDATE", "DeliveryPhase", phaseID,
		map[string]interface{}{"new_status": newStatus}, domain.SeverityInfo)
	return phase, nil
}

// ProcessDeposit records that the customer has paid toward this phase. It
// does not create a wallet transaction; it authorizes a subsequent
// EscrowPhase call.
func (s *PhaseService) ProcessDeposit(phaseID uint, paidAmount int64, paymentMethod string) (*models.DeliveryPhase, error) {
	if paidAmount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var p models.DeliveryPhase
		if err := tx.First(&p, phaseID).Error; err != nil {
			return err
		}
		if p.PaymentStatus == domain.PhaseEscrowed || p.PaymentStatus == domain.PhaseReleased {
			return domain.ErrAlreadyEscrowed
		}
		if paidAmount < p.DepositRequired {
			return domain.ErrInsufficientDeposit
		}
		res := tx.Model(&models.DeliveryPhase{}).
			Where("id = ? AND payment_status IN ?", phaseID,
				[]string{domain.PhaseUnpaid, domain.PhaseDepositPaid}).
			Updates(map[string]interface{}{
				"paid_amount":     paidAmount,
				"payment_method":  paymentMethod,
				"payment_status":  domain.PhaseDepositPaid,
				"deposit_paid_at": time.Now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrAlreadyEscrowed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	phase, err := s.phases.GetByID(phaseID)
	if err != nil {
		return nil, err
	}

	s.audit.Record(nil, "PHASE_DEPOSIT", "DeliveryPhase", phaseID,
		map[string]interface{}{"paid_amount": paidAmount, "method": paymentMethod}, domain.SeverityInfo)
	s.notifyOrderCustomer(phase, "PAYMENT_CONFIRMED", "Payment received",
		"Your payment for "+phase.PhaseName+" has been recorded.", domain.PriorityMedium)
	return phase, nil
}

// EscrowPhase moves the phase's paid amount into the recipient wallet's
// hold balance. Idempotent per phase: a second call fails with
// ErrAlreadyEscrowed instead of double-crediting the hold.
func (s *PhaseService) EscrowPhase(phaseID, walletID uint) error {
	var escrowed int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var p models.DeliveryPhase
		if err := tx.First(&p, phaseID).Error; err != nil {
			return err
		}
		switch p.PaymentStatus {
		case domain.PhaseEscrowed, domain.PhaseReleased:
			return domain.ErrAlreadyEscrowed
		case domain.PhaseUnpaid:
			// nothing paid yet, so there is nothing to escrow
			return domain.ErrInvalidAmount
		}

		res := tx.Model(&models.DeliveryPhase{}).
			Where("id = ? AND payment_status = ?", phaseID, domain.PhaseDepositPaid).
			Updates(map[string]interface{}{
				"payment_status":      domain.PhaseEscrowed,
				"escrowed_amount":     p.PaidAmount,
				"recipient_wallet_id": walletID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrAlreadyEscrowed
		}

		_, err := s.wallets.WithTx(tx).EscrowHold(walletID, p.PaidAmount, phaseID)
		if err != nil {
			return err
		}
		escrowed = p.PaidAmount
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.Record(nil, "PHASE_ESCROW", "DeliveryPhase", phaseID,
		map[string]interface{}{"wallet_id": walletID, "amount": escrowed}, domain.SeverityInfo)
	if owner, oerr := s.walletOwner(walletID); oerr == nil {
		s.notify.Notify(owner, "ESCROW_FUNDED", "Funds held in escrow",
			"Payment for a delivery phase is now held in escrow and will be released on confirmed delivery.",
			domain.PriorityMedium, map[string]interface{}{"phase_id": phaseID, "amount": escrowed})
	}
	return nil
}

// ConfirmAndRelease is the terminal happy-path operation: the customer
// confirms delivery and the escrowed amount moves to the recipient's
// withdrawable balance. The wallet release and the phase transition commit
// together; if the release fails the phase stays DELIVERED.
func (s *PhaseService) ConfirmAndRelease(phaseID, confirmedBy, recipientWalletID uint) error {
	var released int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var p models.DeliveryPhase
		if err := tx.First(&p, phaseID).Error; err != nil {
			return err
		}
		if p.Status == domain.PhaseConfirmed || p.PaymentStatus == domain.PhaseReleased {
			return domain.ErrAlreadyReleased
		}
		if p.Status != domain.PhaseDelivered {
			return domain.ErrNotDelivered
		}
		if p.PaymentStatus != domain.PhaseEscrowed || p.EscrowedAmount <= 0 {
			return domain.ErrNotEscrowed
		}

		now := time.Now()
		res := tx.Model(&models.DeliveryPhase{}).
			Where("id = ? AND status = ? AND payment_status = ?",
				phaseID, domain.PhaseDelivered, domain.PhaseEscrowed).
			Updates(map[string]interface{}{
				"status":         domain.PhaseConfirmed,
				"payment_status": domain.PhaseReleased,
				"confirmed_by":   confirmedBy,
				"confirmed_at":   now,
				"released_at":    now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrAlreadyReleased
		}

		_, err := s.wallets.WithTx(tx).ReleaseEscrow(recipientWalletID, p.EscrowedAmount, phaseID)
		if err != nil {
			return err
		}
		released = p.EscrowedAmount
		return nil
	})
	if err != nil {
		return err
	}

	s.audit.Record(&confirmedBy, "PHASE_CONFIRM_RELEASE", "DeliveryPhase", phaseID,
		map[string]interface{}{"wallet_id": recipientWalletID, "amount": released}, domain.SeverityInfo)
	if owner, oerr := s.walletOwner(recipientWalletID); oerr == nil {
		s.notify.Notify(owner, "ESCROW_RELEASED", "Delivery confirmed, funds released",
			"The customer confirmed delivery; escrowed funds are now withdrawable.",
			domain.PriorityHigh, map[string]interface{}{"phase_id": phaseID, "amount": released})
	}
	return nil
}

func (s *PhaseService) walletOwner(walletID uint) (uint, error) {
	w, err := s.wallets.GetByID(walletID)
	if err != nil {
		return 0, err
	}
	return w.OwnerID, nil
}

func (s *PhaseService) notifyOrderCustomer(phase *models.DeliveryPhase, notifType, title, body, priority string) {
	order, err := s.orders.GetByID(phase.OrderID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn("notify: order lookup failed", zap.Uint("order_id", phase.OrderID), zap.Error(err))
		}
		return
	}
	s.notify.Notify(order.CustomerID, notifType, title, body, priority,
		map[string]interface{}{"phase_id": phase.ID, "order_id": order.ID})
}
