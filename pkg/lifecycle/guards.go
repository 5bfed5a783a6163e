package lifecycle

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"

	"medcourier/pkg/errs"
	"medcourier/pkg/fleet"
	"medcourier/pkg/models"
	"medcourier/storage"
)

type guard func(ctx context.Context, p *plan) error

// wrap runs g as a before_<event> callback. A guard error cancels the
// transition and surfaces unchanged from fsm.Event as CanceledError.Err.
func wrap(g guard) fsm.Callback {
	return func(ctx context.Context, e *fsm.Event) {
		p := e.Args[0].(*plan)
		if err := g(ctx, p); err != nil {
			e.Cancel(err)
		}
	}
}

func (m *Machine) callbacks() fsm.Callbacks {
	guards := map[string]guard{
		string(ActionRequestQuote):       m.requestQuote,
		string(ActionSendQuote):          m.sendQuote,
		string(ActionAcceptQuote):        m.acceptQuote,
		string(ActionAssignDriver):       m.assignDriver,
		string(ActionDriverAccept):       m.driverAccept,
		string(ActionDeny):               m.deny,
		string(ActionClaimForQuote):      m.claimForQuote,
		string(ActionSubmitDriverQuote):  m.submitDriverQuote,
		string(ActionApproveDriverQuote): m.approveDriverQuote,
		string(ActionRejectDriverQuote):  m.rejectDriverQuote,
		string(ActionExpireDriverQuote):  m.expireDriverQuote,
		string(ActionRelease):            m.release,
		string(ActionPickup):             m.pickup,
		string(ActionStartTransit):       m.startTransit,
		string(ActionDeliver):            m.deliver,
		string(ActionComplete):           m.complete,
		string(ActionCancel):             m.cancel,
		string(ActionRestore):            m.restore,
		eventRestoreRequested:            m.restore,
		string(ActionRestoreDenied):      m.restoreDenied,
	}
	cb := make(fsm.Callbacks, len(guards))
	for event, g := range guards {
		cb["before_"+event] = wrap(g)
	}
	return cb
}

func (m *Machine) requestQuote(ctx context.Context, p *plan) error {
	p.describe(p.req.reason)
	return nil
}

func (m *Machine) sendQuote(ctx context.Context, p *plan) error {
	l := p.next
	var amount float64
	adjusted := false

	if p.req.amount != nil {
		if err := m.rates.CheckBounds(*p.req.amount, l.DistanceMiles, l.ServiceType); err != nil {
			return err
		}
		amount = *p.req.amount
		p.describe(fmt.Sprintf("manual quote %.2f", amount))
	} else {
		q, err := m.rates.Quote(l.DistanceMiles, l.ServiceType, l.ReadyTime, l.DeliveryDeadline)
		if err != nil {
			return err
		}
		amount = q.TotalRate
		p.describe(fmt.Sprintf("%s %.1f mi: base %.2f + after hours %.2f = %.2f", q.Tier, q.DistanceMiles, q.BaseRate, q.AfterHoursSurcharge, q.TotalRate))
		if q.DeadlineReachable != nil && !*q.DeadlineReachable {
			p.warnings = append(p.warnings, "delivery deadline is not reachable at the average speed")
		}

		if l.DriverID != nil {
			d, err := m.store.Driver().GetByID(ctx, *l.DriverID)
			if err != nil {
				return err
			}
			adj := m.rates.ApplyMinimum(amount, l.DistanceMiles, d.MinimumRatePerMile)
			if adj.RateAdjustedForMinimum {
				p.describe(fmt.Sprintf("raised to driver minimum %.2f", adj.Rate))
			}
			amount, adjusted = adj.Rate, adj.RateAdjustedForMinimum
		}
	}

	l.QuoteAmount = &amount
	l.RateAdjustedForMinimum = adjusted
	l.QuotedAt = &p.now
	p.tell(models.NotifyQuoteSent, p.shipper(), fmt.Sprintf("Quote for load %s: $%.2f", l.ID, amount),
		map[string]string{"amount": fmt.Sprintf("%.2f", amount)})
	return nil
}

func (m *Machine) acceptQuote(ctx context.Context, p *plan) error {
	l := p.next
	if l.QuoteAmount == nil {
		return errs.Validation(errs.CodeMissingData, "load %s has no quote to accept", l.ID)
	}
	l.QuoteAcceptedAt = &p.now
	p.describe(fmt.Sprintf("accepted %.2f", *l.QuoteAmount))
	if l.DriverID != nil {
		p.tell(models.NotifyQuoteAccepted, driverParty(*l.DriverID), fmt.Sprintf("Shipper accepted the quote for load %s", l.ID), nil)
	}
	return nil
}

// driverFor loads driverID and checks that it can take work.
func (m *Machine) driverFor(ctx context.Context, driverID string) (*models.Driver, error) {
	d, err := m.store.Driver().GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if !d.Assignable() {
		return nil, errs.Validation(errs.CodeDriverUnavailable, "driver %s is %s", d.ID, d.Status)
	}
	return d, nil
}

func (m *Machine) vehicleFor(ctx context.Context, vehicleID, driverID string) error {
	v, err := m.store.Vehicle().GetByID(ctx, vehicleID)
	if err != nil {
		return err
	}
	if !v.IsActive {
		return errs.Validation(errs.CodeInvalidInput, "vehicle %s is inactive", v.ID)
	}
	if v.DriverID != driverID {
		return errs.Validation(errs.CodeInvalidInput, "vehicle %s does not belong to driver %s", v.ID, driverID)
	}
	return nil
}

// attach puts driverID and an optional vehicle on the load.
func (m *Machine) attach(ctx context.Context, p *plan, driverID string) error {
	if _, err := m.driverFor(ctx, driverID); err != nil {
		return err
	}
	l := p.next
	vehicleID := l.VehicleID
	if l.DriverID != nil && *l.DriverID != driverID {
		vehicleID = nil
	}
	if p.req.vehicleID != nil {
		vehicleID = p.req.vehicleID
	}
	if vehicleID != nil {
		if err := m.vehicleFor(ctx, *vehicleID, driverID); err != nil {
			return err
		}
	}
	l.DriverID = &driverID
	l.VehicleID = vehicleID
	return nil
}

func (m *Machine) assignDriver(ctx context.Context, p *plan) error {
	driverID := p.req.driverID
	if driverID == "" && p.next.DriverID != nil {
		driverID = *p.next.DriverID
	}
	if driverID == "" {
		return errs.Validation(errs.CodeMissingData, "a driver is required to schedule load %s", p.next.ID)
	}
	if err := m.attach(ctx, p, driverID); err != nil {
		return err
	}
	p.next.AssignedAt = &p.now
	p.describe("assigned to " + driverID)
	p.tell(models.NotifyDriverAssigned, driverParty(driverID), fmt.Sprintf("You have been assigned load %s", p.next.ID), pickupData(p.next))
	return nil
}

func (m *Machine) driverAccept(ctx context.Context, p *plan) error {
	if err := m.attach(ctx, p, p.auth.UserID); err != nil {
		return err
	}
	p.next.AcceptedByDriverAt = &p.now
	if p.next.AssignedAt == nil {
		p.next.AssignedAt = &p.now
	}
	return nil
}

func (m *Machine) deny(ctx context.Context, p *plan) error {
	if p.req.reason == "" {
		return errs.Validation(errs.CodeInvalidInput, "a denial reason is required")
	}
	l := p.next
	l.DriverID = nil
	l.VehicleID = nil
	l.AssignedAt = nil
	l.AcceptedByDriverAt = nil
	l.DenialReason = &p.req.reason
	if p.req.notes != "" {
		l.DenialNotes = &p.req.notes
	}
	l.DriverDeniedAt = &p.now
	p.describe(p.req.reason)
	p.tell(models.NotifyLoadDenied, p.shipper(), fmt.Sprintf("Driver declined load %s", l.ID),
		map[string]string{"reason": p.req.reason})
	return nil
}

func (m *Machine) claimForQuote(ctx context.Context, p *plan) error {
	if err := m.attach(ctx, p, p.auth.UserID); err != nil {
		return err
	}
	p.next.AssignedAt = &p.now
	p.describe("claimed by " + p.auth.UserID)
	return nil
}

func (m *Machine) submitDriverQuote(ctx context.Context, p *plan) error {
	l := p.next
	if p.req.amount == nil || !positive(*p.req.amount) {
		return errs.Validation(errs.CodeInvalidInput, "driver quote must be a positive amount")
	}
	amount := *p.req.amount
	if err := m.rates.CheckBounds(amount, l.DistanceMiles, l.ServiceType); err != nil {
		return err
	}
	expires := p.now.Add(DriverQuoteTTL)
	l.DriverQuoteAmount = &amount
	l.DriverQuoteExpiresAt = &expires
	p.describe(fmt.Sprintf("driver quote %.2f, expires %s", amount, expires.Format("2006-01-02 15:04 MST")))
	p.tell(models.NotifyQuoteSubmitted, p.shipper(), fmt.Sprintf("Driver quoted $%.2f for load %s", amount, l.ID),
		map[string]string{"amount": fmt.Sprintf("%.2f", amount), "expires_at": expires.Format("2006-01-02T15:04:05Z07:00")})
	return nil
}

func (m *Machine) approveDriverQuote(ctx context.Context, p *plan) error {
	l := p.next
	if l.DriverQuoteAmount == nil {
		return errs.Validation(errs.CodeMissingData, "load %s has no driver quote", l.ID)
	}
	if l.DriverQuoteExpiresAt != nil && !l.DriverQuoteExpiresAt.After(p.now) {
		return errs.Validation(errs.CodeInvalidInput, "driver quote on load %s expired", l.ID)
	}
	amount := *l.DriverQuoteAmount
	l.QuoteAmount = &amount
	l.RateAdjustedForMinimum = false
	l.QuotedAt = &p.now
	l.QuoteAcceptedAt = &p.now
	l.AcceptedByDriverAt = &p.now
	l.DriverQuoteExpiresAt = nil
	p.describe(fmt.Sprintf("approved %.2f", amount))
	p.tell(models.NotifyDriverQuoteApproved, driverParty(*l.DriverID), fmt.Sprintf("Your quote for load %s was approved", l.ID), pickupData(l))
	return nil
}

// rollback returns a driver-quoted load to an unassigned, unquoted NEW.
func rollback(l *models.Load) {
	l.DriverID = nil
	l.VehicleID = nil
	l.QuoteAmount = nil
	l.DriverQuoteAmount = nil
	l.DriverQuoteExpiresAt = nil
	l.QuotedAt = nil
	l.RateAdjustedForMinimum = false
	l.AssignedAt = nil
	l.AcceptedByDriverAt = nil
	l.QuoteAcceptedAt = nil
}

func (m *Machine) rejectDriverQuote(ctx context.Context, p *plan) error {
	driverID := *p.prev.DriverID
	rollback(p.next)
	p.describe(p.req.reason)
	p.tell(models.NotifyDriverQuoteRejected, driverParty(driverID), fmt.Sprintf("Your quote for load %s was declined", p.next.ID),
		map[string]string{"reason": p.req.reason})
	return nil
}

func (m *Machine) expireDriverQuote(ctx context.Context, p *plan) error {
	exp := p.prev.DriverQuoteExpiresAt
	if exp == nil || exp.After(p.now) {
		return errs.Validation(errs.CodeInvalidInput, "driver quote on load %s has not expired", p.prev.ID)
	}
	driverID := *p.prev.DriverID
	rollback(p.next)
	p.describe("no response before " + exp.Format("2006-01-02 15:04 MST"))
	p.tell(models.NotifyDriverQuoteRejected, driverParty(driverID), fmt.Sprintf("Your quote for load %s expired", p.next.ID), nil)
	return nil
}

// driverCommitted reports whether the assigned driver has taken the load on.
func driverCommitted(s models.LoadStatus) bool {
	switch s {
	case models.StatusScheduled, models.StatusPickedUp, models.StatusInTransit:
		return true
	}
	return false
}

func (m *Machine) release(ctx context.Context, p *plan) error {
	l := p.next
	p.describe(fmt.Sprintf("released by %s", *l.DriverID))
	p.describe(p.req.reason)
	if p.prev.Status != models.StatusScheduled {
		// Withdrawing a quote claim undoes it entirely.
		rollback(l)
		return nil
	}
	l.DriverID = nil
	l.VehicleID = nil
	l.AssignedAt = nil
	l.AcceptedByDriverAt = nil
	l.DriverQuoteAmount = nil
	return nil
}

// custody loads the driver and vehicle as stored now and runs the compliance
// gate for target. Warnings go into the outcome and the event description.
func (m *Machine) custody(ctx context.Context, p *plan, target models.LoadStatus) error {
	l := p.next
	d, err := m.store.Driver().GetByID(ctx, *l.DriverID)
	if err != nil {
		return err
	}
	var v *models.Vehicle
	if l.VehicleID != nil {
		v, err = m.store.Vehicle().GetByID(ctx, *l.VehicleID)
		if err != nil && !errs.IsNotFound(err) {
			return err
		}
	}
	res, err := m.gate.Enforce(l, d, v, target)
	if err != nil {
		return err
	}
	p.warnings = append(p.warnings, res.Warnings...)
	for _, w := range res.Warnings {
		p.describe("warning: " + w)
	}
	return nil
}

func (m *Machine) pickup(ctx context.Context, p *plan) error {
	if err := m.custody(ctx, p, models.StatusPickedUp); err != nil {
		return err
	}
	p.next.PickedUpAt = &p.now
	p.driverStatus = &storage.DriverStatusChange{DriverID: *p.next.DriverID, Status: models.DriverOnRoute}
	p.tell(models.NotifyLoadPickedUp, p.shipper(), fmt.Sprintf("Load %s has been picked up", p.next.ID), nil)
	return nil
}

func (m *Machine) startTransit(ctx context.Context, p *plan) error {
	return nil
}

func (m *Machine) deliver(ctx context.Context, p *plan) error {
	if err := m.custody(ctx, p, models.StatusDelivered); err != nil {
		return err
	}
	p.next.DeliveredAt = &p.now
	p.driverStatus = &storage.DriverStatusChange{DriverID: *p.next.DriverID, Status: models.DriverAvailable}
	p.tell(models.NotifyLoadDelivered, p.shipper(), fmt.Sprintf("Load %s has been delivered", p.next.ID), nil)
	return nil
}

func (m *Machine) complete(ctx context.Context, p *plan) error {
	l := p.next
	d, err := m.store.Driver().GetByID(ctx, *l.DriverID)
	if err != nil {
		return err
	}
	payee, err := fleet.ResolvePayee(d)
	if err != nil {
		return err
	}
	pay := l.DriverQuoteAmount
	if pay == nil {
		pay = l.QuoteAmount
	}
	if pay == nil {
		return errs.Validation(errs.CodeMissingData, "load %s has no agreed amount to settle", l.ID)
	}
	amount := *pay
	l.PayeeType = &payee.Type
	l.PayeeID = &payee.ID
	l.DriverPayAmount = &amount
	l.CompletedAt = &p.now
	p.describe(fmt.Sprintf("pay %.2f to %s %s", amount, payee.Type, payee.ID))
	return nil
}

// BillingFor is the cancellation billing rule applied when the caller does
// not choose one.
func BillingFor(status models.LoadStatus) models.BillingRule {
	switch status {
	case models.StatusScheduled:
		return models.BillingCancellationFee
	case models.StatusPickedUp, models.StatusInTransit:
		return models.BillingFullCharge
	default:
		return models.BillingNoCharge
	}
}

func (m *Machine) cancel(ctx context.Context, p *plan) error {
	if p.auth.UserType == models.UserDriver && !driverCommitted(p.prev.Status) {
		return errs.Unauthorized(p.auth.UserID, "drivers may only cancel loads they accepted; release a quote claim instead")
	}
	rule := BillingFor(p.prev.Status)
	if p.req.rule != nil {
		if !p.req.rule.Valid() {
			return errs.Validation(errs.CodeInvalidInput, "unknown billing rule %q", *p.req.rule)
		}
		rule = *p.req.rule
	}

	l := p.next
	by := p.auth.UserType
	l.CancelledAt = &p.now
	l.CancelledBy = &by
	l.CancellationBillingRule = &rule
	if p.req.reason != "" {
		l.CancellationReason = &p.req.reason
	}
	if p.prev.Status == models.StatusDriverQuotePending || p.prev.Status == models.StatusDriverQuoteSubmitted {
		l.DriverQuoteAmount = nil
		l.DriverQuoteExpiresAt = nil
	}
	if l.DriverID != nil && (p.prev.Status == models.StatusPickedUp || p.prev.Status == models.StatusInTransit) {
		p.driverStatus = &storage.DriverStatusChange{DriverID: *l.DriverID, Status: models.DriverAvailable}
	}

	p.describe(fmt.Sprintf("billing %s", rule))
	p.describe(p.req.reason)
	data := map[string]string{"billing_rule": string(rule), "reason": p.req.reason}
	subject := fmt.Sprintf("Load %s was cancelled", l.ID)
	p.tell(models.NotifyLoadCancelled, p.shipper(), subject, data)
	if l.DriverID != nil {
		p.tell(models.NotifyLoadCancelled, driverParty(*l.DriverID), subject, data)
	}
	return nil
}

func (m *Machine) restore(ctx context.Context, p *plan) error {
	l := p.next
	l.CancelledAt = nil
	l.CancelledBy = nil
	l.CancellationBillingRule = nil
	l.CancellationReason = nil
	l.AcceptedByDriverAt = nil
	l.PickedUpAt = nil

	subject := fmt.Sprintf("Load %s was restored", l.ID)
	p.tell(models.NotifyLoadRestored, p.shipper(), subject, nil)
	if l.DriverID != nil {
		p.describe("awaiting driver " + *l.DriverID)
		p.tell(models.NotifyLoadRestored, driverParty(*l.DriverID), subject, nil)
	}
	return nil
}

func (m *Machine) restoreDenied(ctx context.Context, p *plan) error {
	l := p.next
	l.DenialReason = nil
	l.DenialNotes = nil
	l.DriverDeniedAt = nil
	p.tell(models.NotifyLoadRestored, p.shipper(), fmt.Sprintf("Load %s was restored", l.ID), nil)
	return nil
}

func pickupData(l *models.Load) map[string]string {
	data := map[string]string{
		"pickup_facility_id":  l.PickupFacilityID,
		"dropoff_facility_id": l.DropoffFacilityID,
		"service_type":        l.ServiceType,
	}
	if l.ReadyTime != nil {
		data["ready_time"] = l.ReadyTime.Format("2006-01-02T15:04:05Z07:00")
	}
	if l.DeliveryDeadline != nil {
		data["delivery_deadline"] = l.DeliveryDeadline.Format("2006-01-02T15:04:05Z07:00")
	}
	return data
}
