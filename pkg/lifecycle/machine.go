// Package lifecycle drives a load through its states. Each call reads the
// load, plans the transition against a looplab/fsm table, checks the load's
// invariants and commits with a conditional write on the status it read.
package lifecycle

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"medcourier/pkg/compliance"
	"medcourier/pkg/errs"
	"medcourier/pkg/logger"
	"medcourier/pkg/models"
	"medcourier/pkg/rate"
	"medcourier/storage"
)

const DriverQuoteTTL = 48 * time.Hour

type Machine struct {
	store storage.IStorage
	rates *rate.Engine
	gate  *compliance.Gate
	log   logger.ILogger
	now   func() time.Time
}

func NewMachine(store storage.IStorage, rates *rate.Engine, gate *compliance.Gate, log logger.ILogger, clock func() time.Time) *Machine {
	if clock == nil {
		clock = time.Now
	}
	return &Machine{store: store, rates: rates, gate: gate, log: log, now: clock}
}

// Outcome is the committed result of one action.
type Outcome struct {
	Load          *models.Load
	Event         *models.TrackingEvent
	Notifications []models.Notification
	Warnings      []string
}

type request struct {
	driverID  string
	vehicleID *string
	amount    *float64
	reason    string
	notes     string
	rule      *models.BillingRule
}

type plan struct {
	auth         models.AuthContext
	req          request
	now          time.Time
	prev         *models.Load
	next         *models.Load
	description  []string
	notify       []models.Notification
	warnings     []string
	driverStatus *storage.DriverStatusChange
}

func (p *plan) describe(s string) {
	if s != "" {
		p.description = append(p.description, s)
	}
}

func (p *plan) tell(kind models.NotificationKind, to models.Party, subject string, data map[string]string) {
	p.notify = append(p.notify, models.Notification{
		Kind:      kind,
		Recipient: to,
		LoadID:    p.next.ID,
		Subject:   subject,
		Data:      data,
		CreatedAt: p.now,
	})
}

func (p *plan) shipper() models.Party {
	return models.Party{Type: models.UserShipper, ID: p.prev.ShipperID}
}

func driverParty(id string) models.Party {
	return models.Party{Type: models.UserDriver, ID: id}
}

func (m *Machine) RequestQuote(ctx context.Context, auth models.AuthContext, loadID string) (*Outcome, error) {
	return m.apply(ctx, auth, loadID, ActionRequestQuote, request{})
}

// SendQuote prices the load. A non-nil override replaces the computed rate
// and must fall within the tier's plausible bounds.
func (m *Machine) SendQuote(ctx context.Context, auth models.AuthContext, loadID string, override *float64) (*Outcome, error) {
	return m.apply(ctx, auth, loadID, ActionSendQuote, request{amount: override})
}

func (m *Machine) AcceptQuote(ctx context.Context, auth models.AuthContext, loadID string) (*Outcome, error) {
	return m.apply(ctx, auth, loadID, ActionAcceptQuote, request{})
}

// AssignDriver schedules the load. An empty driverID keeps the driver already
// on the load.
func (m *Machine) AssignDriver(ctx context.Context, auth models.AuthContext, loadID, driverID string, vehicleID *string) (*Outcome, error) {
	return m.apply(ctx, auth, loadID, ActionAssignDriver, request{driverID: driverID, vehicleID: vehicleID})
}

func (m *Machine) DriverAccept(ctx context.Context, auth models.AuthContext, loadID string, vehicleID *string) (*Outcome, error) {
	return m.apply(ctx, auth, loadID, ActionDriverAccept, request{vehicleID: vehicleID})
}

func (m *Machine) Deny(ctx context.Context, auth models.AuthContext, loadID, reason, notes string) (*Outcome, error) {
	return m.apply(ctx, auth, loadID, ActionDeny, request{reason: reason, notes: notes})
}

func (m *Machine) ClaimForQuote(ctx context.Context, auth models.AuthContext, loadID string, vehicleID *string) (*Outcome, error) {
	return m.apply(ctx, auth, loadID, ActionClaimForQuote, request{driverID: auth.UserID, vehicleID: vehicleID})
}

func (m *Machine) SubmitDriverQuote(ctx context.Context, auth models.AuthContext, loadID string, amount float64) (*Outcome, error) {
	return m.apply(ctx, auth, loadID, ActionSubmitDriverQuote, request{amount: &amount})
}

func (m *Machine) ApproveDriverQuote(ctx context.Context, auth models.AuthContext, loadID string) (*Outcome, error) {
	return m.apply(ctx, auth, loadID, ActionApproveDriverQuote, request{})
}

func (m *Machine) RejectDriverQuote(ctx context.Context, auth models.AuthContext, loadID, reason string) (*Outcome, error) {
	return m.apply(ctx, auth, loadID, ActionRejectDriverQuote, request{reason: reason})
}

// ExpireDriverQuote is run by the sweeper as the system actor.
func (m *Machine) ExpireDriverQuote(ctx context.Context, loadID string) (*Outcome, error) {
	return m.apply(ctx, models.SystemActor(), loadID, ActionExpireDriverQuote, request{})
}

func (m *Machine) Release(ctx context.Context, auth models.AuthContext, loadID, reason string) (*Outcome, error) {
	return m.apply(ctx, auth, loadID, ActionRelease, request{reason: reason})
}

func (m *Machine) Pickup(ctx context.Context, auth models.AuthContext, loadID string) (*Outcome, error) {
	return m.apply(ctx, auth, loadID, ActionPickup, request{})
}

func (m *Machine) StartTransit(ctx context.Context, auth models.AuthContext, loadID string) (*Outcome, error) {
	return m.apply(ctx, auth, loadID, ActionStartTransit, request{})
}

func (m *Machine) Deliver(ctx context.Context, auth models.AuthContext, loadID string) (*Outcome, error) {
	return m.apply(ctx, auth, loadID, ActionDeliver, request{})
}

func (m *Machine) Complete(ctx context.Context, auth models.AuthContext, loadID string) (*Outcome, error) {
	return m.apply(ctx, auth, loadID, ActionComplete, request{})
}

// Cancel derives the billing rule from the current status when rule is nil.
func (m *Machine) Cancel(ctx context.Context, auth models.AuthContext, loadID, reason string, rule *models.BillingRule) (*Outcome, error) {
	return m.apply(ctx, auth, loadID, ActionCancel, request{reason: reason, rule: rule})
}

func (m *Machine) Restore(ctx context.Context, auth models.AuthContext, loadID string) (*Outcome, error) {
	return m.apply(ctx, auth, loadID, ActionRestore, request{})
}

func (m *Machine) RestoreDenied(ctx context.Context, auth models.AuthContext, loadID string) (*Outcome, error) {
	return m.apply(ctx, auth, loadID, ActionRestoreDenied, request{})
}

func (m *Machine) apply(ctx context.Context, auth models.AuthContext, loadID string, action Action, req request) (*Outcome, error) {
	load, err := m.store.Load().GetByID(ctx, loadID)
	if err != nil {
		return nil, err
	}

	event := string(action)
	if action == ActionRestore && load.DriverID != nil {
		event = eventRestoreRequested
	}
	t, ok := lookup(event)
	if !ok {
		return nil, errs.Validation(errs.CodeInvalidInput, "unknown action %q", action)
	}
	if !t.actors.permits(auth, load) {
		return nil, errs.Unauthorized(auth.UserID, "%s %s may not %s load %s", auth.UserType, auth.UserID, action, loadID)
	}

	p := &plan{auth: auth, req: req, now: m.now(), prev: load, next: load.Clone()}
	f := newFSM(load.Status, m.callbacks())
	if err := f.Event(ctx, event, p); err != nil {
		return nil, m.translate(err, t, load)
	}
	p.next.Status = models.LoadStatus(f.Current())
	p.next.UpdatedAt = p.now

	if err := checkInvariants(p.next); err != nil {
		m.log.Error("transition would break load invariants",
			logger.String("load_id", loadID),
			logger.String("action", string(action)),
			logger.Error(err),
		)
		return nil, err
	}

	ev := m.trackingEvent(p, t)
	err = m.store.Load().Transition(ctx, storage.TransitionWrite{
		Load:         p.next,
		Expected:     load.Status,
		Event:        ev,
		DriverStatus: p.driverStatus,
	})
	if err != nil {
		if errs.HasCode(err, errs.CodeStaleState) {
			m.log.Info("lost transition race",
				logger.String("load_id", loadID),
				logger.String("action", string(action)),
			)
		}
		return nil, err
	}

	m.log.Info("load transitioned",
		logger.String("load_id", loadID),
		logger.String("action", string(action)),
		logger.String("from", string(load.Status)),
		logger.String("to", string(p.next.Status)),
		logger.String("actor", auth.UserID),
	)

	return &Outcome{Load: p.next, Event: ev, Notifications: p.notify, Warnings: p.warnings}, nil
}

func (m *Machine) translate(err error, t transition, load *models.Load) error {
	var canceled fsm.CanceledError
	if errors.As(err, &canceled) && canceled.Err != nil {
		return canceled.Err
	}
	var invalid fsm.InvalidEventError
	if errors.As(err, &invalid) {
		return &errs.ValidationError{
			Code:     errs.CodeIllegalTransition,
			Reason:   "cannot " + string(t.action) + " load " + load.ID,
			Expected: statusStrings(t.src),
			Actual:   string(load.Status),
		}
	}
	return err
}

func (m *Machine) trackingEvent(p *plan, t transition) *models.TrackingEvent {
	return &models.TrackingEvent{
		ID:          uuid.NewString(),
		LoadID:      p.next.ID,
		Code:        t.code,
		Label:       t.label,
		Description: strings.Join(p.description, "; "),
		ActorID:     p.auth.UserID,
		ActorType:   p.auth.UserType,
		FromStatus:  p.prev.Status,
		ToStatus:    p.next.Status,
		CreatedAt:   p.now,
	}
}

// Acknowledge records that the shipper has seen a load a driver created on
// their behalf. It never changes the load's status.
func (m *Machine) Acknowledge(ctx context.Context, auth models.AuthContext, loadID string) (*Outcome, error) {
	load, err := m.store.Load().GetByID(ctx, loadID)
	if err != nil {
		return nil, err
	}
	if !owningShipper.permits(auth, load) {
		return nil, errs.Unauthorized(auth.UserID, "only the owning shipper may acknowledge load %s", loadID)
	}
	if !load.CreatedByDriver {
		return nil, errs.Validation(errs.CodeInvalidInput, "load %s was not created by a driver", loadID)
	}
	if load.Status.Terminal() {
		return nil, &errs.ValidationError{
			Code:   errs.CodeIllegalTransition,
			Reason: "cannot acknowledge closed load " + loadID,
			Actual: string(load.Status),
		}
	}

	now := m.now()
	ev := &models.TrackingEvent{
		ID:         uuid.NewString(),
		LoadID:     loadID,
		Code:       models.EventShipperAcknowledged,
		Label:      "Shipper acknowledged",
		ActorID:    auth.UserID,
		ActorType:  auth.UserType,
		FromStatus: load.Status,
		ToStatus:   load.Status,
		CreatedAt:  now,
	}
	if err := m.store.Load().AppendEvent(ctx, ev); err != nil {
		return nil, err
	}
	return &Outcome{Load: load, Event: ev}, nil
}

func validDistance(d float64) bool {
	return !math.IsNaN(d) && !math.IsInf(d, 0) && d >= 0
}

func positive(v float64) bool {
	return validDistance(v) && v > 0
}
