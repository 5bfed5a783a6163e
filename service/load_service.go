package service

import (
	"context"

	"medcourier/pkg/errs"
	"medcourier/pkg/lifecycle"
	"medcourier/pkg/logger"
	"medcourier/pkg/metrics"
	"medcourier/pkg/models"
	"medcourier/pkg/notify"
	"medcourier/storage"
)

// Command is one lifecycle action requested by a caller. Only the fields the
// action uses are read.
type Command struct {
	Action    lifecycle.Action    `json:"action"`
	LoadID    string              `json:"load_id"`
	DriverID  string              `json:"driver_id,omitempty"`
	VehicleID *string             `json:"vehicle_id,omitempty"`
	Amount    *float64            `json:"amount,omitempty"`
	Reason    string              `json:"reason,omitempty"`
	Notes     string              `json:"notes,omitempty"`
	Rule      *models.BillingRule `json:"billing_rule,omitempty"`
}

type LoadService interface {
	Create(ctx context.Context, auth models.AuthContext, in lifecycle.NewLoad) (*lifecycle.Outcome, error)
	Apply(ctx context.Context, auth models.AuthContext, cmd Command) (*lifecycle.Outcome, error)
	ExpireDriverQuote(ctx context.Context, loadID string) (*lifecycle.Outcome, error)
	GetByID(ctx context.Context, id string) (*models.Load, error)
	Events(ctx context.Context, id string) ([]*models.TrackingEvent, error)
	ForDriver(ctx context.Context, driverID string, limit int) ([]*models.Load, error)
	// Open lists loads in NEW that drivers may claim for a quote.
	Open(ctx context.Context, limit int) ([]*models.Load, error)
	// Wait blocks until notifications already handed off have been delivered.
	Wait()
}

type loadService struct {
	stg        storage.ILoadStorage
	machine    *lifecycle.Machine
	dispatcher *notify.Dispatcher
	log        logger.ILogger
}

func NewLoadService(stg storage.IStorage, machine *lifecycle.Machine, dispatcher *notify.Dispatcher, log logger.ILogger) LoadService {
	return &loadService{
		stg:        stg.Load(),
		machine:    machine,
		dispatcher: dispatcher,
		log:        log,
	}
}

func (s *loadService) Create(ctx context.Context, auth models.AuthContext, in lifecycle.NewLoad) (*lifecycle.Outcome, error) {
	out, err := s.machine.Create(ctx, auth, in)
	if err != nil {
		return nil, err
	}
	metrics.LoadsCreatedTotal.WithLabelValues(string(out.Load.Status)).Inc()
	s.dispatcher.Dispatch(ctx, out.Notifications)
	return out, nil
}

func (s *loadService) Apply(ctx context.Context, auth models.AuthContext, cmd Command) (*lifecycle.Outcome, error) {
	out, err := s.run(ctx, auth, cmd)
	s.record(cmd.Action, out, err)
	if err != nil {
		return nil, err
	}
	s.dispatcher.Dispatch(ctx, out.Notifications)
	return out, nil
}

func (s *loadService) run(ctx context.Context, auth models.AuthContext, cmd Command) (*lifecycle.Outcome, error) {
	m := s.machine
	switch cmd.Action {
	case lifecycle.ActionRequestQuote:
		return m.RequestQuote(ctx, auth, cmd.LoadID)
	case lifecycle.ActionSendQuote:
		return m.SendQuote(ctx, auth, cmd.LoadID, cmd.Amount)
	case lifecycle.ActionAcceptQuote:
		return m.AcceptQuote(ctx, auth, cmd.LoadID)
	case lifecycle.ActionAssignDriver:
		return m.AssignDriver(ctx, auth, cmd.LoadID, cmd.DriverID, cmd.VehicleID)
	case lifecycle.ActionDriverAccept:
		return m.DriverAccept(ctx, auth, cmd.LoadID, cmd.VehicleID)
	case lifecycle.ActionDeny:
		return m.Deny(ctx, auth, cmd.LoadID, cmd.Reason, cmd.Notes)
	case lifecycle.ActionClaimForQuote:
		return m.ClaimForQuote(ctx, auth, cmd.LoadID, cmd.VehicleID)
	case lifecycle.ActionSubmitDriverQuote:
		if cmd.Amount == nil {
			return nil, errs.Validation(errs.CodeInvalidInput, "an amount is required")
		}
		return m.SubmitDriverQuote(ctx, auth, cmd.LoadID, *cmd.Amount)
	case lifecycle.ActionApproveDriverQuote:
		return m.ApproveDriverQuote(ctx, auth, cmd.LoadID)
	case lifecycle.ActionRejectDriverQuote:
		return m.RejectDriverQuote(ctx, auth, cmd.LoadID, cmd.Reason)
	case lifecycle.ActionExpireDriverQuote:
		if auth.UserType != models.UserSystem {
			return nil, errs.Unauthorized(auth.UserID, "only the system expires driver quotes")
		}
		return m.ExpireDriverQuote(ctx, cmd.LoadID)
	case lifecycle.ActionRelease:
		return m.Release(ctx, auth, cmd.LoadID, cmd.Reason)
	case lifecycle.ActionPickup:
		return m.Pickup(ctx, auth, cmd.LoadID)
	case lifecycle.ActionStartTransit:
		return m.StartTransit(ctx, auth, cmd.LoadID)
	case lifecycle.ActionDeliver:
		return m.Deliver(ctx, auth, cmd.LoadID)
	case lifecycle.ActionComplete:
		return m.Complete(ctx, auth, cmd.LoadID)
	case lifecycle.ActionCancel:
		return m.Cancel(ctx, auth, cmd.LoadID, cmd.Reason, cmd.Rule)
	case lifecycle.ActionRestore:
		return m.Restore(ctx, auth, cmd.LoadID)
	case lifecycle.ActionRestoreDenied:
		return m.RestoreDenied(ctx, auth, cmd.LoadID)
	case lifecycle.ActionAcknowledge:
		return m.Acknowledge(ctx, auth, cmd.LoadID)
	}
	return nil, errs.Validation(errs.CodeInvalidInput, "unknown action %q", cmd.Action)
}

func (s *loadService) ExpireDriverQuote(ctx context.Context, loadID string) (*lifecycle.Outcome, error) {
	return s.Apply(ctx, models.SystemActor(), Command{Action: lifecycle.ActionExpireDriverQuote, LoadID: loadID})
}

func (s *loadService) record(action lifecycle.Action, out *lifecycle.Outcome, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errs.HasCode(err, errs.CodeStaleState):
		result = "stale"
	case errs.IsValidation(err), errs.IsAuthorization(err), errs.IsNotFound(err):
		result = "rejected"
	default:
		result = "error"
	}
	metrics.TransitionsTotal.WithLabelValues(string(action), result).Inc()
	if out != nil && len(out.Warnings) > 0 {
		s.log.Warning("transition committed with warnings",
			logger.String("load_id", out.Load.ID),
			logger.String("action", string(action)),
			logger.Strings("warnings", out.Warnings),
		)
	}
}

func (s *loadService) GetByID(ctx context.Context, id string) (*models.Load, error) {
	return s.stg.GetByID(ctx, id)
}

func (s *loadService) Events(ctx context.Context, id string) ([]*models.TrackingEvent, error) {
	return s.stg.Events(ctx, id)
}

func (s *loadService) ForDriver(ctx context.Context, driverID string, limit int) ([]*models.Load, error) {
	return s.stg.ListByDriver(ctx, driverID, limit)
}

func (s *loadService) Open(ctx context.Context, limit int) ([]*models.Load, error) {
	return s.stg.ListByStatus(ctx, models.StatusNew, limit)
}

func (s *loadService) Wait() {
	s.dispatcher.Wait()
}
