// Package fleet manages fleet membership and decides who is paid for a
// fleet member's work.
package fleet

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"medcourier/pkg/errs"
	"medcourier/pkg/logger"
	"medcourier/pkg/models"
	"medcourier/storage"
)

type Ledger struct {
	store storage.IStorage
	log   logger.ILogger
	now   func() time.Time
}

func NewLedger(store storage.IStorage, log logger.ILogger, clock func() time.Time) *Ledger {
	if clock == nil {
		clock = time.Now
	}
	return &Ledger{store: store, log: log, now: clock}
}

// Redeem consumes one use of the invite and moves the driver into its fleet.
// Both writes commit together or not at all.
func (l *Ledger) Redeem(ctx context.Context, auth models.AuthContext, code, driverID string) (*models.Driver, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errs.Validation(errs.CodeInvalidInput, "invite code is required")
	}
	if auth.UserID != driverID && !auth.Privileged() {
		return nil, errs.Unauthorized(auth.UserID, "cannot redeem an invite for driver %s", driverID)
	}

	now := l.now()
	var joined *models.Driver
	err := l.store.RunTx(ctx, func(tx storage.ITx) error {
		inv, ok, err := tx.ConsumeInvite(ctx, code, now)
		if err != nil {
			return err
		}
		if !ok {
			current, err := tx.GetInvite(ctx, code)
			if err != nil {
				return err
			}
			if current.Expired(now) {
				return errs.Validation(errs.CodeInviteExpired, "invite %s expired", code)
			}
			return errs.Validation(errs.CodeInviteExhausted, "invite %s has no uses left", code)
		}

		ok, err = tx.JoinFleet(ctx, driverID, inv.FleetID, inv.Role)
		if err != nil {
			return err
		}
		if !ok {
			if _, err := tx.GetDriver(ctx, driverID); err != nil {
				return err
			}
			return errs.Validation(errs.CodeAlreadyInFleet, "driver %s already belongs to a fleet", driverID)
		}

		joined, err = tx.GetDriver(ctx, driverID)
		return err
	})
	if err != nil {
		l.log.Info("invite redemption rejected",
			logger.String("driver_id", driverID),
			logger.Error(err),
		)
		return nil, err
	}

	l.log.Info("driver joined fleet",
		logger.String("driver_id", driverID),
		logger.String("fleet_id", *joined.FleetID),
		logger.String("role", string(joined.FleetRole)),
	)
	return joined, nil
}

// CreateInvite issues a new code for fleetID. A zero ttl never expires and a
// nil maxUses is unlimited.
func (l *Ledger) CreateInvite(ctx context.Context, auth models.AuthContext, fleetID string, role models.FleetRole, maxUses *int, ttl time.Duration) (*models.FleetInvite, error) {
	if role != models.FleetRoleAdmin && role != models.FleetRoleDriver {
		return nil, errs.Validation(errs.CodeInvalidInput, "invite role must be ADMIN or DRIVER, got %q", role)
	}
	if maxUses != nil && *maxUses < 1 {
		return nil, errs.Validation(errs.CodeInvalidInput, "max uses must be at least 1")
	}
	if ttl < 0 {
		return nil, errs.Validation(errs.CodeInvalidInput, "invite ttl cannot be negative")
	}

	if _, err := l.store.Fleet().GetByID(ctx, fleetID); err != nil {
		return nil, err
	}
	if err := l.canManage(ctx, auth, fleetID); err != nil {
		return nil, err
	}

	now := l.now()
	inv := &models.FleetInvite{
		Code:      strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12]),
		FleetID:   fleetID,
		Role:      role,
		MaxUses:   maxUses,
		CreatedBy: auth.UserID,
		CreatedAt: now,
	}
	if ttl > 0 {
		exp := now.Add(ttl)
		inv.ExpiresAt = &exp
	}

	if err := l.store.Fleet().CreateInvite(ctx, inv); err != nil {
		return nil, err
	}
	l.log.Info("fleet invite created", logger.String("fleet_id", fleetID), logger.String("role", string(role)))
	return inv, nil
}

func (l *Ledger) canManage(ctx context.Context, auth models.AuthContext, fleetID string) error {
	if auth.Privileged() {
		return nil
	}
	if auth.UserType != models.UserDriver {
		return errs.Unauthorized(auth.UserID, "only fleet owners and admins manage invites")
	}
	d, err := l.store.Driver().GetByID(ctx, auth.UserID)
	if err != nil {
		if errs.IsNotFound(err) {
			return errs.Unauthorized(auth.UserID, "unknown driver")
		}
		return err
	}
	if d.FleetID == nil || *d.FleetID != fleetID {
		return errs.Unauthorized(auth.UserID, "not a member of fleet %s", fleetID)
	}
	if d.FleetRole != models.FleetRoleOwner && d.FleetRole != models.FleetRoleAdmin {
		return errs.Unauthorized(auth.UserID, "role %s cannot manage invites", d.FleetRole)
	}
	return nil
}

// Leave returns a non-owner member to INDEPENDENT.
func (l *Ledger) Leave(ctx context.Context, auth models.AuthContext, driverID string) (*models.Driver, error) {
	if auth.UserID != driverID && !auth.Privileged() {
		return nil, errs.Unauthorized(auth.UserID, "cannot remove driver %s from a fleet", driverID)
	}

	var left *models.Driver
	err := l.store.RunTx(ctx, func(tx storage.ITx) error {
		ok, err := tx.LeaveFleet(ctx, driverID)
		if err != nil {
			return err
		}
		d, err := tx.GetDriver(ctx, driverID)
		if err != nil {
			return err
		}
		if !ok {
			if d.FleetRole == models.FleetRoleOwner {
				return errs.Validation(errs.CodeInvalidInput, "fleet owner %s cannot leave the fleet", driverID)
			}
			return errs.Validation(errs.CodeInvalidInput, "driver %s is not in a fleet", driverID)
		}
		left = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.log.Info("driver left fleet", logger.String("driver_id", driverID))
	return left, nil
}
