package service

import (
	"context"
	"strings"
	"time"

	"medcourier/pkg/errs"
	"medcourier/pkg/fleet"
	"medcourier/pkg/logger"
	"medcourier/pkg/metrics"
	"medcourier/pkg/models"
	"medcourier/storage"
)

type FleetService interface {
	CreateInvite(ctx context.Context, auth models.AuthContext, fleetID string, role models.FleetRole, maxUses *int, ttl time.Duration) (*models.FleetInvite, error)
	Redeem(ctx context.Context, auth models.AuthContext, code, driverID string) (*models.Driver, error)
	Leave(ctx context.Context, auth models.AuthContext, driverID string) (*models.Driver, error)
	Members(ctx context.Context, fleetID string) ([]*models.Driver, error)
	// SetDriverContact records the phone a driver must share to link a
	// Telegram chat. unlink drops the chat currently linked.
	SetDriverContact(ctx context.Context, auth models.AuthContext, driverID, phone string, unlink bool) (*models.Contact, error)
}

type fleetService struct {
	stg    storage.IStorage
	ledger *fleet.Ledger
	log    logger.ILogger
}

func NewFleetService(stg storage.IStorage, ledger *fleet.Ledger, log logger.ILogger) FleetService {
	return &fleetService{stg: stg, ledger: ledger, log: log}
}

func (s *fleetService) CreateInvite(ctx context.Context, auth models.AuthContext, fleetID string, role models.FleetRole, maxUses *int, ttl time.Duration) (*models.FleetInvite, error) {
	return s.ledger.CreateInvite(ctx, auth, fleetID, role, maxUses, ttl)
}

func (s *fleetService) Redeem(ctx context.Context, auth models.AuthContext, code, driverID string) (*models.Driver, error) {
	d, err := s.ledger.Redeem(ctx, auth, code, driverID)
	metrics.InviteRedemptionsTotal.WithLabelValues(redeemResult(err)).Inc()
	return d, err
}

func redeemResult(err error) string {
	switch {
	case err == nil:
		return "joined"
	case errs.HasCode(err, errs.CodeInviteExhausted):
		return "exhausted"
	case errs.HasCode(err, errs.CodeInviteExpired):
		return "expired"
	default:
		return "rejected"
	}
}

func (s *fleetService) Leave(ctx context.Context, auth models.AuthContext, driverID string) (*models.Driver, error) {
	return s.ledger.Leave(ctx, auth, driverID)
}

func (s *fleetService) Members(ctx context.Context, fleetID string) ([]*models.Driver, error) {
	if _, err := s.stg.Fleet().GetByID(ctx, fleetID); err != nil {
		return nil, err
	}
	return s.stg.Driver().GetByFleet(ctx, fleetID)
}

func (s *fleetService) SetDriverContact(ctx context.Context, auth models.AuthContext, driverID, phone string, unlink bool) (*models.Contact, error) {
	if auth.UserType != models.UserAdmin {
		return nil, errs.Unauthorized(auth.UserID, "only dispatch manages driver contacts")
	}
	d, err := s.stg.Driver().GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}

	c, err := s.stg.Contact().Get(ctx, models.UserDriver, driverID)
	if errs.IsNotFound(err) {
		c = &models.Contact{PartyType: models.UserDriver, PartyID: driverID}
	} else if err != nil {
		return nil, err
	}
	c.Name = d.Name
	if phone = strings.TrimSpace(phone); phone != "" {
		if !models.ValidPhone(phone) {
			return nil, errs.Validation(errs.CodeInvalidInput, "%q is not a phone number", phone)
		}
		if c.Phone == nil || !models.SamePhone(*c.Phone, phone) {
			// A new number invalidates the chat linked with the old one.
			c.TelegramChatID = nil
		}
		c.Phone = &phone
	}
	if unlink {
		c.TelegramChatID = nil
	}
	if err := s.stg.Contact().Upsert(ctx, c); err != nil {
		return nil, err
	}
	s.log.Info("driver contact updated",
		logger.String("driver_id", driverID),
		logger.String("by", auth.UserID),
		logger.Bool("unlinked", c.TelegramChatID == nil),
	)
	return c, nil
}
