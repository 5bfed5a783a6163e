package storage

import (
	"context"
	"time"

	"medcourier/pkg/models"
)

type IStorage interface {
	Load() ILoadStorage
	Driver() IDriverStorage
	Vehicle() IVehicleStorage
	Fleet() IFleetStorage
	Facility() IFacilityStorage
	Contact() IContactStorage
	// RunTx runs fn in one transaction. Any error from fn rolls back every
	// write made through tx.
	RunTx(ctx context.Context, fn func(tx ITx) error) error
	Ping(ctx context.Context) error
	Close()
}

// TransitionWrite is a conditional load update. It only applies when the
// stored status still equals Expected; the event and the optional driver
// status change commit together with it.
type TransitionWrite struct {
	Load         *models.Load
	Expected     models.LoadStatus
	Event        *models.TrackingEvent
	DriverStatus *DriverStatusChange
}

type DriverStatusChange struct {
	DriverID string
	Status   models.DriverStatus
}

type ILoadStorage interface {
	Create(ctx context.Context, load *models.Load, event *models.TrackingEvent) error
	GetByID(ctx context.Context, id string) (*models.Load, error)
	// Transition returns a stale_state ValidationError when the stored status
	// differs from w.Expected, and NotFoundError when the load is missing.
	Transition(ctx context.Context, w TransitionWrite) error
	AppendEvent(ctx context.Context, event *models.TrackingEvent) error
	Events(ctx context.Context, loadID string) ([]*models.TrackingEvent, error)
	ListExpiredDriverQuotes(ctx context.Context, now time.Time, limit int) ([]*models.Load, error)
	// ListByDriver returns the driver's non-terminal loads, newest first.
	ListByDriver(ctx context.Context, driverID string, limit int) ([]*models.Load, error)
	ListByStatus(ctx context.Context, status models.LoadStatus, limit int) ([]*models.Load, error)
	CountByStatus(ctx context.Context) (map[models.LoadStatus]int, error)
}

type IDriverStorage interface {
	Create(ctx context.Context, driver *models.Driver) error
	GetByID(ctx context.Context, id string) (*models.Driver, error)
	UpdateStatus(ctx context.Context, id string, status models.DriverStatus) error
	GetByFleet(ctx context.Context, fleetID string) ([]*models.Driver, error)
}

type IVehicleStorage interface {
	Create(ctx context.Context, vehicle *models.Vehicle) error
	GetByID(ctx context.Context, id string) (*models.Vehicle, error)
	GetByDriver(ctx context.Context, driverID string) ([]*models.Vehicle, error)
}

type IFleetStorage interface {
	Create(ctx context.Context, fleet *models.Fleet) error
	GetByID(ctx context.Context, id string) (*models.Fleet, error)
	CreateInvite(ctx context.Context, invite *models.FleetInvite) error
	GetInvite(ctx context.Context, code string) (*models.FleetInvite, error)
}

type IFacilityStorage interface {
	Create(ctx context.Context, facility *models.Facility) error
	GetByID(ctx context.Context, id string) (*models.Facility, error)
}

type IContactStorage interface {
	Upsert(ctx context.Context, contact *models.Contact) error
	Get(ctx context.Context, partyType models.UserType, partyID string) (*models.Contact, error)
	GetByTelegramChat(ctx context.Context, chatID int64) (*models.Contact, error)
}

// ITx exposes the guarded writes used by fleet onboarding. The bool results
// report whether the WHERE guard matched a row.
type ITx interface {
	ConsumeInvite(ctx context.Context, code string, now time.Time) (*models.FleetInvite, bool, error)
	GetInvite(ctx context.Context, code string) (*models.FleetInvite, error)
	JoinFleet(ctx context.Context, driverID, fleetID string, role models.FleetRole) (bool, error)
	LeaveFleet(ctx context.Context, driverID string) (bool, error)
	GetDriver(ctx context.Context, id string) (*models.Driver, error)
}
