package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"medcourier/pkg/errs"
	"medcourier/pkg/logger"
	"medcourier/pkg/models"
)

type NewLoad struct {
	ShipperID         string     `json:"shipper_id"`
	DriverID          *string    `json:"driver_id"`
	VehicleID         *string    `json:"vehicle_id"`
	PickupFacilityID  string     `json:"pickup_facility_id"`
	DropoffFacilityID string     `json:"dropoff_facility_id"`
	ServiceType       string     `json:"service_type"`
	DistanceMiles     float64    `json:"distance_miles"`
	ReadyTime         *time.Time `json:"ready_time"`
	DeliveryDeadline  *time.Time `json:"delivery_deadline"`
	RequiresHazmat    bool       `json:"requires_hazmat"`
}

// Create stores a new load. Loads created with a driver start in REQUESTED
// and wait for that driver to accept; all others start in NEW.
func (m *Machine) Create(ctx context.Context, auth models.AuthContext, in NewLoad) (*Outcome, error) {
	createdByDriver := false
	switch auth.UserType {
	case models.UserShipper:
		if in.ShipperID == "" {
			in.ShipperID = auth.UserID
		}
		if in.ShipperID != auth.UserID {
			return nil, errs.Unauthorized(auth.UserID, "cannot create loads for shipper %s", in.ShipperID)
		}
		if in.DriverID != nil {
			return nil, errs.Unauthorized(auth.UserID, "shippers cannot direct a load to a driver")
		}
	case models.UserDriver:
		if in.DriverID != nil && *in.DriverID != auth.UserID {
			return nil, errs.Unauthorized(auth.UserID, "drivers can only create loads for themselves")
		}
		self := auth.UserID
		in.DriverID = &self
		createdByDriver = true
	case models.UserAdmin, models.UserSystem:
	default:
		return nil, errs.Unauthorized(auth.UserID, "unknown user type %q", auth.UserType)
	}

	if in.ShipperID == "" {
		return nil, errs.Validation(errs.CodeInvalidInput, "shipper is required")
	}
	if in.PickupFacilityID == "" || in.DropoffFacilityID == "" {
		return nil, errs.Validation(errs.CodeInvalidInput, "pickup and dropoff facilities are required")
	}
	if in.PickupFacilityID == in.DropoffFacilityID {
		return nil, errs.Validation(errs.CodeInvalidInput, "pickup and dropoff must differ")
	}
	if !validDistance(in.DistanceMiles) {
		return nil, errs.Validation(errs.CodeInvalidInput, "distance must be a non-negative number, got %v", in.DistanceMiles)
	}
	if in.ReadyTime != nil && in.DeliveryDeadline != nil && in.DeliveryDeadline.Before(*in.ReadyTime) {
		return nil, errs.Validation(errs.CodeInvalidInput, "delivery deadline is before the ready time")
	}
	tier, err := m.rates.Normalize(in.ServiceType)
	if err != nil {
		return nil, err
	}
	for _, id := range []string{in.PickupFacilityID, in.DropoffFacilityID} {
		if _, err := m.store.Facility().GetByID(ctx, id); err != nil {
			return nil, err
		}
	}

	now := m.now()
	load := &models.Load{
		ID:                uuid.NewString(),
		Status:            models.StatusNew,
		ShipperID:         in.ShipperID,
		PickupFacilityID:  in.PickupFacilityID,
		DropoffFacilityID: in.DropoffFacilityID,
		ServiceType:       string(tier),
		DistanceMiles:     in.DistanceMiles,
		ReadyTime:         in.ReadyTime,
		DeliveryDeadline:  in.DeliveryDeadline,
		RequiresHazmat:    in.RequiresHazmat,
		CreatedByDriver:   createdByDriver,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	p := &plan{auth: auth, req: request{vehicleID: in.VehicleID}, now: now, prev: load, next: load}
	if in.DriverID != nil {
		if err := m.attach(ctx, p, *in.DriverID); err != nil {
			return nil, err
		}
		load.Status = models.StatusRequested
		load.AssignedAt = &now
		if !createdByDriver {
			p.tell(models.NotifyDriverAssigned, driverParty(*in.DriverID), fmt.Sprintf("Load %s is waiting for your acceptance", load.ID), pickupData(load))
		}
	}

	if err := checkInvariants(load); err != nil {
		return nil, err
	}

	ev := &models.TrackingEvent{
		ID:          uuid.NewString(),
		LoadID:      load.ID,
		Code:        models.EventLoadCreated,
		Label:       "Load created",
		Description: fmt.Sprintf("%s %.1f mi", tier, in.DistanceMiles),
		ActorID:     auth.UserID,
		ActorType:   auth.UserType,
		ToStatus:    load.Status,
		CreatedAt:   now,
	}
	if err := m.store.Load().Create(ctx, load, ev); err != nil {
		return nil, err
	}

	m.log.Info("load created",
		logger.String("load_id", load.ID),
		logger.String("status", string(load.Status)),
		logger.String("actor", auth.UserID),
	)
	return &Outcome{Load: load, Event: ev, Notifications: p.notify}, nil
}
