package models

import "time"

type DriverStatus string

const (
	DriverAvailable       DriverStatus = "AVAILABLE"
	DriverOnRoute         DriverStatus = "ON_ROUTE"
	DriverOffDuty         DriverStatus = "OFF_DUTY"
	DriverPendingApproval DriverStatus = "PENDING_APPROVAL"
	DriverInactive        DriverStatus = "INACTIVE"
)

type FleetRole string

const (
	FleetRoleIndependent FleetRole = "INDEPENDENT"
	FleetRoleOwner       FleetRole = "OWNER"
	FleetRoleAdmin       FleetRole = "ADMIN"
	FleetRoleDriver      FleetRole = "DRIVER"
)

type Driver struct {
	ID                 string       `json:"id"`
	Name               string       `json:"name"`
	Status             DriverStatus `json:"status"`
	LicenseExpiry      *time.Time   `json:"license_expiry"`
	HazmatCertExpiry   *time.Time   `json:"hazmat_cert_expiry"`
	HazmatTrainingAt   *time.Time   `json:"hazmat_training_at"`
	FleetID            *string      `json:"fleet_id"`
	FleetRole          FleetRole    `json:"fleet_role"`
	MinimumRatePerMile *float64     `json:"minimum_rate_per_mile"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

func (d *Driver) Assignable() bool {
	return d.Status == DriverAvailable || d.Status == DriverOnRoute
}

type Vehicle struct {
	ID                 string     `json:"id"`
	DriverID           string     `json:"driver_id"`
	LicensePlate       string     `json:"license_plate"`
	RegistrationExpiry *time.Time `json:"registration_expiry"`
	InsuranceExpiry    *time.Time `json:"insurance_expiry"`
	IsActive           bool       `json:"is_active"`
	CurrentOdometer    int64      `json:"current_odometer"`
}
