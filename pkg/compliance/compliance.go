// Package compliance re-validates driver and vehicle credentials at the
// pickup and delivery boundaries. Every call reads the clock again; nothing
// is cached between checks.
package compliance

import (
	"fmt"
	"time"

	"medcourier/pkg/errs"
	"medcourier/pkg/models"
)

const (
	ExpiryWarningWindow  = 30 * 24 * time.Hour
	HazmatTrainingMaxAge = 365 * 24 * time.Hour
)

type Result struct {
	Passed   bool     `json:"passed"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

type Gate struct {
	now func() time.Time
}

func NewGate(clock func() time.Time) *Gate {
	if clock == nil {
		clock = time.Now
	}
	return &Gate{now: clock}
}

// Gated reports whether entering target requires a compliance check.
func Gated(target models.LoadStatus) bool {
	return target == models.StatusPickedUp || target == models.StatusDelivered
}

func (g *Gate) Check(load *models.Load, driver *models.Driver, vehicle *models.Vehicle, target models.LoadStatus) Result {
	now := g.now()
	var r Result

	if driver == nil {
		r.Errors = append(r.Errors, "no driver assigned")
	} else {
		checkExpiry(&r, now, "driver license", driver.LicenseExpiry)
	}

	switch {
	case load.VehicleID == nil || vehicle == nil:
		r.Errors = append(r.Errors, "load has no assigned vehicle")
	default:
		if !vehicle.IsActive {
			r.Errors = append(r.Errors, fmt.Sprintf("vehicle %s is inactive", vehicle.ID))
		}
		if driver != nil && vehicle.DriverID != driver.ID {
			r.Errors = append(r.Errors, fmt.Sprintf("vehicle %s does not belong to driver %s", vehicle.ID, driver.ID))
		}
		checkExpiry(&r, now, "vehicle registration", vehicle.RegistrationExpiry)
		switch {
		case vehicle.InsuranceExpiry == nil:
			r.Warnings = append(r.Warnings, "vehicle insurance expiry not on file")
		case !vehicle.InsuranceExpiry.After(now):
			r.Warnings = append(r.Warnings, fmt.Sprintf("vehicle insurance expired on %s", day(*vehicle.InsuranceExpiry)))
		}
	}

	if load.RequiresHazmat && driver != nil {
		checkExpiry(&r, now, "hazmat certification", driver.HazmatCertExpiry)
		switch {
		case driver.HazmatTrainingAt == nil:
			r.Warnings = append(r.Warnings, "no hazmat training record")
		case now.Sub(*driver.HazmatTrainingAt) > HazmatTrainingMaxAge:
			r.Warnings = append(r.Warnings, fmt.Sprintf("hazmat training from %s is older than one year", day(*driver.HazmatTrainingAt)))
		}
	}

	r.Passed = len(r.Errors) == 0
	return r
}

// Enforce runs Check and turns hard failures into one ValidationError that
// lists every failing reason.
func (g *Gate) Enforce(load *models.Load, driver *models.Driver, vehicle *models.Vehicle, target models.LoadStatus) (Result, error) {
	r := g.Check(load, driver, vehicle, target)
	if r.Passed {
		return r, nil
	}
	return r, &errs.ValidationError{
		Code:    errs.CodeComplianceFailed,
		Reason:  fmt.Sprintf("cannot move load %s to %s", load.ID, target),
		Details: append([]string(nil), r.Errors...),
	}
}

func checkExpiry(r *Result, now time.Time, what string, expiry *time.Time) {
	switch {
	case expiry == nil:
		r.Errors = append(r.Errors, what+" missing")
	case !expiry.After(now):
		r.Errors = append(r.Errors, fmt.Sprintf("%s expired on %s", what, day(*expiry)))
	case expiry.Sub(now) <= ExpiryWarningWindow:
		r.Warnings = append(r.Warnings, fmt.Sprintf("%s expires on %s", what, day(*expiry)))
	}
}

func day(t time.Time) string {
	return t.Format("2006-01-02")
}
