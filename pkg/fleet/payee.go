package fleet

import (
	"medcourier/pkg/errs"
	"medcourier/pkg/models"
)

type Payee struct {
	Type models.PayeeType `json:"type"`
	ID   string           `json:"id"`
}

// ResolvePayee decides who is paid for a driver's completed load. Fleet
// members are never paid directly.
func ResolvePayee(d *models.Driver) (Payee, error) {
	if d == nil {
		return Payee{}, errs.Validation(errs.CodeMissingData, "no driver to resolve payee for")
	}

	switch d.FleetRole {
	case models.FleetRoleIndependent:
		if d.FleetID != nil {
			return Payee{}, errs.Validation(errs.CodeInvariant, "independent driver %s has fleet %s", d.ID, *d.FleetID)
		}
		return Payee{Type: models.PayeeDriver, ID: d.ID}, nil
	case models.FleetRoleOwner, models.FleetRoleAdmin, models.FleetRoleDriver:
		if d.FleetID == nil || *d.FleetID == "" {
			return Payee{}, errs.Validation(errs.CodeInvariant, "driver %s has role %s but no fleet", d.ID, d.FleetRole)
		}
		return Payee{Type: models.PayeeFleet, ID: *d.FleetID}, nil
	default:
		return Payee{}, errs.Validation(errs.CodeInvariant, "driver %s has unknown fleet role %q", d.ID, d.FleetRole)
	}
}
