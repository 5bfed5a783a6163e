package lifecycle

import (
	"medcourier/pkg/errs"
	"medcourier/pkg/models"
)

// checkInvariants runs before every write. A failure here is a bug in a
// guard, not a user error, so the code is invariant_violation.
func checkInvariants(l *models.Load) error {
	var broken []string

	if l.Status.RequiresDriver() && l.DriverID == nil {
		broken = append(broken, string(l.Status)+" requires a driver")
	}
	if l.VehicleID != nil && l.DriverID == nil {
		broken = append(broken, "vehicle assigned without a driver")
	}

	pending := l.Status == models.StatusDriverQuoteSubmitted
	if pending && (l.DriverQuoteAmount == nil || l.DriverQuoteExpiresAt == nil) {
		broken = append(broken, "submitted driver quote needs an amount and expiry")
	}
	if !pending && l.DriverQuoteExpiresAt != nil {
		broken = append(broken, "driver quote expiry set outside DRIVER_QUOTE_SUBMITTED")
	}

	cancelled := l.Status == models.StatusCancelled
	if cancelled != (l.CancelledAt != nil) {
		broken = append(broken, "cancellation timestamp does not match status")
	}
	if cancelled && l.CancellationBillingRule == nil {
		broken = append(broken, "cancelled load needs a billing rule")
	}

	denied := l.Status == models.StatusDenied
	if denied != (l.DriverDeniedAt != nil) {
		broken = append(broken, "denial timestamp does not match status")
	}

	switch l.Status {
	case models.StatusQuoted, models.StatusQuoteAccepted:
		if l.QuoteAmount == nil {
			broken = append(broken, string(l.Status)+" requires a quote amount")
		}
	case models.StatusCompleted:
		if l.PayeeType == nil || l.PayeeID == nil || l.DriverPayAmount == nil {
			broken = append(broken, "completed load needs a payee")
		}
	}

	if len(broken) == 0 {
		return nil
	}
	return &errs.ValidationError{
		Code:    errs.CodeInvariant,
		Reason:  "load " + l.ID,
		Details: broken,
	}
}
