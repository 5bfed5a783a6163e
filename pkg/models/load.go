package models

import "time"

type LoadStatus string

const (
	StatusNew                  LoadStatus = "NEW"
	StatusQuoteRequested       LoadStatus = "QUOTE_REQUESTED"
	StatusRequested            LoadStatus = "REQUESTED"
	StatusQuoted               LoadStatus = "QUOTED"
	StatusQuoteAccepted        LoadStatus = "QUOTE_ACCEPTED"
	StatusDriverQuotePending   LoadStatus = "DRIVER_QUOTE_PENDING"
	StatusDriverQuoteSubmitted LoadStatus = "DRIVER_QUOTE_SUBMITTED"
	StatusScheduled            LoadStatus = "SCHEDULED"
	StatusPickedUp             LoadStatus = "PICKED_UP"
	StatusInTransit            LoadStatus = "IN_TRANSIT"
	StatusDelivered            LoadStatus = "DELIVERED"
	StatusCompleted            LoadStatus = "COMPLETED"
	StatusCancelled            LoadStatus = "CANCELLED"
	StatusDenied               LoadStatus = "DENIED"
)

var AllStatuses = []LoadStatus{
	StatusNew, StatusQuoteRequested, StatusRequested, StatusQuoted, StatusQuoteAccepted,
	StatusDriverQuotePending, StatusDriverQuoteSubmitted, StatusScheduled, StatusPickedUp,
	StatusInTransit, StatusDelivered, StatusCompleted, StatusCancelled, StatusDenied,
}

func (s LoadStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusDenied || s == StatusCompleted
}

// RequiresDriver reports whether a load in this status must carry a driver.
func (s LoadStatus) RequiresDriver() bool {
	switch s {
	case StatusRequested, StatusDriverQuotePending, StatusDriverQuoteSubmitted,
		StatusScheduled, StatusPickedUp, StatusInTransit, StatusDelivered, StatusCompleted:
		return true
	}
	return false
}

type BillingRule string

const (
	BillingNoCharge        BillingRule = "NO_CHARGE"
	BillingCancellationFee BillingRule = "CANCELLATION_FEE"
	BillingFullCharge      BillingRule = "FULL_CHARGE"
)

func (r BillingRule) Valid() bool {
	return r == BillingNoCharge || r == BillingCancellationFee || r == BillingFullCharge
}

type PayeeType string

const (
	PayeeDriver PayeeType = "DRIVER"
	PayeeFleet  PayeeType = "FLEET"
)

type Load struct {
	ID                string     `json:"id"`
	Status            LoadStatus `json:"status"`
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
	CreatedByDriver   bool       `json:"created_by_driver"`

	QuoteAmount            *float64   `json:"quote_amount"`
	RateAdjustedForMinimum bool       `json:"rate_adjusted_for_minimum"`
	DriverQuoteAmount      *float64   `json:"driver_quote_amount"`
	DriverQuoteExpiresAt   *time.Time `json:"driver_quote_expires_at"`

	QuotedAt           *time.Time `json:"quoted_at"`
	AssignedAt         *time.Time `json:"assigned_at"`
	AcceptedByDriverAt *time.Time `json:"accepted_by_driver_at"`
	QuoteAcceptedAt    *time.Time `json:"quote_accepted_at"`
	PickedUpAt         *time.Time `json:"picked_up_at"`
	DeliveredAt        *time.Time `json:"delivered_at"`
	CompletedAt        *time.Time `json:"completed_at"`
	CancelledAt        *time.Time `json:"cancelled_at"`
	DriverDeniedAt     *time.Time `json:"driver_denied_at"`

	CancellationReason      *string      `json:"cancellation_reason"`
	CancellationBillingRule *BillingRule `json:"cancellation_billing_rule"`
	CancelledBy             *UserType    `json:"cancelled_by"`
	DenialReason            *string      `json:"denial_reason"`
	DenialNotes             *string      `json:"denial_notes"`

	PayeeType       *PayeeType `json:"payee_type"`
	PayeeID         *string    `json:"payee_id"`
	DriverPayAmount *float64   `json:"driver_pay_amount"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so a transition can be planned without touching
// the caller's value.
func (l *Load) Clone() *Load {
	c := *l
	c.DriverID = cloneString(l.DriverID)
	c.VehicleID = cloneString(l.VehicleID)
	c.ReadyTime = cloneTime(l.ReadyTime)
	c.DeliveryDeadline = cloneTime(l.DeliveryDeadline)
	c.QuoteAmount = cloneFloat(l.QuoteAmount)
	c.DriverQuoteAmount = cloneFloat(l.DriverQuoteAmount)
	c.DriverQuoteExpiresAt = cloneTime(l.DriverQuoteExpiresAt)
	c.QuotedAt = cloneTime(l.QuotedAt)
	c.AssignedAt = cloneTime(l.AssignedAt)
	c.AcceptedByDriverAt = cloneTime(l.AcceptedByDriverAt)
	c.QuoteAcceptedAt = cloneTime(l.QuoteAcceptedAt)
	c.PickedUpAt = cloneTime(l.PickedUpAt)
	c.DeliveredAt = cloneTime(l.DeliveredAt)
	c.CompletedAt = cloneTime(l.CompletedAt)
	c.CancelledAt = cloneTime(l.CancelledAt)
	c.DriverDeniedAt = cloneTime(l.DriverDeniedAt)
	c.CancellationReason = cloneString(l.CancellationReason)
	c.DenialReason = cloneString(l.DenialReason)
	c.DenialNotes = cloneString(l.DenialNotes)
	c.PayeeID = cloneString(l.PayeeID)
	c.DriverPayAmount = cloneFloat(l.DriverPayAmount)
	if l.CancellationBillingRule != nil {
		v := *l.CancellationBillingRule
		c.CancellationBillingRule = &v
	}
	if l.CancelledBy != nil {
		v := *l.CancelledBy
		c.CancelledBy = &v
	}
	if l.PayeeType != nil {
		v := *l.PayeeType
		c.PayeeType = &v
	}
	return &c
}

func (l *Load) AssignedTo(driverID string) bool {
	return l.DriverID != nil && *l.DriverID == driverID
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
