package models

import "time"

type EventCode string

const (
	EventLoadCreated          EventCode = "LOAD_CREATED"
	EventQuoteRequested       EventCode = "QUOTE_REQUESTED"
	EventQuoteSent            EventCode = "QUOTE_SENT"
	EventShipperConfirmed     EventCode = "SHIPPER_CONFIRMED"
	EventShipperAcknowledged  EventCode = "SHIPPER_ACKNOWLEDGED"
	EventDriverAssigned       EventCode = "DRIVER_ASSIGNED"
	EventDriverAccepted       EventCode = "DRIVER_ACCEPTED"
	EventDriverDenied         EventCode = "DRIVER_DENIED"
	EventDriverQuoteRequested EventCode = "DRIVER_QUOTE_REQUESTED"
	EventDriverQuoteSubmitted EventCode = "DRIVER_QUOTE_SUBMITTED"
	EventDriverQuoteApproved  EventCode = "DRIVER_QUOTE_APPROVED"
	EventDriverQuoteRejected  EventCode = "DRIVER_QUOTE_REJECTED"
	EventDriverQuoteExpired   EventCode = "DRIVER_QUOTE_EXPIRED"
	EventDriverReleased       EventCode = "DRIVER_RELEASED"
	EventPickedUp             EventCode = "PICKED_UP"
	EventInTransit            EventCode = "IN_TRANSIT"
	EventDelivered            EventCode = "DELIVERED"
	EventCompleted            EventCode = "COMPLETED"
	EventCancelled            EventCode = "CANCELLED"
	EventRestored             EventCode = "RESTORED"
)

// TrackingEvent is an append-only audit entry. Rows are never updated.
type TrackingEvent struct {
	ID          string     `json:"id"`
	LoadID      string     `json:"load_id"`
	Code        EventCode  `json:"code"`
	Label       string     `json:"label"`
	Description string     `json:"description"`
	ActorID     string     `json:"actor_id"`
	ActorType   UserType   `json:"actor_type"`
	FromStatus  LoadStatus `json:"from_status"`
	ToStatus    LoadStatus `json:"to_status"`
	CreatedAt   time.Time  `json:"created_at"`
}
