package models

import "time"

type NotificationKind string

const (
	NotifyLoadCancelled       NotificationKind = "load-cancelled"
	NotifyLoadDenied          NotificationKind = "load-denied"
	NotifyQuoteSubmitted      NotificationKind = "quote-submitted"
	NotifyDriverAssigned      NotificationKind = "driver-assigned"
	NotifyQuoteSent           NotificationKind = "quote-sent"
	NotifyQuoteAccepted       NotificationKind = "quote-accepted"
	NotifyDriverQuoteApproved NotificationKind = "driver-quote-approved"
	NotifyDriverQuoteRejected NotificationKind = "driver-quote-rejected"
	NotifyLoadPickedUp        NotificationKind = "load-picked-up"
	NotifyLoadDelivered       NotificationKind = "load-delivered"
	NotifyLoadRestored        NotificationKind = "load-restored"
)

type Party struct {
	Type UserType `json:"type"`
	ID   string   `json:"id"`
}

// Notification is an intent produced by a transition. Delivery happens after
// the transition has committed and never affects its result.
type Notification struct {
	Kind      NotificationKind  `json:"kind"`
	Recipient Party             `json:"recipient"`
	LoadID    string            `json:"load_id"`
	Subject   string            `json:"subject"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
