package notify

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"medcourier/pkg/models"
)

// pickupWindow is the length of the calendar block created for a pickup.
const pickupWindow = time.Hour

// Calendar puts scheduled pickups on a shared Google Calendar. Only
// driver-assigned and driver-quote-approved notifications carry a pickup;
// the rest are ignored.
type Calendar struct {
	svc        *calendar.Service
	calendarID string
	timeZone   string
}

// NewCalendar builds the client from opts, typically
// option.WithCredentialsFile.
func NewCalendar(ctx context.Context, calendarID, timeZone string, opts ...option.ClientOption) (*Calendar, error) {
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar service: %w", err)
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	if timeZone == "" {
		timeZone = "America/New_York"
	}
	return &Calendar{svc: svc, calendarID: calendarID, timeZone: timeZone}, nil
}

func (c *Calendar) Notify(ctx context.Context, kind models.NotificationKind, address Address, payload Payload) error {
	if kind != models.NotifyDriverAssigned && kind != models.NotifyDriverQuoteApproved {
		return nil
	}
	event, ok, err := c.pickupEvent(address, payload)
	if err != nil || !ok {
		return err
	}
	if _, err := c.svc.Events.Insert(c.calendarID, event).Context(ctx).Do(); err != nil {
		return fmt.Errorf("insert calendar event for load %s: %w", payload.LoadID, err)
	}
	return nil
}

func (c *Calendar) pickupEvent(address Address, p Payload) (*calendar.Event, bool, error) {
	ready := p.Data["ready_time"]
	if ready == "" {
		return nil, false, nil
	}
	start, err := time.Parse(time.RFC3339, ready)
	if err != nil {
		return nil, false, fmt.Errorf("ready time %q: %w", ready, err)
	}

	driver := address.Party.ID
	if address.Contact != nil && address.Contact.Name != "" {
		driver = address.Contact.Name
	}
	desc := fmt.Sprintf("Load: %s\nDriver: %s\nService: %s", p.LoadID, driver, p.Data["service_type"])
	if dl := p.Data["delivery_deadline"]; dl != "" {
		desc += "\nDeliver by: " + dl
	}

	return &calendar.Event{
		Summary:     fmt.Sprintf("🚚 Pickup: %s ➞ %s", p.Data["pickup_facility_id"], p.Data["dropoff_facility_id"]),
		Location:    p.Data["pickup_facility_id"],
		Description: desc,
		Start: &calendar.EventDateTime{
			DateTime: start.Format(time.RFC3339),
			TimeZone: c.timeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: start.Add(pickupWindow).Format(time.RFC3339),
			TimeZone: c.timeZone,
		},
	}, true, nil
}
