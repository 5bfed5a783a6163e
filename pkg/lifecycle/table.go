package lifecycle

import (
	"strings"

	"github.com/looplab/fsm"

	"medcourier/pkg/models"
)

type Action string

const (
	ActionRequestQuote       Action = "request_quote"
	ActionSendQuote          Action = "send_quote"
	ActionAcceptQuote        Action = "accept_quote"
	ActionAssignDriver       Action = "assign_driver"
	ActionDriverAccept       Action = "driver_accept"
	ActionDeny               Action = "deny"
	ActionClaimForQuote      Action = "claim_for_quote"
	ActionSubmitDriverQuote  Action = "submit_driver_quote"
	ActionApproveDriverQuote Action = "approve_driver_quote"
	ActionRejectDriverQuote  Action = "reject_driver_quote"
	ActionExpireDriverQuote  Action = "expire_driver_quote"
	ActionRelease            Action = "release"
	ActionPickup             Action = "pickup"
	ActionStartTransit       Action = "start_transit"
	ActionDeliver            Action = "deliver"
	ActionComplete           Action = "complete"
	ActionCancel             Action = "cancel"
	ActionRestore            Action = "restore"
	ActionRestoreDenied      Action = "restore_denied"
	ActionAcknowledge        Action = "acknowledge"

	// restore has two destinations; the fsm needs one event per destination.
	eventRestoreRequested = "restore_requested"
)

type actor uint8

const (
	owningShipper actor = 1 << iota
	assignedDriver
	anyDriver
	admin
	system
)

func (a actor) permits(auth models.AuthContext, load *models.Load) bool {
	switch auth.UserType {
	case models.UserAdmin:
		return a&admin != 0
	case models.UserSystem:
		return a&system != 0
	case models.UserShipper:
		return a&owningShipper != 0 && load.ShipperID == auth.UserID
	case models.UserDriver:
		if a&anyDriver != 0 {
			return true
		}
		return a&assignedDriver != 0 && load.AssignedTo(auth.UserID)
	}
	return false
}

func (a actor) String() string {
	var names []string
	for _, n := range []struct {
		bit  actor
		name string
	}{
		{owningShipper, "owning shipper"},
		{assignedDriver, "assigned driver"},
		{anyDriver, "any driver"},
		{admin, "admin"},
		{system, "system"},
	} {
		if a&n.bit != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, ", ")
}

type transition struct {
	event  string
	action Action
	src    []models.LoadStatus
	dst    models.LoadStatus
	actors actor
	code   models.EventCode
	label  string
}

var cancellable = []models.LoadStatus{
	models.StatusNew, models.StatusQuoteRequested, models.StatusRequested, models.StatusQuoted,
	models.StatusQuoteAccepted, models.StatusDriverQuotePending, models.StatusDriverQuoteSubmitted,
	models.StatusScheduled, models.StatusPickedUp, models.StatusInTransit,
}

var table = []transition{
	{event: string(ActionRequestQuote), action: ActionRequestQuote, src: []models.LoadStatus{models.StatusNew}, dst: models.StatusQuoteRequested,
		actors: owningShipper | admin, code: models.EventQuoteRequested, label: "Quote requested"},
	{event: string(ActionSendQuote), action: ActionSendQuote, src: []models.LoadStatus{models.StatusNew, models.StatusQuoteRequested, models.StatusRequested}, dst: models.StatusQuoted,
		actors: admin | system, code: models.EventQuoteSent, label: "Quote sent"},
	{event: string(ActionAcceptQuote), action: ActionAcceptQuote, src: []models.LoadStatus{models.StatusQuoted}, dst: models.StatusQuoteAccepted,
		actors: owningShipper | admin, code: models.EventShipperConfirmed, label: "Shipper confirmed quote"},
	{event: string(ActionAssignDriver), action: ActionAssignDriver, src: []models.LoadStatus{models.StatusNew, models.StatusQuoteAccepted}, dst: models.StatusScheduled,
		actors: admin, code: models.EventDriverAssigned, label: "Driver assigned"},
	{event: string(ActionDriverAccept), action: ActionDriverAccept, src: []models.LoadStatus{models.StatusRequested}, dst: models.StatusScheduled,
		actors: assignedDriver, code: models.EventDriverAccepted, label: "Driver accepted"},
	{event: string(ActionDeny), action: ActionDeny, src: []models.LoadStatus{models.StatusRequested}, dst: models.StatusDenied,
		actors: assignedDriver, code: models.EventDriverDenied, label: "Driver denied"},
	{event: string(ActionClaimForQuote), action: ActionClaimForQuote, src: []models.LoadStatus{models.StatusNew}, dst: models.StatusDriverQuotePending,
		actors: anyDriver, code: models.EventDriverQuoteRequested, label: "Driver preparing quote"},
	{event: string(ActionSubmitDriverQuote), action: ActionSubmitDriverQuote, src: []models.LoadStatus{models.StatusDriverQuotePending}, dst: models.StatusDriverQuoteSubmitted,
		actors: assignedDriver, code: models.EventDriverQuoteSubmitted, label: "Driver quote submitted"},
	{event: string(ActionApproveDriverQuote), action: ActionApproveDriverQuote, src: []models.LoadStatus{models.StatusDriverQuoteSubmitted}, dst: models.StatusScheduled,
		actors: owningShipper | admin, code: models.EventDriverQuoteApproved, label: "Driver quote approved"},
	{event: string(ActionRejectDriverQuote), action: ActionRejectDriverQuote, src: []models.LoadStatus{models.StatusDriverQuoteSubmitted}, dst: models.StatusNew,
		actors: owningShipper | admin, code: models.EventDriverQuoteRejected, label: "Driver quote rejected"},
	{event: string(ActionExpireDriverQuote), action: ActionExpireDriverQuote, src: []models.LoadStatus{models.StatusDriverQuoteSubmitted}, dst: models.StatusNew,
		actors: system, code: models.EventDriverQuoteExpired, label: "Driver quote expired"},
	{event: string(ActionRelease), action: ActionRelease, src: []models.LoadStatus{models.StatusScheduled, models.StatusDriverQuotePending, models.StatusDriverQuoteSubmitted}, dst: models.StatusNew,
		actors: assignedDriver | admin, code: models.EventDriverReleased, label: "Driver released load"},
	{event: string(ActionPickup), action: ActionPickup, src: []models.LoadStatus{models.StatusScheduled}, dst: models.StatusPickedUp,
		actors: assignedDriver, code: models.EventPickedUp, label: "Picked up"},
	{event: string(ActionStartTransit), action: ActionStartTransit, src: []models.LoadStatus{models.StatusPickedUp}, dst: models.StatusInTransit,
		actors: assignedDriver, code: models.EventInTransit, label: "In transit"},
	{event: string(ActionDeliver), action: ActionDeliver, src: []models.LoadStatus{models.StatusPickedUp, models.StatusInTransit}, dst: models.StatusDelivered,
		actors: assignedDriver, code: models.EventDelivered, label: "Delivered"},
	{event: string(ActionComplete), action: ActionComplete, src: []models.LoadStatus{models.StatusDelivered}, dst: models.StatusCompleted,
		actors: admin | system, code: models.EventCompleted, label: "Completed"},
	{event: string(ActionCancel), action: ActionCancel, src: cancellable, dst: models.StatusCancelled,
		actors: owningShipper | assignedDriver | admin | system, code: models.EventCancelled, label: "Cancelled"},
	{event: string(ActionRestore), action: ActionRestore, src: []models.LoadStatus{models.StatusCancelled}, dst: models.StatusNew,
		actors: admin, code: models.EventRestored, label: "Restored"},
	{event: eventRestoreRequested, action: ActionRestore, src: []models.LoadStatus{models.StatusCancelled}, dst: models.StatusRequested,
		actors: admin, code: models.EventRestored, label: "Restored to driver"},
	{event: string(ActionRestoreDenied), action: ActionRestoreDenied, src: []models.LoadStatus{models.StatusDenied}, dst: models.StatusNew,
		actors: admin, code: models.EventRestored, label: "Restored after denial"},
}

func lookup(event string) (transition, bool) {
	for _, t := range table {
		if t.event == event {
			return t, true
		}
	}
	return transition{}, false
}

func statusStrings(ss []models.LoadStatus) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

func newFSM(current models.LoadStatus, callbacks fsm.Callbacks) *fsm.FSM {
	events := make(fsm.Events, 0, len(table))
	for _, t := range table {
		events = append(events, fsm.EventDesc{Name: t.event, Src: statusStrings(t.src), Dst: string(t.dst)})
	}
	return fsm.NewFSM(string(current), events, callbacks)
}

// Transition describes one row of the table for display.
type Transition struct {
	Action      Action
	Sources     []models.LoadStatus
	Destination models.LoadStatus
	Actors      string
	Event       models.EventCode
}

func Transitions() []Transition {
	out := make([]Transition, 0, len(table))
	for _, t := range table {
		out = append(out, Transition{
			Action:      t.action,
			Sources:     append([]models.LoadStatus(nil), t.src...),
			Destination: t.dst,
			Actors:      t.actors.String(),
			Event:       t.code,
		})
	}
	return out
}

// Allowed lists the actions the fsm accepts from status.
func Allowed(status models.LoadStatus) []Action {
	f := newFSM(status, nil)
	seen := make(map[Action]bool)
	var out []Action
	for _, t := range table {
		if f.Can(t.event) && !seen[t.action] {
			seen[t.action] = true
			out = append(out, t.action)
		}
	}
	return out
}
