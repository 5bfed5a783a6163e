package bot

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"

	"medcourier/pkg/lifecycle"
	"medcourier/pkg/logger"
	"medcourier/pkg/models"
	"medcourier/service"
)

const listLimit = 10

// driverButtons are the actions a driver can take from a load card, in
// display order. A button is shown only when the load's status allows it.
var driverButtons = []struct {
	action lifecycle.Action
	label  string
}{
	{lifecycle.ActionDriverAccept, "✅ Accept"},
	{lifecycle.ActionDeny, "🚫 Decline"},
	{lifecycle.ActionClaimForQuote, "💬 Quote this"},
	{lifecycle.ActionSubmitDriverQuote, "💲 Send quote"},
	{lifecycle.ActionPickup, "📦 Picked up"},
	{lifecycle.ActionStartTransit, "🚚 In transit"},
	{lifecycle.ActionDeliver, "🏁 Delivered"},
	{lifecycle.ActionRelease, "↩️ Release"},
}

func (b *Bot) handleMyLoads(c tele.Context) error {
	s, _, err := b.session(c)
	if err != nil {
		return b.fail(c, err)
	}
	if s == nil {
		return c.Send(msg("unlinked"))
	}
	loads, err := b.Svc.Load().ForDriver(context.Background(), s.DriverID, listLimit)
	if err != nil {
		return b.fail(c, err)
	}
	if len(loads) == 0 {
		return c.Send(msg("no_loads"))
	}
	for _, l := range loads {
		if err := c.Send(b.cardText(l), cardMarkup(l), tele.ModeHTML); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) handleOpenLoads(c tele.Context) error {
	s, _, err := b.session(c)
	if err != nil {
		return b.fail(c, err)
	}
	if s == nil {
		return c.Send(msg("unlinked"))
	}
	loads, err := b.Svc.Load().Open(context.Background(), listLimit)
	if err != nil {
		return b.fail(c, err)
	}
	if len(loads) == 0 {
		return c.Send(msg("no_open"))
	}
	for _, l := range loads {
		if err := c.Send(b.cardText(l), cardMarkup(l), tele.ModeHTML); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bot) handleAction(c tele.Context) error {
	s, _, err := b.session(c)
	if err != nil {
		return b.fail(c, err)
	}
	if s == nil {
		return c.Respond(&tele.CallbackResponse{Text: msg("unlinked"), ShowAlert: true})
	}
	args := c.Args()
	if len(args) != 2 {
		return c.Respond()
	}
	action, loadID := lifecycle.Action(args[0]), args[1]

	switch action {
	case lifecycle.ActionSubmitDriverQuote:
		b.setState(c, stateQuoteAmount, loadID)
		_ = c.Respond()
		return c.Send(msg("quote_prompt", html.EscapeString(loadID)), tele.ModeHTML)
	case lifecycle.ActionDeny:
		b.setState(c, stateDenyReason, loadID)
		_ = c.Respond()
		return c.Send(msg("deny_prompt", html.EscapeString(loadID)), tele.ModeHTML)
	}

	cmd := service.Command{Action: action, LoadID: loadID}
	if action == lifecycle.ActionDriverAccept || action == lifecycle.ActionClaimForQuote {
		cmd.VehicleID = b.activeVehicle(s.DriverID)
	}
	out, err := b.apply(s, cmd)
	if err != nil {
		return b.fail(c, err)
	}
	_ = c.Respond(&tele.CallbackResponse{Text: b.label(action)})
	if err := c.Edit(b.cardText(out.Load), cardMarkup(out.Load), tele.ModeHTML); err != nil {
		return err
	}
	return b.warn(c, out)
}

func (b *Bot) handleText(c tele.Context) error {
	s, _, err := b.session(c)
	if err != nil {
		return b.fail(c, err)
	}
	if s == nil || s.State == stateIdle {
		return nil
	}

	cmd := service.Command{LoadID: s.LoadID}
	switch s.State {
	case stateQuoteAmount:
		raw := strings.TrimSpace(c.Text())
		amount, err := strconv.ParseFloat(strings.TrimPrefix(raw, "$"), 64)
		if err != nil {
			return c.Send(msg("bad_amount", raw))
		}
		cmd.Action = lifecycle.ActionSubmitDriverQuote
		cmd.Amount = &amount
	case stateDenyReason:
		cmd.Action = lifecycle.ActionDeny
		cmd.Reason = strings.TrimSpace(c.Text())
	}
	b.setState(c, stateIdle, "")

	out, err := b.apply(s, cmd)
	if err != nil {
		return b.fail(c, err)
	}
	if err := c.Send(b.cardText(out.Load), cardMarkup(out.Load), tele.ModeHTML); err != nil {
		return err
	}
	return b.warn(c, out)
}

func (b *Bot) apply(s *session, cmd service.Command) (*lifecycle.Outcome, error) {
	auth := models.AuthContext{UserID: s.DriverID, UserType: models.UserDriver}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	out, err := b.Svc.Load().Apply(ctx, auth, cmd)
	if err != nil {
		b.Log.Debug("driver action rejected",
			logger.String("driver_id", s.DriverID),
			logger.String("load_id", cmd.LoadID),
			logger.String("action", string(cmd.Action)),
			logger.Error(err),
		)
	}
	return out, err
}

func (b *Bot) warn(c tele.Context, out *lifecycle.Outcome) error {
	for _, w := range out.Warnings {
		if err := c.Send(msg("warning", w)); err != nil {
			return err
		}
	}
	return nil
}

// activeVehicle picks the driver's vehicle when there is exactly one active.
func (b *Bot) activeVehicle(driverID string) *string {
	vehicles, err := b.Stg.Vehicle().GetByDriver(context.Background(), driverID)
	if err != nil {
		b.Log.Warning("failed to load vehicles", logger.String("driver_id", driverID), logger.Error(err))
		return nil
	}
	var id *string
	for _, v := range vehicles {
		if !v.IsActive {
			continue
		}
		if id != nil {
			return nil
		}
		vid := v.ID
		id = &vid
	}
	return id
}

func (b *Bot) label(action lifecycle.Action) string {
	for _, btn := range driverButtons {
		if btn.action == action {
			return btn.label
		}
	}
	return string(action)
}

func (b *Bot) facilityName(id string) string {
	f, err := b.Stg.Facility().GetByID(context.Background(), id)
	if err != nil || f.Name == "" {
		return id
	}
	return f.Name
}

func (b *Bot) cardText(l *models.Load) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📦 <b>Load</b> <code>%s</code>\n", html.EscapeString(l.ID))
	fmt.Fprintf(&sb, "📍 %s ➞ %s\n", html.EscapeString(b.facilityName(l.PickupFacilityID)), html.EscapeString(b.facilityName(l.DropoffFacilityID)))
	fmt.Fprintf(&sb, "🚑 %s · %.1f mi\n", html.EscapeString(l.ServiceType), l.DistanceMiles)
	if l.ReadyTime != nil {
		fmt.Fprintf(&sb, "🕒 Ready %s\n", l.ReadyTime.Format("Jan 2 15:04 MST"))
	}
	if l.RequiresHazmat {
		sb.WriteString("☣️ Hazmat\n")
	}
	if l.QuoteAmount != nil {
		fmt.Fprintf(&sb, "💰 %.2f\n", *l.QuoteAmount)
	}
	if l.DriverQuoteAmount != nil {
		fmt.Fprintf(&sb, "💬 Your quote %.2f\n", *l.DriverQuoteAmount)
	}
	fmt.Fprintf(&sb, "📊 %s", l.Status)
	return sb.String()
}

func cardMarkup(l *models.Load) *tele.ReplyMarkup {
	allowed := make(map[lifecycle.Action]bool)
	for _, a := range lifecycle.Allowed(l.Status) {
		allowed[a] = true
	}

	menu := &tele.ReplyMarkup{}
	var btns []tele.Btn
	for _, db := range driverButtons {
		if allowed[db.action] {
			btns = append(btns, menu.Data(db.label, btnAction.Unique, string(db.action), l.ID))
		}
	}
	var rows []tele.Row
	for i := 0; i < len(btns); i += 2 {
		rows = append(rows, menu.Row(btns[i:min(i+2, len(btns))]...))
	}
	menu.Inline(rows...)
	return menu
}
