package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"medcourier/cmd/loadctl/app/options"
	"medcourier/pkg/lifecycle"
	"medcourier/pkg/models"
	"medcourier/service"
)

func newTransitionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "transitions",
		Short: "Print the load transition table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table := uitable.New()
			table.AddRow("ACTION", "FROM", "TO", "ACTORS", "EVENT")
			for _, t := range lifecycle.Transitions() {
				from := make([]string, len(t.Sources))
				for i, s := range t.Sources {
					from[i] = string(s)
				}
				table.AddRow(t.Action, strings.Join(from, ","), t.Destination, t.Actors, t.Event)
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

func newCreateCommand(opts *options.Options) *cobra.Command {
	var (
		in                  lifecycle.NewLoad
		driver, vehicle     string
		readyTime, deadline string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a load",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			auth, err := opts.Auth()
			if err != nil {
				return err
			}
			if in.ReadyTime, err = parseTime("ready-time", readyTime); err != nil {
				return err
			}
			if in.DeliveryDeadline, err = parseTime("deadline", deadline); err != nil {
				return err
			}
			if driver != "" {
				in.DriverID = &driver
			}
			if vehicle != "" {
				in.VehicleID = &vehicle
			}

			svc, closeFn, err := connect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeFn()

			out, err := svc.Load().Create(cmd.Context(), auth, in)
			if err != nil {
				return err
			}
			printOutcome(cmd, out)
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&in.ShipperID, "shipper", "", "Owning shipper. Required unless --as is a shipper.")
	fs.StringVar(&in.PickupFacilityID, "pickup", "", "Pickup facility ID.")
	fs.StringVar(&in.DropoffFacilityID, "dropoff", "", "Dropoff facility ID.")
	fs.StringVar(&in.ServiceType, "service-type", "ROUTINE", "Service tier or legacy alias.")
	fs.Float64Var(&in.DistanceMiles, "distance", 0, "Route distance in miles.")
	fs.BoolVar(&in.RequiresHazmat, "hazmat", false, "Load requires hazmat handling.")
	fs.StringVar(&driver, "driver", "", "Driver the load is requested from.")
	fs.StringVar(&vehicle, "vehicle", "", "Vehicle for the requested driver.")
	fs.StringVar(&readyTime, "ready-time", "", "Pickup ready time, RFC 3339.")
	fs.StringVar(&deadline, "deadline", "", "Delivery deadline, RFC 3339.")
	return cmd
}

func newApplyCommand(opts *options.Options) *cobra.Command {
	var (
		c       service.Command
		vehicle string
		amount  float64
		rule    string
	)
	cmd := &cobra.Command{
		Use:   "apply ACTION LOAD_ID",
		Short: "Apply a lifecycle action to a load",
		Long:  "Apply a lifecycle action to a load. Run `loadctl transitions` for the list of actions.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			auth, err := opts.Auth()
			if err != nil {
				return err
			}
			c.Action = lifecycle.Action(args[0])
			c.LoadID = args[1]
			if cmd.Flags().Changed("vehicle") {
				c.VehicleID = &vehicle
			}
			if cmd.Flags().Changed("amount") {
				c.Amount = &amount
			}
			if rule != "" {
				r := models.BillingRule(strings.ToUpper(rule))
				c.Rule = &r
			}

			svc, closeFn, err := connect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeFn()

			out, err := svc.Load().Apply(cmd.Context(), auth, c)
			if err != nil {
				return err
			}
			printOutcome(cmd, out)
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&c.DriverID, "driver", "", "Driver to assign.")
	fs.StringVar(&vehicle, "vehicle", "", "Vehicle to attach.")
	fs.Float64Var(&amount, "amount", 0, "Quote amount.")
	fs.StringVar(&c.Reason, "reason", "", "Reason for a cancel, deny, release or rejection.")
	fs.StringVar(&c.Notes, "notes", "", "Free-form denial notes.")
	fs.StringVar(&rule, "billing-rule", "", "Cancellation billing: NO_CHARGE, CANCELLATION_FEE or FULL_CHARGE.")
	return cmd
}

func newEventsCommand(opts *options.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "events LOAD_ID",
		Short: "Print the tracking history of a load",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := connect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeFn()

			events, err := svc.Load().Events(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), eventsTable(events))
			return nil
		},
	}
}

func newSweepCommand(opts *options.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire overdue driver quotes once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := connect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeFn()

			n, err := svc.Sweeper().Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d driver quote(s)\n", n)
			return nil
		},
	}
}

func eventsTable(events []*models.TrackingEvent) *uitable.Table {
	table := uitable.New()
	table.MaxColWidth = 60
	table.AddRow("AT", "CODE", "FROM", "TO", "ACTOR", "DESCRIPTION")
	for _, e := range events {
		table.AddRow(e.CreatedAt.Format(time.RFC3339), e.Code, e.FromStatus, e.ToStatus,
			fmt.Sprintf("%s:%s", e.ActorType, e.ActorID), e.Description)
	}
	return table
}

func printOutcome(cmd *cobra.Command, out *lifecycle.Outcome) {
	w := cmd.OutOrStdout()
	l := out.Load
	table := uitable.New()
	table.AddRow("LOAD", l.ID)
	table.AddRow("STATUS", l.Status)
	if out.Event != nil {
		table.AddRow("EVENT", out.Event.Code)
	}
	if l.QuoteAmount != nil {
		table.AddRow("QUOTE", money(*l.QuoteAmount))
	}
	if l.DriverQuoteAmount != nil {
		table.AddRow("DRIVER QUOTE", money(*l.DriverQuoteAmount))
	}
	if l.PayeeType != nil && l.PayeeID != nil {
		table.AddRow("PAYEE", fmt.Sprintf("%s %s", *l.PayeeType, *l.PayeeID))
	}
	table.AddRow("NEXT", lifecycle.Allowed(l.Status))
	fmt.Fprintln(w, table)
	for _, warn := range out.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
}
