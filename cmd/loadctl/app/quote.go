package app

import (
	"fmt"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"medcourier/cmd/loadctl/app/options"
)

type quoteOptions struct {
	Distance    float64
	ServiceType string
	ReadyTime   string
	Deadline    string
	DriverMin   float64
}

func newQuoteCommand(opts *options.Options) *cobra.Command {
	q := &quoteOptions{ServiceType: "ROUTINE"}
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Preview the rate for a distance and service type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := rates(opts)
			if err != nil {
				return err
			}
			ready, err := parseTime("ready-time", q.ReadyTime)
			if err != nil {
				return err
			}
			deadline, err := parseTime("deadline", q.Deadline)
			if err != nil {
				return err
			}
			quote, err := engine.Quote(q.Distance, q.ServiceType, ready, deadline)
			if err != nil {
				return err
			}

			table := uitable.New()
			table.MaxColWidth = 60
			table.AddRow("LINE", "AMOUNT", "DETAIL")
			for _, l := range quote.Breakdown {
				table.AddRow(l.Label, money(l.Amount), l.Detail)
			}
			table.AddRow("Total", money(quote.TotalRate), string(quote.Tier))
			table.AddRow("Per mile", money(quote.RatePerMile), "")
			table.AddRow("After hours", fmt.Sprint(quote.AfterHours), quote.EvaluatedAt.Format(time.RFC3339))
			table.AddRow("Transit", quote.EstimatedTransit.Round(time.Minute).String(), "")
			if quote.DeadlineReachable != nil {
				table.AddRow("Deadline reachable", fmt.Sprint(*quote.DeadlineReachable), "")
			}
			if q.DriverMin > 0 {
				adj := engine.ApplyMinimum(quote.TotalRate, q.Distance, &q.DriverMin)
				profit := engine.EstimateProfit(adj.Rate, q.Distance, &q.DriverMin)
				table.AddRow("Driver rate", money(adj.Rate), fmt.Sprintf("raised to minimum: %v", adj.RateAdjustedForMinimum))
				table.AddRow("Est. profit", money(profit.Profit), fmt.Sprintf("costs %s over %.1fh", money(profit.EstimatedCosts), profit.EstimatedHours))
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	fs := cmd.Flags()
	fs.Float64Var(&q.Distance, "distance", q.Distance, "Route distance in miles.")
	fs.StringVar(&q.ServiceType, "service-type", q.ServiceType, "Service tier or legacy alias.")
	fs.StringVar(&q.ReadyTime, "ready-time", q.ReadyTime, "Pickup ready time, RFC 3339. Defaults to now.")
	fs.StringVar(&q.Deadline, "deadline", q.Deadline, "Delivery deadline, RFC 3339.")
	fs.Float64Var(&q.DriverMin, "driver-min", q.DriverMin, "Driver minimum rate per mile to apply.")
	_ = cmd.MarkFlagRequired("distance")
	return cmd
}

func parseTime(flag, v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, fmt.Errorf("--%s must be RFC 3339: %w", flag, err)
	}
	return &t, nil
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}
