package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"medcourier/cmd/loadctl/app/options"
	"medcourier/pkg/models"
)

func newInviteCommand(opts *options.Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fleet",
		Short: "Manage fleet invites and membership",
	}
	cmd.AddCommand(
		newInviteCreateCommand(opts),
		newRedeemCommand(opts),
		newLeaveCommand(opts),
		newMembersCommand(opts),
		newContactCommand(opts),
	)
	return cmd
}

func newInviteCreateCommand(opts *options.Options) *cobra.Command {
	var (
		role    string
		maxUses int
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "invite FLEET_ID",
		Short: "Create an invite code for a fleet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			auth, err := opts.Auth()
			if err != nil {
				return err
			}
			var uses *int
			if maxUses > 0 {
				uses = &maxUses
			}

			svc, closeFn, err := connect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeFn()

			inv, err := svc.Fleet().CreateInvite(cmd.Context(), auth, args[0], models.FleetRole(strings.ToUpper(role)), uses, ttl)
			if err != nil {
				return err
			}
			table := uitable.New()
			table.AddRow("CODE", inv.Code)
			table.AddRow("FLEET", inv.FleetID)
			table.AddRow("ROLE", inv.Role)
			if inv.MaxUses != nil {
				table.AddRow("MAX USES", *inv.MaxUses)
			}
			if inv.ExpiresAt != nil {
				table.AddRow("EXPIRES", inv.ExpiresAt.Format(time.RFC3339))
			}
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&role, "role", string(models.FleetRoleDriver), "Role granted on redemption: DRIVER or ADMIN.")
	fs.IntVar(&maxUses, "max-uses", 0, "Maximum redemptions. 0 is unlimited.")
	fs.DurationVar(&ttl, "ttl", 7*24*time.Hour, "Invite lifetime. 0 never expires.")
	return cmd
}

func newRedeemCommand(opts *options.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "redeem CODE DRIVER_ID",
		Short: "Join a driver to a fleet with an invite code",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			auth, err := opts.Auth()
			if err != nil {
				return err
			}
			svc, closeFn, err := connect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeFn()

			d, err := svc.Fleet().Redeem(cmd.Context(), auth, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), driversTable([]*models.Driver{d}))
			return nil
		},
	}
}

func newLeaveCommand(opts *options.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "leave DRIVER_ID",
		Short: "Remove a driver from their fleet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			auth, err := opts.Auth()
			if err != nil {
				return err
			}
			svc, closeFn, err := connect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeFn()

			d, err := svc.Fleet().Leave(cmd.Context(), auth, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), driversTable([]*models.Driver{d}))
			return nil
		},
	}
}

func newMembersCommand(opts *options.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "members FLEET_ID",
		Short: "List the drivers of a fleet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeFn, err := connect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeFn()

			members, err := svc.Fleet().Members(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), driversTable(members))
			return nil
		},
	}
}

func newContactCommand(opts *options.Options) *cobra.Command {
	var (
		phone  string
		unlink bool
	)
	cmd := &cobra.Command{
		Use:   "contact DRIVER_ID",
		Short: "Set the phone a driver shares to link the Telegram bot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			auth, err := opts.Auth()
			if err != nil {
				return err
			}
			if phone == "" && !unlink {
				return fmt.Errorf("nothing to change: pass --phone or --unlink")
			}
			svc, closeFn, err := connect(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer closeFn()

			c, err := svc.Fleet().SetDriverContact(cmd.Context(), auth, args[0], phone, unlink)
			if err != nil {
				return err
			}
			table := uitable.New()
			table.AddRow("DRIVER", c.PartyID)
			table.AddRow("NAME", c.Name)
			if c.Phone != nil {
				table.AddRow("PHONE", *c.Phone)
			}
			table.AddRow("TELEGRAM LINKED", c.TelegramChatID != nil)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&phone, "phone", "", "Phone number on file. Changing it drops the linked chat.")
	fs.BoolVar(&unlink, "unlink", false, "Drop the Telegram chat linked to the driver.")
	return cmd
}

func driversTable(drivers []*models.Driver) *uitable.Table {
	table := uitable.New()
	table.AddRow("ID", "NAME", "STATUS", "FLEET", "ROLE")
	for _, d := range drivers {
		fleet := "-"
		if d.FleetID != nil {
			fleet = *d.FleetID
		}
		table.AddRow(d.ID, d.Name, d.Status, fleet, d.FleetRole)
	}
	return table
}
