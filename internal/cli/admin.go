package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"brewpulse/internal/admin"
	"brewpulse/internal/parse"
	"brewpulse/internal/profile"
	"brewpulse/internal/syncctl"
)

// withBoard runs fn against a live admin flow.
func (a *App) withBoard(cmd *cobra.Command, fn func(f *admin.Flow, ctl *syncctl.Controller) error) error {
	_, _, b, err := a.session(profile.RoleAdmin)
	if err != nil {
		return err
	}
	ctl, err := a.live(cmd.Context(), b)
	if err != nil {
		return err
	}
	defer ctl.Stop()

	f := admin.New(ctl, admin.NewNotifier(admin.DefaultToastTTL, nil))
	defer f.Close()
	return fn(f, ctl)
}

func newQueueCommand(app *App) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Show the order queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withBoard(cmd, func(f *admin.Flow, ctl *syncctl.Controller) error {
				out := cmd.OutOrStdout()
				render := func() {
					if t, ok := f.Toast(); ok {
						fmt.Fprintln(out, "*", t.Message())
					}
					board := f.Board()
					service := "open"
					if !board.ServiceOpen {
						service = "closed"
					}
					fmt.Fprintf(out, "%d orders, %d active, %d completed (%.0f%%). Service is %s.\n",
						board.Stats.Total, board.Stats.Active, board.Stats.Completed, board.Stats.CompletionRatio*100, service)
					if len(board.Orders) > 0 {
						printOrders(out, board.Orders, time.Now())
					}
				}
				render()
				if !watch {
					return nil
				}
				return watchChanges(cmd, ctl, render)
			})
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep the queue open and announce new orders")
	return cmd
}

func newStatusCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status ID STATUS",
		Short: "Move an order to PENDING, PREPARING or COMPLETED",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := parse.Status(args[1])
			if err != nil {
				return err
			}
			return app.withBoard(cmd, func(f *admin.Flow, _ *syncctl.Controller) error {
				if err := f.SetStatus(cmd.Context(), args[0], status); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Order %s is %s.\n", args[0], status)
				return nil
			})
		},
	}
}

func newServeCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "serve ID",
		Short: "Mark an order as served",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withBoard(cmd, func(f *admin.Flow, _ *syncctl.Controller) error {
				if err := f.ServeOrder(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Order %s served.\n", args[0])
				return nil
			})
		},
	}
}

func newClearCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "clear ID...",
		Short: "Remove orders from the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withBoard(cmd, func(f *admin.Flow, _ *syncctl.Controller) error {
				for _, id := range args {
					if err := f.ClearOrder(cmd.Context(), id); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Order %s cleared.\n", id)
				}
				return nil
			})
		},
	}
}

func newServiceCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:       "service [on|off]",
		Short:     "Show or switch whether new orders are accepted",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_, _, b, err := app.session(profile.RoleNone)
				if err != nil {
					return err
				}
				open, err := b.ServiceOpen(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), serviceText(open))
				return nil
			}

			open := args[0] == "on"
			return app.withBoard(cmd, func(f *admin.Flow, _ *syncctl.Controller) error {
				if err := f.ToggleService(cmd.Context(), open); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), serviceText(open))
				return nil
			})
		},
	}
}

func serviceText(open bool) string {
	if open {
		return "Service is open: new orders are accepted."
	}
	return "Service is closed: new orders are not accepted."
}
