package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"brewpulse/internal/guest"
	"brewpulse/internal/order"
	"brewpulse/internal/parse"
	"brewpulse/internal/profile"
	"brewpulse/internal/suggest"
	"brewpulse/internal/syncctl"
)

func newMenuCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "List the coffees on the menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, b, err := app.session(profile.RoleNone)
			if err != nil {
				return err
			}
			menu, err := b.Menu(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "COFFEE\tMILK\tDESCRIPTION")
			for _, c := range menu {
				milk := "-"
				if def, ok := c.DefaultMilk(); ok {
					milk = string(def)
				}
				name := c.Name
				if c.ComingSoon {
					name += " (coming soon)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", name, milk, c.Description)
			}
			return w.Flush()
		},
	}
}

func newOrderCommand(app *App) *cobra.Command {
	var coffee, size, strength, milk, name string

	cmd := &cobra.Command{
		Use:   "order",
		Short: "Place a coffee order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, p, b, err := app.session(profile.RoleGuest)
			if err != nil {
				return err
			}
			menu, err := b.Menu(cmd.Context())
			if err != nil {
				return err
			}

			if name == "" {
				name = p.GuestName
			}
			form := guest.NewForm(name)
			c, err := parse.Coffee(menu, coffee)
			if err != nil {
				return err
			}
			form.CoffeeType = c.ID
			if form.Size, err = parse.Size(size); err != nil {
				return err
			}
			if strength != "" {
				if form.Percentage, err = parse.Percentage(strength); err != nil {
					return err
				}
			}
			if form.MilkLevel, err = parse.MilkLevel(milk); err != nil {
				return err
			}

			ctl, err := app.live(cmd.Context(), b)
			if err != nil {
				return err
			}
			defer ctl.Stop()

			flow, err := guest.New(ctl, menu, profiles, b)
			if err != nil {
				return err
			}
			id, err := flow.SubmitOrder(cmd.Context(), form)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order %s placed. Follow it with: brewpulse track --watch\n", id)
			return nil
		},
	}
	cmd.Flags().StringVar(&coffee, "coffee", "", "coffee from the menu")
	cmd.Flags().StringVar(&size, "size", "", "Small, Medium or Large (default Medium)")
	cmd.Flags().StringVar(&strength, "strength", "", "coffee percentage, 0 to 100 in steps of 5 (default 50)")
	cmd.Flags().StringVar(&milk, "milk", "", "Light, Standard or Extra for milk coffees")
	cmd.Flags().StringVar(&name, "name", "", "name for this order (default: the signed-in name)")
	cmd.MarkFlagRequired("coffee")
	return cmd
}

func newTrackCommand(app *App) *cobra.Command {
	var watch, forget bool

	cmd := &cobra.Command{
		Use:   "track",
		Short: "Show the status of your orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles, _, b, err := app.session(profile.RoleGuest)
			if err != nil {
				return err
			}
			menu, err := b.Menu(cmd.Context())
			if err != nil {
				return err
			}
			ctl, err := app.live(cmd.Context(), b)
			if err != nil {
				return err
			}
			defer ctl.Stop()

			flow, err := guest.New(ctl, menu, profiles, b)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if forget {
				fmt.Fprintf(out, "Forgot %d finished orders.\n", flow.ForgetCompleted())
			}

			render := func() {
				tracked := flow.Tracked()
				if len(tracked) == 0 {
					fmt.Fprintln(out, "You have no orders in the queue.")
					return
				}
				printOrders(out, tracked, time.Now())
			}
			render()
			if !watch {
				return nil
			}
			return watchChanges(cmd, ctl, render)
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep following status changes")
	cmd.Flags().BoolVar(&forget, "forget-completed", false, "stop tracking orders that are finished or cleared")
	return cmd
}

func newSuggestCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "suggest MOOD...",
		Short: "Ask the barista what to drink",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, b, err := app.session(profile.RoleNone)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), suggest.OrFallback(cmd.Context(), b, strings.Join(args, " ")))
			return nil
		},
	}
}

// watchChanges calls render after every mirror change until the command's
// context ends. While the connection is down the advisory is shown instead.
func watchChanges(cmd *cobra.Command, ctl *syncctl.Controller, render func()) error {
	changed := make(chan struct{}, 1)
	remove := ctl.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer remove()

	out := cmd.OutOrStdout()
	for {
		select {
		case <-cmd.Context().Done():
			return nil
		case <-changed:
			if ctl.State() == syncctl.Errored {
				fmt.Fprintln(out, "!", ctl.Advisory())
				continue
			}
			fmt.Fprintln(out)
			render()
		}
	}
}

func printOrders(out io.Writer, orders []order.Order, now time.Time) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tGUEST\tCOFFEE\tSIZE\tSTRENGTH\tMILK\tSTATUS\tAGE")
	for _, o := range orders {
		milk := "-"
		if o.MilkLevel != nil {
			milk = string(*o.MilkLevel)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d%%\t%s\t%s\t%s\n",
			o.ID, o.GuestName, o.CoffeeType, o.Size, o.Percentage, milk, o.Status, age(now, o.CreatedAt()))
	}
	w.Flush()
}

func age(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
}
