package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCommand builds the command tree for app.
func NewRootCommand(app *App) *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "brewpulse",
		Short:         "Order coffee and run the coffee queue from the terminal",
		Long:          `brewpulse places coffee orders, follows them live and lets the barista work through the order queue.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initConfig(app.v, cfgFile); err != nil {
				return err
			}
			if !app.v.GetBool("verbose") {
				log.SetOutput(io.Discard)
			}
			return nil
		},
	}
	root.SetOut(app.out)

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.brewpulse.yaml)")
	flags.String("server", "http://localhost:8080", "brewpulsed base URL")
	flags.String("profile", "", "profile file (default is <user config dir>/brewpulse/profile.json)")
	flags.Bool("local", false, "use a store on this machine instead of a server")
	flags.String("local-db", "", "local store file (default is <user config dir>/brewpulse/local.db)")
	flags.BoolP("verbose", "v", false, "log store and connection activity to stderr")
	flags.String("admin-password", "", "admin password accepted by the in-process store")
	flags.Duration("timeout", 10*time.Second, "how long to wait for the store")
	app.v.BindPFlags(flags)

	root.AddCommand(
		newLoginCommand(app),
		newLogoutCommand(app),
		newMenuCommand(app),
		newOrderCommand(app),
		newTrackCommand(app),
		newSuggestCommand(app),
		newQueueCommand(app),
		newStatusCommand(app),
		newServeCommand(app),
		newClearCommand(app),
		newServiceCommand(app),
	)
	return root
}

func initConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName(".brewpulse")
	}

	v.SetEnvPrefix("BREWPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	}
	return nil
}

// Execute runs the client until ctx is cancelled.
func Execute(ctx context.Context) int {
	app := NewApp(viper.New())
	if err := NewRootCommand(app).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
