package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangaext/internal/config"
	"github.com/brogergvhs/mangaext/internal/ui"
)

var (
	flagIgnoreConfig bool
	flagDebug        bool
	flagConfigPath   string
	flagSource       string
)

var rootCmd = &cobra.Command{
	Use:           "mangaext",
	Short:         "Browse and read manga through the bundled site sources",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagIgnoreConfig, "ignore-config", false, "ignore config and use only CLI flags")
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "load this config file instead of the active profile")
	rootCmd.PersistentFlags().StringVarP(&flagSource, "source", "s", "", "source id (see `mangaext sources`)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves the config for a command. Flag overrides specific to
// a command go through opts.
func loadConfig(opts config.Options) (*config.Config, string, error) {
	opts.IgnoreConfig = flagIgnoreConfig
	opts.Path = flagConfigPath
	opts.Debug = flagDebug
	if opts.Source == "" {
		opts.Source = flagSource
	}

	return config.LoadMerged(opts)
}

func newLogger(cfg *config.Config) *ui.Logger {
	l := ui.NewLogger(cfg.Debug)
	l.SetOutput(os.Stderr)
	return l
}
