package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangaext/internal/config"
)

// profiles is the config profile directory the config commands manage.
var profiles = config.DefaultProfiles()

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config files for mangaext",
	RunE:  showConfig,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective config",
	Args:  cobra.NoArgs,
	RunE:  showConfig,
}

func showConfig(cmd *cobra.Command, _ []string) error {
	cfg, used, err := loadConfig(config.Options{})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Loaded config from:\n  %s\n\n", used)
	cfg.Print(out)
	return nil
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
