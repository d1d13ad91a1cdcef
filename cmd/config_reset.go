package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configResetCmd = &cobra.Command{
	Use:   "reset [label]",
	Short: "Reset the current or the given config to default values",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var label string
		if len(args) == 1 {
			label = args[0]
		} else {
			var err error
			if label, _, err = profiles.Active(); err != nil {
				return err
			}
		}

		if err := profiles.Reset(label); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Reset config %q: %s\n", label, profiles.Path(label))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configResetCmd)
}
