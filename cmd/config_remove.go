package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var forceRemove bool

var configRemoveCmd = &cobra.Command{
	Use:   "remove <label>",
	Short: "Remove a config (<config_label>)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		label := args[0]
		out := cmd.OutOrStdout()

		active, _, _ := profiles.Active()

		if label == active && !forceRemove {
			if !confirm(cmd, fmt.Sprintf("Config %q is currently active. Remove it anyway? [y/N]: ", label)) {
				fmt.Fprintln(out, "Aborted.")
				return nil
			}
		}

		if err := profiles.Remove(label); err != nil {
			return err
		}

		fmt.Fprintf(out, "Removed configuration %q\n", label)
		return nil
	},
}

func init() {
	configRemoveCmd.Flags().BoolVarP(&forceRemove, "force", "f", false, "remove the active config without asking")
	configCmd.AddCommand(configRemoveCmd)
}
