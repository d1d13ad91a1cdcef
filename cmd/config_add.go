package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangaext/internal/config"
)

var flagFrom string

var configAddCmd = &cobra.Command{
	Use:   "add [label]",
	Short: "Create a new config, from the defaults or an existing file (--from)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var label string
		if len(args) == 1 {
			label = args[0]
		} else {
			fmt.Fprint(cmd.OutOrStdout(), "Enter label for new config: ")
			line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			label = strings.TrimSpace(line)
		}

		if flagFrom != "" {
			if err := profiles.Import(label, flagFrom); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %s as %q\n", flagFrom, label)
			return nil
		}

		path, err := profiles.Create(label, config.DefaultConfig())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created new config: %s\n", path)
		return nil
	},
}

func init() {
	configAddCmd.Flags().StringVar(&flagFrom, "from", "", "import this YAML file instead of the defaults")
	configCmd.AddCommand(configAddCmd)
}
