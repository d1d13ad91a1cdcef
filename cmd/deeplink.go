package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangaext/internal/config"
	"github.com/brogergvhs/mangaext/internal/providers/cubari"
)

var flagQueryOnly bool

var deeplinkCmd = &cobra.Command{
	Use:   "deeplink <url>",
	Short: "Open a cubari, imgur, reddit, imgchest, catbox or mangadex link through Cubari",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q, err := cubari.ProxyQuery(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, q)
		if flagQueryOnly {
			return nil
		}

		a, err := setup(config.Options{}, false)
		if err != nil {
			return err
		}
		defer a.Close()

		src, err := a.registry.Get(cubari.ID)
		if err != nil {
			return err
		}

		l, err := a.runner.Search(cmd.Context(), src, 1, q, nil)
		if err != nil {
			return err
		}

		fmt.Fprintln(out)
		return printListing(out, l, 1)
	},
}

func init() {
	deeplinkCmd.Flags().BoolVar(&flagQueryOnly, "query-only", false, "print the search query without running it")
	rootCmd.AddCommand(deeplinkCmd)
}
