package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangaext/internal/config"
	"github.com/brogergvhs/mangaext/internal/model"
	"github.com/brogergvhs/mangaext/internal/providers"
	"github.com/brogergvhs/mangaext/internal/providers/generic"
)

var (
	flagSearchPage  int
	flagFilters     []string
	flagListFilters bool
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the available sources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(config.Options{}, false)
		if err != nil {
			return err
		}
		defer a.Close()

		return printSources(cmd.OutOrStdout(), a.registry.List())
	},
}

var popularCmd = &cobra.Command{
	Use:   "popular [page]",
	Short: "Show the popular list of a source",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runListing(cmd, args, func(a *app, src providers.Source, page int) (model.Listing, error) {
			return a.runner.Popular(cmd.Context(), src, page)
		})
	},
}

var latestCmd = &cobra.Command{
	Use:   "latest [page]",
	Short: "Show the latest updates of a source",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runListing(cmd, args, func(a *app, src providers.Source, page int) (model.Listing, error) {
			return a.runner.Latest(cmd.Context(), src, page)
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Search a source by keyword and filters",
	Long: "Search a source. Filters are given as key=value, e.g. --filter genre=action " +
		"--filter sort=name:asc. Use --list-filters to see what a source accepts.",
	RunE: runSearch,
}

var detailsCmd = &cobra.Command{
	Use:   "details <url>",
	Short: "Show the details of a series",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, src, err := setupWithSource(config.Options{}, false)
		if err != nil {
			return err
		}
		defer a.Close()

		m, err := a.runner.Details(cmd.Context(), src, model.Manga{URL: siteKey(args[0])})
		if err != nil {
			return err
		}

		printDetails(cmd.OutOrStdout(), m)
		return nil
	},
}

var chaptersCmd = &cobra.Command{
	Use:   "chapters <url>",
	Short: "List the chapters of a series, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, src, err := setupWithSource(config.Options{}, false)
		if err != nil {
			return err
		}
		defer a.Close()

		chs, err := a.runner.Chapters(cmd.Context(), src, model.Manga{URL: siteKey(args[0])})
		if err != nil {
			return err
		}

		return printChapters(cmd.OutOrStdout(), chs)
	},
}

var pagesCmd = &cobra.Command{
	Use:   "pages <chapter-url>",
	Short: "List the page images of a chapter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, src, err := setupWithSource(config.Options{}, false)
		if err != nil {
			return err
		}
		defer a.Close()

		pages, err := a.runner.Pages(cmd.Context(), src, model.Chapter{URL: siteKey(args[0])})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, p := range pages {
			if p.ImageURL != "" {
				fmt.Fprintf(out, "%3d  %s\n", p.Index+1, p.ImageURL)
			} else {
				fmt.Fprintf(out, "%3d  (text) %s\n", p.Index+1, p.Text)
			}
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVar(&flagSearchPage, "page", 1, "result page")
	searchCmd.Flags().StringArrayVarP(&flagFilters, "filter", "f", nil, "filter as key=value (repeatable)")
	searchCmd.Flags().BoolVar(&flagListFilters, "list-filters", false, "print the filters of the source and exit")

	rootCmd.AddCommand(sourcesCmd, popularCmd, latestCmd, searchCmd, detailsCmd, chaptersCmd, pagesCmd)
}

func runListing(cmd *cobra.Command, args []string, fetch func(*app, providers.Source, int) (model.Listing, error)) error {
	page, err := pageArg(args)
	if err != nil {
		return err
	}

	a, src, err := setupWithSource(config.Options{}, false)
	if err != nil {
		return err
	}
	defer a.Close()

	l, err := fetch(a, src, page)
	if err != nil {
		return err
	}

	return printListing(cmd.OutOrStdout(), l, page)
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, src, err := setupWithSource(config.Options{}, false)
	if err != nil {
		return err
	}
	defer a.Close()

	filters := a.runner.Filters(cmd.Context(), src)
	if flagListFilters {
		printFilters(cmd.OutOrStdout(), filters)
		return nil
	}

	filters, err = filters.Apply(flagFilters)
	if err != nil {
		return err
	}

	l, err := a.runner.Search(cmd.Context(), src, max(1, flagSearchPage), strings.Join(args, " "), filters)
	if err != nil {
		if providers.IsInvalidQuery(err) {
			return fmt.Errorf("%s: %w", src.Name(), err)
		}
		return err
	}

	return printListing(cmd.OutOrStdout(), l, flagSearchPage)
}

func pageArg(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}

	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid page %q", args[0])
	}

	return n, nil
}

// siteKey turns a pasted link into the site-relative key sources expect.
// Relative keys pass through.
func siteKey(arg string) string {
	arg = strings.TrimSpace(arg)
	if strings.Contains(arg, "://") {
		return generic.RelativePath(arg)
	}

	return arg
}

func printSources(w io.Writer, srcs []providers.Source) error {
	tw := tabwriter.NewWriter(w, 0, 0, 4, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tLANG\tURL")
	for _, s := range srcs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID(), s.Name(), s.Lang(), s.BaseURL())
	}

	return tw.Flush()
}

func printListing(w io.Writer, l model.Listing, page int) error {
	if len(l.Mangas) == 0 {
		fmt.Fprintln(w, "No results.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 4, ' ', 0)
	_, _ = fmt.Fprintln(tw, "#\tTITLE\tURL")
	for i, m := range l.Mangas {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, m.Title, m.URL)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if l.HasNextPage {
		fmt.Fprintf(w, "\nMore results on page %d.\n", page+1)
	}
	return nil
}

func printDetails(w io.Writer, m model.Manga) {
	fmt.Fprintf(w, "Title:       %s\n", m.Title)
	fmt.Fprintf(w, "URL:         %s\n", m.URL)
	fmt.Fprintf(w, "Author:      %s\n", m.Author)
	fmt.Fprintf(w, "Artist:      %s\n", m.Artist)
	fmt.Fprintf(w, "Status:      %s\n", m.Status)
	if len(m.Genres) > 0 {
		fmt.Fprintf(w, "Genres:      %s\n", strings.Join(m.Genres, ", "))
	}
	if m.ThumbnailURL != "" {
		fmt.Fprintf(w, "Cover:       %s\n", m.ThumbnailURL)
	}
	fmt.Fprintf(w, "\n%s\n", m.Description)
}

func printChapters(w io.Writer, chs []model.Chapter) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NUMBER\tNAME\tGROUP\tDATE\tURL")
	for _, c := range chs {
		num := "-"
		if c.Number >= 0 {
			num = generic.FormatNumber(c.Number)
		}

		date := ""
		if c.UploadedAt > 0 {
			date = time.UnixMilli(c.UploadedAt).Format("2006-01-02")
		}

		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", num, c.Name, c.Scanlator, date, c.URL)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d chapters.\n", len(chs))
	return nil
}

func printFilters(w io.Writer, fl providers.FilterList) {
	if len(fl) == 0 {
		fmt.Fprintln(w, "This source has no filters.")
		return
	}

	for _, f := range fl {
		if f.Kind == providers.FilterHeader {
			fmt.Fprintf(w, "# %s\n", f.Name)
			continue
		}

		fmt.Fprintf(w, "%s (%s)\n", f.Key, f.Name)
		for _, o := range f.Options {
			fmt.Fprintf(w, "    %s = %s\n", o.Value, o.Name)
		}
	}
}
