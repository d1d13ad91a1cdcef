package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/brogergvhs/mangaext/internal/chapters"
	"github.com/brogergvhs/mangaext/internal/config"
	"github.com/brogergvhs/mangaext/internal/downloader"
	"github.com/brogergvhs/mangaext/internal/model"
	"github.com/brogergvhs/mangaext/internal/providers"
	"github.com/brogergvhs/mangaext/internal/ui"
)

var (
	// selection
	flagChapter  string
	flagRange    string
	flagList     string
	flagAllowExt string

	// runtime
	flagOutput         string
	flagImageWorkers   int
	flagChapterWorkers int
	flagKeepFolders    bool
	flagDryRun         bool
	flagSkipBroken     bool

	// headers/auth
	flagCookie     string
	flagCookieFile string
	flagUserAgent  string
)

func init() {
	readCmd := &cobra.Command{
		Use:   "read <url>",
		Short: "Download chapters of a series as CBZ files. Uses the defaults from the selected config, overwritten by CLI flags",
		Args:  cobra.ExactArgs(1),
		RunE:  runRead,
	}

	// selection
	readCmd.Flags().StringVar(&flagChapter, "chapter", "", "single chapter by number or index (e.g. 28.5 or 5)")
	readCmd.Flags().StringVar(&flagRange, "range", "", "chapters by number, inclusive (e.g. 5-12)")
	readCmd.Flags().StringVar(&flagList, "list", "", "specific chapter numbers or indices (e.g. 1,3,5)")
	readCmd.Flags().StringVar(&flagAllowExt, "allow-ext", "", "Allowed image extensions (e.g. \"webp|jpg|png\")")

	// runtime
	readCmd.Flags().StringVarP(&flagOutput, "output", "o", "", "output folder for CBZ files")
	readCmd.Flags().IntVar(&flagImageWorkers, "image-workers", 5, "parallel image downloads per chapter")
	readCmd.Flags().IntVar(&flagChapterWorkers, "chapter-workers", 2, "parallel chapter downloads")
	readCmd.Flags().BoolVar(&flagKeepFolders, "keep-folders", false, "keep temporary folders")
	readCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "show what would be downloaded, don’t download")
	readCmd.Flags().BoolVar(&flagSkipBroken, "skip-broken", false, "skip failed images instead of failing the whole chapter")

	// headers/auth
	readCmd.Flags().StringVar(&flagCookie, "cookie", "", "cookie string, e.g. \"key=value; other=123\"")
	readCmd.Flags().StringVar(&flagCookieFile, "cookie-file", "", "path to a text file with cookies (one header line)")
	readCmd.Flags().StringVar(&flagUserAgent, "user-agent", "", "override User-Agent")

	rootCmd.AddCommand(readCmd)
}

func runRead(cmd *cobra.Command, args []string) error {
	opts := config.Options{
		Output:      flagOutput,
		KeepFolders: flagKeepFolders,
		SkipBroken:  flagSkipBroken,
		Cookie:      flagCookie,
		CookieFile:  flagCookieFile,
		UserAgent:   flagUserAgent,
	}
	if cmd.Flags().Changed("image-workers") {
		opts.ImageWorkers = flagImageWorkers
	}
	if cmd.Flags().Changed("chapter-workers") {
		opts.ChapterWorkers = flagChapterWorkers
	}

	a, src, err := setupWithSource(opts, true)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	if flagAllowExt != "" {
		cfg.AllowExt = splitExt(flagAllowExt)
	}

	out := cmd.OutOrStdout()
	if cfg.Debug {
		fmt.Fprintln(out, "Full config:")
		cfg.Print(out)
		fmt.Fprintln(out)
	}

	ctx := cmd.Context()
	manga, err := a.runner.Details(ctx, src, model.Manga{URL: siteKey(args[0])})
	if err != nil {
		return err
	}

	all, err := a.runner.Chapters(ctx, src, manga)
	if err != nil {
		return err
	}

	sel := chapters.Selection{Chapter: flagChapter, Range: flagRange, List: flagList}
	if sel.Empty() {
		fmt.Fprintf(out, "Found %d chapters of %s.\n\n", len(all), manga.Title)
	}

	selected, err := chapters.Filter(chapters.Wrap(manga.Title, all), sel)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		return fmt.Errorf("no chapters selected")
	}

	if flagDryRun {
		fmt.Fprintf(out, "Dry-run: %d chapters selected.\n\n", len(selected))
		for i, ch := range selected {
			fmt.Fprintf(out, "%3d) %s  [%s]\n    %s\n", i+1, ch.Name, ch.Label(), ch.URL)
		}
		return nil
	}

	return download(cmd, a, src, cfg, selected)
}

func download(cmd *cobra.Command, a *app, src providers.Source, cfg *config.Config, selected []chapters.Chapter) error {
	out := cmd.OutOrStdout()

	dl := downloader.New(src.Client(providers.OpPages), downloader.Options{
		SkipBroken:  cfg.SkipBroken,
		KeepFolders: cfg.KeepFolders,
		AllowExt:    cfg.AllowExt,
		Timeout:     cfg.HTTP.Timeout,
		Log:         a.log,
	})

	rp := ui.NewReadProgress(out, selected[0].Series, len(selected))
	stats := &ui.Stats{}
	start := time.Now()

	err := dl.Run(cmd.Context(), selected, func(ctx context.Context, ch model.Chapter) ([]model.Page, error) {
		return a.runner.Pages(ctx, src, ch)
	}, downloader.Batch{
		Output:         cfg.Output,
		Referer:        src.BaseURL() + "/",
		ImageWorkers:   cfg.ImageWorkers,
		ChapterWorkers: cfg.ChapterWorkers,
		NewProgress: func(ch chapters.Chapter) downloader.Progress {
			return rp.Chapter(ch)
		},
		Stats: stats,
	})
	rp.Close()

	stats.PrintSummary(out, time.Since(start))
	if err != nil {
		a.log.Errorf("%v\n", err)
		return fmt.Errorf("%d of %d chapters failed", len(selected)-int(stats.TotalChapters.Load()), len(selected))
	}

	fmt.Fprintln(out, "\nAll done.")
	return nil
}

func splitExt(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ',' || r == ' '
	})

	out := []string{}
	for _, f := range fields {
		f = strings.ToLower(strings.TrimSpace(f))
		if f != "" {
			out = append(out, f)
		}
	}

	return out
}
