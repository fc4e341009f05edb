package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/MeduzaReader/internal/article"
	"github.com/TobiSchelling/MeduzaReader/internal/collect"
	"github.com/TobiSchelling/MeduzaReader/internal/config"
	"github.com/TobiSchelling/MeduzaReader/internal/export"
	"github.com/TobiSchelling/MeduzaReader/internal/fetch"
	"github.com/TobiSchelling/MeduzaReader/internal/logging"
	"github.com/TobiSchelling/MeduzaReader/internal/pipeline"
	"github.com/TobiSchelling/MeduzaReader/internal/schedule"
	"github.com/TobiSchelling/MeduzaReader/internal/server"
	"github.com/TobiSchelling/MeduzaReader/internal/store"
	"github.com/TobiSchelling/MeduzaReader/internal/summarize"
	"github.com/TobiSchelling/MeduzaReader/internal/translate"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logCloser  io.Closer
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "meduzareader",
	Short:   "Translated Meduza news reader",
	Long:    "meduzareader fetches Meduza articles, translates them from Russian to Japanese, summarizes them, and keeps them searchable.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		logCloser, err = logging.Setup(cfg.Logging, verbose)
		if err != nil {
			return fmt.Errorf("setting up logging: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scheduleCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("meduzareader", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/meduzareader/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure the feed, translation provider, and storage backend.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show storage and feed status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := st.Count(ctx)
		if err != nil {
			return fmt.Errorf("counting articles: %w", err)
		}

		fmt.Printf("Feed: %s\n", cfg.Feed.URL)
		fmt.Printf("Translation: %s (%s -> %s)\n", cfg.Translation.Provider, cfg.Translation.SourceLang, cfg.Translation.TargetLang)
		fmt.Printf("Storage: %s\n", cfg.Storage.Backend)
		if db, ok := st.(*store.SQLite); ok {
			fmt.Printf("  Path: %s\n", db.Path())
		}
		fmt.Printf("  Articles: %d\n", n)
		return nil
	},
}

// --- fetch command ---

var (
	fetchLimit int
	dryRun     bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch, translate, summarize and store the latest articles",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if dryRun {
			pipe := pipeline.New(pipeline.Deps{Feed: collect.NewFeedReader(cfg.Feed)}, cfg.Pipeline)
			entries, err := pipe.DryRun(ctx, fetchLimit)
			if err != nil {
				return err
			}
			fmt.Printf("[dry-run] Would process %d article(s):\n", len(entries))
			for i, e := range entries {
				fmt.Printf("  %d. %s (%s)\n", i+1, e.Title, e.Published)
			}
			return nil
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		pipe, err := newPipeline(st)
		if err != nil {
			return err
		}

		result, err := pipe.Run(ctx, fetchLimit, printProgress)
		if err != nil {
			return err
		}

		fmt.Printf("\nRun %s complete:\n", result.RunID)
		fmt.Printf("  Feed entries: %d\n", result.Found)
		fmt.Printf("  Attempted: %d\n", result.Attempted)
		fmt.Printf("  Saved: %d\n", result.Saved)
		fmt.Printf("  Duplicates skipped: %d\n", result.Duplicates)
		if failed := result.Failed(); len(failed) > 0 {
			fmt.Printf("  Failed: %d\n", len(failed))
			for _, it := range failed {
				fmt.Printf("    - %s (%s): %v\n", it.Title, it.Stage, it.Err)
			}
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().IntVarP(&fetchLimit, "limit", "n", 0, "Number of articles to process (default from config)")
	fetchCmd.Flags().BoolVar(&dryRun, "dry-run", false, "List the articles that would be processed")
}

func printProgress(p pipeline.Progress) {
	fmt.Println(p)
}

// --- search and export commands ---

var (
	queryRange string
	queryLimit int
	exportOut  string
)

func queryFilter(args []string) (store.Filter, error) {
	dr, err := store.ParseDateRange(queryRange)
	if err != nil {
		return store.Filter{}, err
	}
	f := store.Filter{Range: dr, Limit: queryLimit}
	if len(args) > 0 {
		f.Text = args[0]
	}
	return f, nil
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search stored articles",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		filter, err := queryFilter(args)
		if err != nil {
			return err
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		rows, err := st.Query(ctx, filter)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("No matching articles.")
			return nil
		}
		for i, a := range rows {
			title := article.Deref(a.TranslatedTitle)
			if title == "" {
				title = a.Title
			}
			fmt.Printf("%d. %s\n", i+1, title)
			fmt.Printf("   %s | %s\n", a.Published, a.Link)
			if a.AutoSummary != nil {
				fmt.Printf("   %s\n", *a.AutoSummary)
			}
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [query]",
	Short: "Export stored articles as CSV",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		filter, err := queryFilter(args)
		if err != nil {
			return err
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		rows, err := st.Query(ctx, filter)
		if err != nil {
			return err
		}

		var w io.Writer = os.Stdout
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return fmt.Errorf("creating %s: %w", exportOut, err)
			}
			defer f.Close()
			w = f
		}
		if err := export.WriteCSV(w, rows); err != nil {
			return err
		}
		if exportOut != "" {
			fmt.Printf("Exported %d article(s) to %s\n", len(rows), exportOut)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{searchCmd, exportCmd} {
		c.Flags().StringVar(&queryRange, "range", "all", "Published range: all, today, 7d, 30d")
		c.Flags().IntVar(&queryLimit, "limit", store.DefaultLimit, "Maximum number of articles")
	}
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default stdout)")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		srvCfg := cfg.Server
		if cmd.Flags().Changed("port") {
			srvCfg.Port = servePort
		}
		var runner server.BatchRunner
		if pipe, err := newPipeline(st); err != nil {
			logging.Warnf("Fetching from the web UI is disabled: %v", err)
		} else {
			runner = pipe
		}

		fmt.Printf("Starting server at http://localhost:%d\n", srvCfg.Port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, st, srvCfg, runner)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

// --- schedule command ---

var cronSpec string

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the fetch pipeline on a cron schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		pipe, err := newPipeline(st)
		if err != nil {
			return err
		}

		spec := cfg.Schedule.Cron
		if cronSpec != "" {
			spec = cronSpec
		}
		runner, err := schedule.New(ctx, spec, func(ctx context.Context) error {
			result, err := pipe.Run(ctx, cfg.Pipeline.Limit, nil)
			if err != nil {
				return err
			}
			logging.Infof("Run %s: %d saved, %d duplicates, %d failed", result.RunID, result.Saved, result.Duplicates, len(result.Failed()))
			return nil
		})
		if err != nil {
			return err
		}

		fmt.Println("Scheduler running. Press Ctrl+C to stop")
		runner.Run(ctx)
		return nil
	},
}

func init() {
	scheduleCmd.Flags().StringVar(&cronSpec, "cron", "", "Cron spec (default from config)")
}

func openStore(ctx context.Context) (store.Store, error) {
	storageCfg := cfg.Storage
	storageCfg.DataDir = cfg.GetDataDir()
	st, err := store.Open(ctx, storageCfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", storageCfg.Backend, err)
	}
	if _, ok := st.(*store.Memory); ok {
		logging.Warnf("Using in-memory storage; articles are discarded on exit")
	}
	return st, nil
}

func newPipeline(st store.Store) (*pipeline.Pipeline, error) {
	backend, err := translate.NewBackend(cfg.Translation)
	if err != nil {
		return nil, err
	}

	pipe := pipeline.New(pipeline.Deps{
		Feed:       collect.NewFeedReader(cfg.Feed),
		Content:    fetch.NewRetriever(cfg.Fetch),
		Translator: translate.New(backend, cfg.Translation),
		Summarizer: summarize.New(cfg.Summary),
		Store:      st,
	}, cfg.Pipeline)
	return pipe, nil
}
