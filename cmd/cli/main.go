package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/steam-news/internal/agent/fetch"
	"github.com/steam-news/internal/agent/library"
	"github.com/steam-news/internal/agent/publisher"
	"github.com/steam-news/internal/config"
	"github.com/steam-news/internal/feed"
	"github.com/steam-news/internal/source/steam"
	"github.com/steam-news/internal/storage"
	"github.com/steam-news/internal/storage/sqlite"
	"github.com/steam-news/pkg/logger"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
	repo    storage.Repository
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "steam-news",
		Short: "Merged news feed for your Steam library",
		Long: `Fetches the news of every tracked Steam title, stores it locally and
publishes a single combined RSS feed (plus Atom and JSON siblings).`,
		PersistentPreRunE:  initializeApp,
		PersistentPostRunE: closeApp,
		SilenceUsage:       true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(publishCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(gamesCmd())
	rootCmd.AddCommand(statsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initializeApp(cmd *cobra.Command, args []string) error {
	var err error

	// Load config
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	// An unusable store is fatal before anything else runs
	repo, err = sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", cfg.Database.DSN, err)
	}

	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func closeApp(cmd *cobra.Command, args []string) error {
	if repo == nil {
		return nil
	}
	return repo.Close()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newFetchAgent(feedFilter string) *fetch.Agent {
	client := steam.NewClient(cfg.Steam, log)
	return fetch.NewAgent(client, repo, cfg.Fetch, feedFilter, log)
}

func newPublisher() *publisher.Agent {
	writer := feed.NewWriter(cfg.Publishing, log)
	return publisher.NewAgent(repo, writer, cfg.Publishing, cfg.Steam.StoreURL, cfg.Fetch.Retention, log)
}

func newLibraryAgent() *library.Agent {
	client := steam.NewClient(cfg.Steam, log)
	return library.NewAgent(client, steam.NewAppDirectory(client), repo, cfg.Library, log)
}

// ============ FETCH / PUBLISH ============

func fetchCmd() *cobra.Command {
	var feeds string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch news for every tracked title, respecting the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()
			return runFetch(ctx, feedFilter(cmd, feeds))
		},
	}

	cmd.Flags().StringVar(&feeds, "feeds", "", "comma separated feed names to request (overrides steam.feed_filter)")
	return cmd
}

func feedFilter(cmd *cobra.Command, flagValue string) string {
	if cmd.Flags().Changed("feeds") {
		return flagValue
	}
	return cfg.Steam.FeedFilter
}

func runFetch(ctx context.Context, filter string) error {
	result, err := newFetchAgent(filter).Run(ctx)
	if err != nil && result == nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	fmt.Printf("\n=== Fetch Results ===\n")
	fmt.Printf("Cached:        %d\n", result.Cached)
	fmt.Printf("Fetched:       %d\n", result.Fetched)
	fmt.Printf("Failed:        %d\n", result.Failed)
	fmt.Printf("Skipped:       %d\n", result.Skipped)
	fmt.Printf("Current items: %d\n", result.CurrentItems)
	fmt.Printf("Duration:      %s\n", result.Duration)

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors:\n")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}

	return err
}

func publishCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Write the combined feed from stored news",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "" {
				cfg.Publishing.OutputPath = output
			}
			ctx, cancel := signalContext()
			defer cancel()
			return runPublish(ctx)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (overrides publishing.output_path)")
	return cmd
}

func runPublish(ctx context.Context) error {
	result, err := newPublisher().Publish(ctx)
	if err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}

	fmt.Printf("\n=== Publish Result ===\n")
	fmt.Printf("Entries:  %d\n", result.Entries)
	fmt.Printf("Skipped:  %d\n", result.Skipped)
	for _, p := range result.Files.Paths() {
		fmt.Printf("Written:  %s\n", p)
	}
	if result.Files.StylesheetPath != "" {
		fmt.Printf("Style:    %s\n", result.Files.StylesheetPath)
	}
	return nil
}

func runCmd() *cobra.Command {
	var (
		feeds  string
		output string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, then publish",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "" {
				cfg.Publishing.OutputPath = output
			}
			ctx, cancel := signalContext()
			defer cancel()

			if err := runFetch(ctx, feedFilter(cmd, feeds)); err != nil {
				return err
			}
			return runPublish(ctx)
		},
	}

	cmd.Flags().StringVar(&feeds, "feeds", "", "comma separated feed names to request (overrides steam.feed_filter)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (overrides publishing.output_path)")
	return cmd
}

// ============ GAMES COMMANDS ============

func gamesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "games",
		Short: "Manage tracked titles",
	}

	cmd.AddCommand(gamesListCmd())
	cmd.AddCommand(gamesToggleCmd("enable", true))
	cmd.AddCommand(gamesToggleCmd("disable", false))
	cmd.AddCommand(gamesAddProfileCmd())
	cmd.AddCommand(gamesAddPlatformCmd())
	return cmd
}

func gamesListCmd() *cobra.Command {
	var like string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked titles",
		RunE: func(cmd *cobra.Command, args []string) error {
			titles, err := newLibraryAgent().List(context.Background(), like)
			if err != nil {
				return fmt.Errorf("failed to list titles: %w", err)
			}

			fmt.Printf("\n=== Titles (%d) ===\n\n", len(titles))
			for _, t := range titles {
				mark := " "
				if t.ShouldFetch {
					mark = "x"
				}
				fmt.Printf("[%s] %7d  %s\n", mark, t.ID, t.Name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&like, "like", "", "only titles whose name contains this text")
	return cmd
}

func gamesToggleCmd(use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <appid>...",
		Short: fmt.Sprintf("%s fetching for the given titles", map[bool]string{true: "Enable", false: "Disable"}[enabled]),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			n, err := newLibraryAgent().SetFetching(context.Background(), ids, enabled)
			if err != nil {
				return fmt.Errorf("failed to update titles: %w", err)
			}
			fmt.Printf("%d of %d titles updated\n", n, len(ids))
			return nil
		},
	}
}

func parseIDs(args []string) ([]uint, error) {
	ids := make([]uint, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseUint(a, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid app id %q: %w", a, err)
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

func gamesAddProfileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-profile <steamid64>",
		Short: "Track every title owned by a public profile, plus the platform titles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.RequireAPIKey(); err != nil {
				return err
			}
			if _, err := strconv.ParseUint(args[0], 10, 64); err != nil {
				return fmt.Errorf("steam id must be numeric: %w", err)
			}

			ctx, cancel := signalContext()
			defer cancel()

			result, err := newLibraryAgent().SeedFromProfile(ctx, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Library Import ===\n")
			fmt.Printf("Owned:    %d\n", result.Owned)
			fmt.Printf("Upserted: %d\n", result.Upserted)
			fmt.Printf("Enabled:  %d\n", result.Enabled)
			fmt.Printf("Disabled: %d\n", result.Disabled)
			fmt.Printf("Pruned:   %d\n", result.Pruned)
			return nil
		},
	}
}

func gamesAddPlatformCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-platform",
		Short: "Track the Steam platform news feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := newLibraryAgent().AddPlatformTitles(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("%d platform titles added or renamed\n", n)
			return nil
		},
	}
}

// ============ STATS ============

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store row counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := repo.Stats(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Database:       %s\n", cfg.Database.DSN)
			fmt.Printf("Titles:         %d (%d fetching)\n", s.Titles, s.FetchingTitles)
			fmt.Printf("Cache horizons: %d\n", s.Horizons)
			fmt.Printf("News items:     %d\n", s.NewsItems)
			fmt.Printf("Links:          %d\n", s.Links)
			return nil
		},
	}
}
