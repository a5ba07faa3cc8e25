package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/steam-news/internal/agent/fetch"
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
		Use:   "steam-news-scheduler",
		Short: "Background scheduler for steam-news",
		Long: `Periodically fetches news for tracked titles and republishes the feed.
Serves the published files and a health check over HTTP.`,
		RunE:         runScheduler,
		SilenceUsage: true,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScheduler(cmd *cobra.Command, args []string) error {
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

	log.Info().Msg("Starting steam-news scheduler")

	repo, err = sqlite.New(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer repo.Close()

	if err := repo.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create agents
	client := steam.NewClient(cfg.Steam, log)
	fetchAgent := fetch.NewAgent(client, repo, cfg.Fetch, cfg.Steam.FeedFilter, log)
	publisherAgent := publisher.NewAgent(repo, feed.NewWriter(cfg.Publishing, log),
		cfg.Publishing, cfg.Steam.StoreURL, cfg.Fetch.Retention, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	state := &jobState{}

	srv := &http.Server{
		Addr:              ":" + healthPort(),
		Handler:           newRouter(feed.OutputFiles(cfg.Publishing), state),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go startHealthServer(srv)

	// A slow run must not overlap the next tick
	c := cron.New(cron.WithLogger(cronLogger{log}), cron.WithChain(cron.SkipIfStillRunning(cronLogger{log})))

	_, err = c.AddFunc(cfg.Scheduler.Cron, func() {
		runCycle(ctx, fetchAgent, publisherAgent, state)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule refresh job: %w", err)
	}
	log.Info().Str("cron", cfg.Scheduler.Cron).Msg("Refresh job scheduled")

	// Start scheduler
	c.Start()
	log.Info().Msg("Scheduler started")

	<-ctx.Done()

	log.Info().Msg("Shutting down scheduler")
	<-c.Stop().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runCycle(ctx context.Context, fetchAgent *fetch.Agent, publisherAgent *publisher.Agent, state *jobState) {
	log.Info().Msg("Running scheduled refresh")

	result, err := fetchAgent.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Scheduled fetch failed")
		return
	}
	log.Info().
		Int("fetched", result.Fetched).
		Int("cached", result.Cached).
		Int("failed", result.Failed).
		Msg("Scheduled fetch completed")

	published, err := publisherAgent.Publish(ctx)
	if err != nil {
		if errors.Is(err, feed.ErrNoEntries) {
			log.Warn().Msg("Nothing to publish yet")
			return
		}
		log.Error().Err(err).Msg("Scheduled publish failed")
		return
	}
	state.lastPublish.Store(time.Now().Unix())

	log.Info().
		Int("entries", published.Entries).
		Msg("Scheduled publish completed")
}

// jobState is read by the health handler
type jobState struct {
	lastPublish atomic.Int64
}

// cronLogger adapts our logger for cron
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// healthPort prefers PORT as set by hosting platforms
func healthPort() string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	if cfg.Scheduler.HealthPort != "" {
		return cfg.Scheduler.HealthPort
	}
	return "10000"
}

// newRouter serves the health check and only the files a publish writes
func newRouter(files *feed.WriteResult, state *jobState) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
		if ts := state.lastPublish.Load(); ts > 0 {
			fmt.Fprintf(w, " last_publish=%s", time.Unix(ts, 0).UTC().Format(time.RFC3339))
		}
	}).Methods(http.MethodGet, http.MethodHead)

	for _, path := range []string{files.RSSPath, files.AtomPath, files.JSONPath, files.StylesheetPath} {
		name := filepath.Base(path)
		if path == "" || strings.HasPrefix(name, ".") {
			continue
		}
		r.HandleFunc("/"+name, serveFile(path)).Methods(http.MethodGet, http.MethodHead)
	}

	return r
}

func serveFile(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		http.ServeFile(w, req, path)
	}
}

func startHealthServer(srv *http.Server) {
	log.Info().Str("addr", srv.Addr).Msg("Health check server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Health server failed")
	}
}
