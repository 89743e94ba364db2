// cmd/statusboard/main.go
package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/fawad-mazhar/statusboard/internal/api/routes"
	"github.com/fawad-mazhar/statusboard/internal/config"
	"github.com/fawad-mazhar/statusboard/internal/dashboard"
	"github.com/fawad-mazhar/statusboard/internal/orchestrator"
	"github.com/fawad-mazhar/statusboard/internal/queue"
	"github.com/fawad-mazhar/statusboard/internal/reconciler"
	"github.com/fawad-mazhar/statusboard/internal/storage/leveldb"
	"github.com/fawad-mazhar/statusboard/internal/storage/postgres"
	"github.com/fawad-mazhar/statusboard/internal/stream"
	"github.com/fawad-mazhar/statusboard/internal/surface"
)

const shutdownTimeout = 10 * time.Second

var (
	configPath = pflag.String("config", "", "Path to the YAML configuration file")
	capacity   = pflag.Int("capacity", 0, "Number of past executions shown per strip")
	view       = pflag.String("view", "", "Presentation context: index, job or diagram")
	job        = pflag.String("job", "", "Job shown by the job and diagram views")
	printBoard = pflag.Bool("print", false, "Print the board to stdout after every change")
)

func configureLogging(cfg config.LogConfig) {
	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	log.SetOutput(os.Stdout)

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.Warnf("Unknown log level %q, using info", cfg.Level)
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

// applyFlags lets command line flags override the loaded configuration
func applyFlags(cfg *config.Config) {
	if pflag.CommandLine.Changed("capacity") {
		cfg.Display.Capacity = *capacity
	}
	if pflag.CommandLine.Changed("view") {
		cfg.Display.View = *view
	}
	if pflag.CommandLine.Changed("job") {
		cfg.Display.Job = *job
	}
	if pflag.CommandLine.Changed("print") {
		cfg.Display.Print = *printBoard
	}
}

// newRegistry adds the sources that need their own clients to the built-in ones
func newRegistry(closers *[]io.Closer) *stream.Registry {
	registry := stream.NewRegistry()

	if err := registry.Register(config.SourceRabbitMQ, func(cfg *config.Config, logger *log.Entry) (stream.Source, error) {
		return queue.NewRabbitMQ(cfg.RabbitMQ, stream.SourceBackoff(cfg.Source), logger), nil
	}); err != nil {
		log.Fatalf("Failed to register source: %v", err)
	}

	if err := registry.Register(config.SourcePostgres, func(cfg *config.Config, logger *log.Entry) (stream.Source, error) {
		db, err := postgres.NewClient(cfg.Postgres)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, db)
		return stream.NewStoreSource(db, cfg.Source.Job, cfg.Postgres.Limit, cfg.Source.PollPeriod(), logger)
	}); err != nil {
		log.Fatalf("Failed to register source: %v", err)
	}

	return registry
}

func main() {
	pflag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg)
	configureLogging(cfg.Log)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	location, err := cfg.Location()
	if err != nil {
		log.Fatalf("Failed to load timezone: %v", err)
	}

	// Initialize LevelDB client
	store, err := leveldb.NewClient(cfg.LevelDB)
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	defer store.Close()

	// A capacity chosen at runtime wins over the configured one, unless the
	// command line asks for another
	if !pflag.CommandLine.Changed("capacity") {
		if stored, ok, err := store.GetCapacity(); err != nil {
			log.WithError(err).Warn("Failed to read stored display capacity")
		} else if ok {
			cfg.Display.Capacity = stored
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := log.NewEntry(log.StandardLogger())
	orch := orchestrator.NewClient(cfg.Orchestrator, store, logger)

	// Scaffold the board for the selected view
	boardView := surface.View{Kind: surface.ViewKind(cfg.Display.View), Job: cfg.Display.Job}
	layouts, err := orch.Layouts(ctx, boardView, cfg.Layouts)
	if err != nil {
		log.Fatalf("Failed to load job layouts: %v", err)
	}
	board, err := surface.Scaffold(boardView, layouts)
	if err != nil {
		log.Fatalf("Failed to scaffold board: %v", err)
	}

	rec, err := reconciler.New(reconciler.Options{
		Capacity: cfg.Display.Capacity,
		Location: location,
		Logger:   logger,
	})
	if err != nil {
		log.Fatalf("Failed to create reconciler: %v", err)
	}

	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	source, err := newRegistry(&closers).Build(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to create stream source: %v", err)
	}

	opts := dashboard.Options{
		View:       boardView,
		Board:      board,
		Reconciler: rec,
		Store:      store,
		Logger:     logger,
	}
	if cfg.Display.Print {
		opts.Print = os.Stdout
	}
	dash, err := dashboard.New(opts)
	if err != nil {
		log.Fatalf("Failed to create dashboard: %v", err)
	}

	// Start the ingest loop
	go dash.Run(ctx, source)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      routes.SetupRouter(dash, orch),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}
	go func() {
		log.Infof("Serving dashboard %s on %s", dash.ID(), server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("HTTP server stopped with error: %v", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		log.Infof("Received shutdown signal: %v", sig)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Error during HTTP server shutdown: %v", err)
	}

	if err := dash.Shutdown(shutdownTimeout); err != nil {
		log.Errorf("Error during dashboard shutdown: %v", err)
	}
	cancel()

	log.Info("Statusboard shutdown complete")
}
