package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-datagen/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-datagen/pkg/adapters/datasource/postgres"
	_ "github.com/ekaya-inc/ekaya-datagen/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datagen/pkg/config"
	"github.com/ekaya-inc/ekaya-datagen/pkg/handlers"
	"github.com/ekaya-inc/ekaya-datagen/pkg/llm"
	"github.com/ekaya-inc/ekaya-datagen/pkg/logging"
	"github.com/ekaya-inc/ekaya-datagen/pkg/metrics"
	"github.com/ekaya-inc/ekaya-datagen/pkg/middleware"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "ekaya-datagen",
		Short: "Generate validation datasets of questions, answers and SQL",
		Long: `ekaya-datagen asks a language model for question/answer/SQL tuples about a
relational schema, validates every query against that schema and writes a
difficulty-stratified dataset for evaluating text-to-SQL and RAG pipelines.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: config.yaml when present)")

	root.AddCommand(newGenerateCmd(&configPath))
	root.AddCommand(newValidateCmd(&configPath))
	root.AddCommand(newAnswerCmd(&configPath))
	return root
}

// app holds what every command needs after configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

func loadApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath, Version)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrConfiguration, err)
	}
	return &app{cfg: cfg, logger: logger}, nil
}

// loadSchema prefers the schema file and falls back to live introspection.
func (a *app) loadSchema(ctx context.Context) (*models.SchemaModel, error) {
	ds := a.cfg.Datasource
	switch {
	case ds.SchemaFile != "":
		schema, err := datasource.LoadSchemaFile(ds.SchemaFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrConfiguration, err)
		}
		return schema, nil
	case ds.Type != "":
		a.logger.Info("Introspecting schema",
			zap.String("type", ds.Type),
			zap.String("dsn", logging.SanitizeConnectionString(ds.DSN)))
		return datasource.Introspect(ctx, datasource.Config{
			Type:   ds.Type,
			DSN:    ds.DSN,
			Schema: ds.Schema,
		}, ds.Schema, a.logger)
	default:
		return nil, fmt.Errorf("%w: set datasource.schema_file or datasource.type", apperrors.ErrConfiguration)
	}
}

func (a *app) loadSeeds() ([]models.SeedExample, error) {
	if a.cfg.Datasource.SeedsFile == "" {
		return nil, nil
	}
	seeds, err := datasource.LoadSeedsFile(a.cfg.Datasource.SeedsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrConfiguration, err)
	}
	a.logger.Info("Loaded seed examples", zap.Int("count", len(seeds)))
	return seeds, nil
}

// newGenerator runs the llm checks skipped by Load and builds the back-end.
// The returned func flushes the transcript, if any.
func (a *app) newGenerator() (llm.TextGenerator, func(), error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, nil, err
	}

	pc := a.cfg.ProviderConfig()
	closeFn := func() {}
	if path := a.cfg.LLM.TranscriptPath; path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open transcript: %w", err)
		}
		rec := llm.NewTranscriptRecorder(f, a.logger, 0)
		pc.Recorder = rec
		closeFn = func() {
			rec.Close()
			f.Close()
		}
	}

	gen, err := llm.NewTextGenerator(pc, a.logger)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("%w: %w", apperrors.ErrConfiguration, err)
	}
	return gen, closeFn, nil
}

// serveHTTP exposes metrics, health and progress on the configured address
// until the returned func is called.
func (a *app) serveHTTP(m *metrics.Metrics, model string, progress *handlers.Progress) func() {
	addr := a.cfg.Metrics.ListenAddr
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	handlers.NewHealthHandler(a.cfg.Version, model, progress, a.logger).RegisterRoutes(mux)

	srv := &http.Server{
		Addr:              addr,
		Handler:           middleware.Chain(mux, middleware.Recoverer(a.logger), middleware.RequestLogger(a.logger)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("Serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.logger.Warn("Metrics server shutdown", zap.Error(err))
		}
	}
}
