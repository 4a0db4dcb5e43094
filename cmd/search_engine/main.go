package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/panjf2000/ants/v2"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/gcbaptista/go-search-service/api"
	"github.com/gcbaptista/go-search-service/config"
	"github.com/gcbaptista/go-search-service/internal/answer"
	"github.com/gcbaptista/go-search-service/internal/engine"
	"github.com/gcbaptista/go-search-service/internal/llm"
	"github.com/gcbaptista/go-search-service/internal/logger"
	"github.com/gcbaptista/go-search-service/store"
)

const version = "0.2.0"

func main() {
	dataDirFlag := &cli.StringFlag{
		Name:    "data-dir",
		Aliases: []string{"d"},
		Usage:   "Directory holding index data and metadata (overrides DATA_DIR)",
	}

	app := &cli.App{
		Name:    "search-service",
		Usage:   "Multi-tenant full-text search service with grounded answers",
		Version: version,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the HTTP server",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Usage:   "Port to listen on (overrides PORT)",
					},
					dataDirFlag,
				},
			},
			{
				Name:   "list-indexes",
				Usage:  "Print the indexes recorded in the metadata store",
				Action: listIndexesCommand,
				Flags:  []cli.Flag{dataDirFlag},
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(c *cli.Context) (*config.AppConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}
	if c.IsSet("data-dir") {
		cfg.DataDir = c.String("data-dir")
	}
	return cfg, cfg.Validate()
}

func serveCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()

	meta, err := store.OpenMetadataStore(filepath.Join(cfg.DataDir, "metadata"), false, zl)
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer func() {
		if err := meta.Close(); err != nil {
			zl.Error("failed to close metadata store", zap.Error(err))
		}
	}()

	pool, err := ants.NewPool(cfg.IndexingWorkers)
	if err != nil {
		return fmt.Errorf("failed to create indexing pool: %w", err)
	}
	defer pool.Release()

	searchEngine, err := engine.NewEngine(filepath.Join(cfg.DataDir, "indexes"), meta, pool, zl)
	if err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}

	var provider llm.Provider
	if cfg.LLM.Enabled() {
		provider = llm.NewOpenAIProvider(&llm.Config{
			APIKey:  cfg.LLM.Key(),
			BaseURL: cfg.LLM.URL(),
			Model:   cfg.LLM.ModelName(),
			Timeout: cfg.LLM.Timeout,
			Logger:  zl,
		})
		zl.Info("answer generation enabled", zap.String("model", cfg.LLM.ModelName()))
	} else {
		zl.Warn("no LLM API key configured, answer endpoints are disabled")
	}
	if !cfg.AuthEnabled() {
		zl.Warn("no API tokens configured, write endpoints are unauthenticated")
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	api.SetupRoutes(router, api.NewAPI(searchEngine, answer.NewOrchestrator(provider, zl), meta), api.RouterConfig{
		APITokens:    cfg.Tokens(),
		CORSOrigins:  cfg.CORSOrigins,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Logger:       zl,
	})

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Port),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		zl.Info("starting server", zap.Int("port", cfg.Port), zap.String("data_dir", cfg.DataDir))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	zl.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func listIndexesCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	meta, err := store.OpenMetadataStore(filepath.Join(cfg.DataDir, "metadata"), false, nil)
	if err != nil {
		return fmt.Errorf("failed to open metadata store: %w", err)
	}
	defer meta.Close()

	records, err := meta.ListIndexes()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no indexes")
		return nil
	}
	for _, rec := range records {
		fmt.Printf("%-32s %8d documents  %d fields  created %s\n",
			rec.Definition.Name, rec.DocumentCount, len(rec.Definition.Fields), rec.CreatedAt.Format("2006-01-02"))
	}
	return nil
}
