package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reportview/internal/api"
	"reportview/internal/assistant"
	"reportview/internal/config"
	"reportview/internal/llm"
	"reportview/internal/logging"
	"reportview/internal/report"
	"reportview/internal/store"
	"reportview/internal/watcher"
)

const version = "1.0.0"

func main() {
	configPath := "config.json"
	if p := os.Getenv("REPORTVIEW_CONFIG"); p != "" {
		configPath = p
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, closeLog, err := newLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer closeLog.Close()
	logger.Info("Starting reportview v%s...", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store, logger.Named("store"))
	if err != nil {
		logger.Error("Failed to initialize store: %v", err)
		os.Exit(1)
	}
	defer st.Close()

	creds := store.StaticCredential{Key: cfg.Assistant.APIKey, Fallback: st}
	loader := report.NewLoader(st, creds, logger.Named("report"))

	loc, err := cfg.Views.Location()
	if err != nil {
		logger.Error("Failed to load time zone: %v", err)
		os.Exit(1)
	}

	srv, err := api.NewServer(loader, newGeneratorFactory(cfg.Assistant, logger.Named("llm")), api.ServerConfig{
		ViewTTL:     cfg.Views.TTL(),
		MaxViews:    cfg.Views.MaxViews,
		ChatTimeout: cfg.Assistant.Timeout(),
		Location:    loc,
	}, logger.Named("api"))
	if err != nil {
		logger.Error("Failed to initialize API server: %v", err)
		os.Exit(1)
	}
	srv.StartSweeper(ctx, time.Minute)

	if len(cfg.Import.Folders) > 0 {
		w, err := watcher.NewWatcher(st, cfg.Import.MaxFileSizeMB, logger.Named("watcher"))
		if err != nil {
			logger.Error("Failed to initialize watcher: %v", err)
			os.Exit(1)
		}
		defer w.Close()
		if err := w.Start(ctx, cfg.Import.Folders); err != nil {
			logger.Warn("Snapshot watcher not started: %v", err)
		}
	}

	read, write, idle := cfg.Server.Timeouts()
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      srv.Handler(),
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
	}

	go func() {
		logger.Info("Server listening on http://%s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Shutdown incomplete: %v", err)
	}
	logger.Info("reportview stopped")
}

// newLogger builds the root logger. With a log file configured, every line
// goes to the rotating file and warnings and errors also reach stdout.
func newLogger(cfg config.LoggingConfig) (*logging.Logger, io.Closer, error) {
	level := logging.ParseLevel(cfg.Level)
	if cfg.File == "" {
		return logging.NewLogger("main", level, os.Stdout), io.NopCloser(nil), nil
	}

	fw, err := logging.NewFileWriter(cfg.File, cfg.MaxSizeMB, cfg.MaxBackups)
	if err != nil {
		return nil, nil, err
	}
	return logging.NewLogger("main", level, logging.NewMultiWriter(os.Stdout, fw)), fw, nil
}

// newGeneratorFactory returns the factory the API server uses to create a
// language model client from the credential loaded with each report.
func newGeneratorFactory(cfg config.AssistantConfig, logger *logging.Logger) api.GeneratorFactory {
	llmCfg := llm.Config{
		Type:    cfg.Provider,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout(),
	}
	return func(apiKey string) (assistant.Generator, error) {
		p, err := llm.NewProvider(llmCfg, apiKey, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}
