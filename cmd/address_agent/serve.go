package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/address-lookup/internal/export"
	"github.com/jonathan/address-lookup/internal/server"
	"github.com/jonathan/address-lookup/internal/session"
)

var (
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long:  `Start an HTTP server with the lookup form, the CSV preview and the download endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides PORT and the config file)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.App.Port = servePort
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer closeStore()

	p, closePipeline, err := buildPipeline(ctx, cfg, store, logger, nil)
	if err != nil {
		return err
	}
	defer closePipeline()

	key, generated, err := cfg.Session.SessionKey()
	if err != nil {
		return err
	}
	if generated {
		logger.Warn("SESSION_SECRET is not set; sessions will not survive a restart")
	}
	sessions, err := session.NewManager(session.ManagerOptions{
		CookieName: cfg.Session.CookieName,
		Key:        key,
		MaxAge:     cfg.Session.MaxAge,
		Secure:     cfg.IsProduction(),
	})
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{Port: cfg.App.Port, LookupTimeout: cfg.Search.Timeout}, server.Deps{
		Pipeline: p,
		Exporter: export.NewWriter(store, cfg.Export.ClearAfterDownload, logger),
		Sessions: sessions,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("configuration loaded",
		zap.String("env", cfg.App.Env),
		zap.String("search_provider", cfg.Search.Provider),
		zap.String("session_store", cfg.Session.Store),
		zap.Bool("normalizer", cfg.NormalizerEnabled()))

	return srv.Start(ctx)
}
