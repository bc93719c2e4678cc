package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"wayfinder/internal/callback"
	"wayfinder/internal/config"
	"wayfinder/internal/gateway"
	"wayfinder/internal/metrics"
	"wayfinder/internal/ratelimit"
	"wayfinder/internal/token"
	"wayfinder/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Wayfinder web server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var fallback token.Fallback
	switch cfg.Tokens.Fallback {
	case "sqlite":
		sealer, err := token.NewSealer(cfg.Tokens.SealSecret)
		if err != nil {
			return err
		}
		store, err := token.OpenSQLite(cfg.Tokens.SQLitePath, sealer)
		if err != nil {
			return err
		}
		defer store.Close()
		fallback = store
		slog.Info("token fallback store ready", "backend", "sqlite", "path", cfg.Tokens.SQLitePath)
	default:
		fallback = token.NewMemoryFallback()
		slog.Info("token fallback store ready", "backend", "memory")
	}

	m := metrics.New()

	gw := gateway.New(cfg.Gateway.BaseURL, cfg.Gateway.Timeout, logger)
	gw.SetMetrics(m)

	var oidc *callback.OIDCExchanger
	if cfg.OIDC.Enabled {
		oidc, err = callback.NewOIDCExchanger(ctx, cfg.OIDC)
		if err != nil {
			return err
		}
		slog.Info("direct oidc exchange enabled", "issuer", cfg.OIDC.Issuer)
	}

	limiter := ratelimit.New(cfg.SignIn.RateLimit, cfg.SignIn.Window)

	router := web.NewRouter(web.RouterDeps{
		Gateway:  gw,
		Fallback: fallback,
		Config:   cfg,
		Metrics:  m,
		OIDC:     oidc,
		Limiter:  limiter,
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", cfg.Addr(), "gateway", cfg.Gateway.BaseURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return srv.Shutdown(shutdownCtx)
}
