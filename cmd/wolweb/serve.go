package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"wolweb/internal/appconfig"
	"wolweb/internal/config"
	"wolweb/internal/ratelimit"
	"wolweb/internal/server"
	"wolweb/internal/store"
	"wolweb/internal/wol"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web application",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		logger := log.Logger.Level(cfg.LogLevel)

		st, err := store.Open(cfg.DBPath())
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		settings, err := appconfig.Load(cfg.SettingsPath())
		if err != nil {
			return err
		}

		limiter := ratelimit.New(cfg.RateLimitPath())
		defer func() { _ = limiter.Flush() }()

		srv, err := server.New(cfg, st, settings, wol.New(logger), limiter, logger)
		if err != nil {
			return err
		}

		addr := fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port)
		httpSrv := &http.Server{
			Addr:              addr,
			Handler:           srv.Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			logger.Info().Str("addr", addr).Msg("wolweb listening")
			errCh <- httpSrv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	},
}
