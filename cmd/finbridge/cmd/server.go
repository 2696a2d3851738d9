package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/finbridge/finbridge/connector"
	"github.com/finbridge/finbridge/handoff"
	"github.com/finbridge/finbridge/internal/config"
	"github.com/finbridge/finbridge/server"
	"github.com/finbridge/finbridge/task"
	"github.com/finbridge/finbridge/workflows/demo"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the bank connector server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		log := slog.New(slog.NewJSONHandler(os.Stderr, nil))

		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		connectors, err := connector.NewStoreFromFile(cfg.DataDir+"/connectors.db", []byte(cfg.SecretKey))
		if err != nil {
			return fmt.Errorf("failed to open connector storage: %w", err)
		}
		defer connectors.Close()

		var kv handoff.KV
		if cfg.RedisURL != "" {
			redisKV, err := handoff.NewRedisKVFromURL(cfg.RedisURL)
			if err != nil {
				return fmt.Errorf("failed to connect to redis: %w", err)
			}
			defer redisKV.Close()
			kv = redisKV
		} else {
			kv = handoff.NewMemoryKV()
		}
		handoffs := handoff.NewStore(kv, []byte(cfg.SecretKey))

		registry := task.NewRegistry()
		demo.Register(registry)

		opts := []server.Option{server.WithLogger(log)}
		if len(cfg.CORSAllowedOrigins) > 0 {
			opts = append(opts, server.WithCORSOrigins(cfg.CORSAllowedOrigins))
		}
		app := server.New(connectors, handoffs, registry, cfg.BaseURL, opts...)

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           app.Router(),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		fmt.Printf("Starting server on port %d (data: %s, base: %s)...\n", cfg.Port, cfg.DataDir, cfg.BaseURL)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
