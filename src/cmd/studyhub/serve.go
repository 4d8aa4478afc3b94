package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/studyhub/studyhub/src/internal/config"
	"github.com/studyhub/studyhub/src/internal/database"
	"github.com/studyhub/studyhub/src/internal/server"
)

var skipMigrations bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply pending migrations on start")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	if !skipMigrations {
		if err := database.RunMigrations(a.db, cfg.GetString("database.type"), logger); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	srv := server.New(cfg, logger, server.Deps{
		Searcher: a.search,
		Ingester: a.pipeline,
		Health:   a.health,
		Metrics:  a.metrics,
	})

	address := net.JoinHostPort(cfg.GetString("server.host"), strconv.Itoa(cfg.GetInt("server.port")))
	logger.Info("StudyHub starting", "version", config.Version, "address", address)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(address)
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	}

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(ctx)
}
