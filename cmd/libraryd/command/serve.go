package command

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/warp/lending-engine/api"
	"github.com/warp/lending-engine/log"
	"github.com/warp/lending-engine/store/sqlite"
)

// serve starts the HTTP server and blocks until SIGINT/SIGTERM.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait for active requests (server.shutdown_timeout)
//  3. Stop the snapshot janitor and close the store
func serve(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	if b.sqlite != nil {
		j := sqlite.NewJanitor(b.sqlite, cfg.Storage.KeepRevisions)
		j.Interval = cfg.Storage.PruneInterval
		j.Start()
		defer j.Stop()
	}

	h := api.NewHandler(b.engine, b.state)
	h.History = b.history

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(h, cfg.Server.CORSOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info(ctx, "server starting",
			slog.String("addr", cfg.Server.Addr),
			slog.String("storage", cfg.Storage.Driver),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err, ok := <-errc:
		if ok {
			return err
		}
		return nil
	case <-quit:
	}

	log.Info(ctx, "shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info(ctx, "server stopped")
	return nil
}
