package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/gops/agent"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sagarc03/blobkeep/config"
	blobhttp "github.com/sagarc03/blobkeep/http"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the blobkeep HTTP server.

The storage directory is created if it does not exist and the metadata
index is migrated when database.auto_migrate is set. With --reconcile the
index is brought in line with the storage directory before the listener
opens.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("host", "", "interface to listen on (default: all)")
	serveCmd.Flags().Int("port", 8000, "HTTP server port")
	serveCmd.Flags().Int64("max-upload-size", 0, "maximum upload size in bytes, 0 for no limit")
	serveCmd.Flags().Bool("reconcile", false, "reconcile the metadata index with the storage directory at startup")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	if cfg.Debug.Gops {
		if err := agent.Listen(agent.Options{Addr: cfg.Debug.GopsAddr}); err != nil {
			slog.Warn("could not start gops agent", "err", err)
		} else {
			defer agent.Close()
		}
	}

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("close", "err", err)
		}
	}()

	if cfg.Storage.ReconcileOnStart {
		res, err := a.service.Reconcile(ctx)
		if err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
		slog.Info("reconcile complete", "indexed", res.Indexed, "pruned", res.Pruned, "temp_removed", res.TempRemoved)
	}

	handler := blobhttp.NewHandler(&blobhttp.HandlerConfig{
		MaxUploadSize: cfg.Server.MaxUploadSize,
		RateLimit:     cfg.Server.RateLimit,
		RateBurst:     cfg.Server.RateBurst,
		Compress:      cfg.Server.Compress,
		Version:       version,
		Ready:         a.db,
		CORS:          cfg.CORS,
	}, a.service)

	ln, err := net.Listen("tcp", cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	server := &http.Server{
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	return serve(ctx, server, ln, cmp.Or(cfg.Server.ShutdownTimeout, 30*time.Second))
}

// serve runs server on ln until ctx is done, then shuts it down gracefully.
func serve(ctx context.Context, server *http.Server, ln net.Listener, shutdownTimeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting server", "addr", ln.Addr().String(), "version", version)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
