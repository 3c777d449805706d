package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raysh454/qssage/internal/app"
	"github.com/raysh454/qssage/internal/logging"
	"github.com/raysh454/qssage/internal/server"
)

const shutdownGrace = 15 * time.Second

func newServeCommand(opts *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, newLogger(cfg, cmd.ErrOrStderr()))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address override, e.g. :4000")
	return cmd
}

// runServe blocks until ctx is cancelled or the listener fails, then drains
// in-flight requests and background side effects.
func runServe(ctx context.Context, cfg *app.Config, logger logging.Logger) error {
	a, err := app.NewApplication(cfg, logger)
	if err != nil {
		return err
	}
	srv, err := server.NewServer(a, logger.With(logging.F("component", "server")))
	if err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}
	httpSrv := srv.HTTPServer()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", logging.F("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
		logger.Error("server stopped", logging.Err(serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", logging.Err(err))
	}
	if err := a.Shutdown(shutdownCtx); err != nil {
		logger.Warn("application shutdown", logging.Err(err))
	}
	return serveErr
}
