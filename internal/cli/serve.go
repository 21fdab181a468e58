package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raysh454/secboard/internal/app"
	"github.com/raysh454/secboard/internal/logging"
	"github.com/raysh454/secboard/internal/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard API server",
		Long: `Serve the dashboard API. Every request carries the user's ID token; one scan
session is kept per email and its events are streamed on /ws/scan.

A token key is required: set auth.hmac_secret or auth.rsa_public_key_file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return o.serve(ctx)
		},
	}

	cmd.Flags().String("listen", "", "listen address (default :8080)")
	cmd.Flags().String("hmac-secret", "", "HS256 secret ID tokens are signed with")
	cmd.Flags().String("rsa-public-key", "", "PEM file with the RS256 token public key")
	_ = o.v.BindPFlag("server.listen_addr", cmd.Flags().Lookup("listen"))
	_ = o.v.BindPFlag("auth.hmac_secret", cmd.Flags().Lookup("hmac-secret"))
	_ = o.v.BindPFlag("auth.rsa_public_key_file", cmd.Flags().Lookup("rsa-public-key"))

	return cmd
}

func (o *rootOptions) serve(ctx context.Context) error {
	a, err := app.NewApplication(ctx, o.cfg, o.logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Shutdown(shutdownCtx); err != nil {
			o.logger.Warn("application shutdown", logging.Field{Key: "error", Value: err.Error()})
		}
	}()

	srv, err := server.NewServer(server.ConfigFromApplication(a))
	if err != nil {
		if errors.Is(err, server.ErrNoVerifier) {
			return fmt.Errorf("%w: set auth.hmac_secret or auth.rsa_public_key_file", err)
		}
		return err
	}

	httpSrv := srv.HTTPServer()
	ln, err := net.Listen("tcp", httpSrv.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", httpSrv.Addr, err)
	}
	o.logger.Info("dashboard api listening",
		logging.Field{Key: "addr", Value: ln.Addr().String()},
		logging.Field{Key: "scan_api", Value: a.API.BaseURL()})

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.Serve(ln) }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	o.logger.Info("shutting down dashboard api")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	srv.Close()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
