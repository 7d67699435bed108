package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"shelf-meta-srv/internal/server"
)

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the metadata HTTP API",
		Example: `  # Start server on the PORT from the environment (default 8080)
  shelf-meta-srv serve

  # Start server on custom port
  shelf-meta-srv serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if port == 0 {
				port = a.cfg.Port
			}

			e := server.New(a.metadata, a.barcodes, a.store, a.logger.Named("http"))
			addr := fmt.Sprintf(":%d", port)

			serverErr := make(chan error, 1)
			go func() {
				a.logger.Info("metadata API listening",
					zap.String("addr", addr),
					zap.Any("types", a.metadata.Types()))
				if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-cmd.Context().Done():
				a.logger.Info("shutting down server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := e.Shutdown(shutdownCtx); err != nil {
					a.logger.Error("server shutdown failed", zap.Error(err))
					return err
				}
				a.logger.Info("server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides PORT)")

	return cmd
}
