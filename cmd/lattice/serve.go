package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/lattice"
	httpAdapter "github.com/aretw0/lattice/internal/adapters/http"
	"github.com/aretw0/lattice/pkg/observability"
	"github.com/aretw0/lattice/pkg/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve <definition.yaml>...",
	Short: "Host machine definitions over HTTP",
	Long: `Builds one machine per definition file and exposes them over a JSON API.

Each machine is advanced through the API; transitions are journaled in memory
and Prometheus metrics are served on /metrics.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")
		logJSON, _ := cmd.Flags().GetBool("log-json")
		logger := newLogger(cmd, logJSON)

		metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

		machines := make(map[string]*httpAdapter.Hosted, len(args))
		for _, path := range args {
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open definition: %w", err)
			}
			def, err := schema.Load(file)
			file.Close()
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			built, err := def.Build(schema.WithMachineOptions(lattice.WithLogger(logger)))
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if _, ok := machines[def.Name]; ok {
				return fmt.Errorf("duplicate machine name %q", def.Name)
			}

			metrics.Instrument(built.Machine)
			machines[def.Name] = &httpAdapter.Hosted{
				Machine: built.Machine,
				Journal: lattice.LogTransitions(built.Machine, nil),
				Finals:  built.Finals,
			}
		}

		server := httpAdapter.NewServer(machines, httpAdapter.WithLogger(logger))

		srv := &http.Server{
			Addr:    ":" + port,
			Handler: server.Handler(),
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			logger.Info("starting server", "addr", srv.Addr, "machines", len(machines))
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("starting shutdown", "signal", sig.String())

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("graceful shutdown did not complete", "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("could not stop server: %w", err)
				}
			}
			logger.Info("server stopped")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	serveCmd.Flags().Bool("log-json", false, "Emit logs as JSON")
	rootCmd.AddCommand(serveCmd)
}
