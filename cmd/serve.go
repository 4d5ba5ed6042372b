package cmd

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gwsandbox/gwsandbox-ctl/internal/api"
	"github.com/gwsandbox/gwsandbox-ctl/internal/errors"
	"github.com/gwsandbox/gwsandbox-ctl/internal/logging"
	"github.com/gwsandbox/gwsandbox-ctl/internal/monitor"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and reconcile in the background",
	Long: `Serve the environment API over HTTP.

A background loop reconciles records against the runtime at the
configured interval. The server shuts down gracefully on SIGINT or
SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveListen string

const shutdownTimeout = 10 * time.Second

func init() {
	serveCmd.Flags().StringVarP(&serveListen, "listen", "l", "", "Listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := currentApp()
	if err != nil {
		return err
	}

	listen := a.Config.API.Listen
	if serveListen != "" {
		listen = serveListen
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	router := api.NewRouter(logging.Logger, a.Orchestrator, a.Metrics, a.Driver.Ping)
	srv := &http.Server{
		Addr:              listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	mon := monitor.New(a.Config.Reconcile.Interval.Duration, a.Orchestrator)
	go func() {
		_ = mon.Run(ctx)
	}()

	serveErr := make(chan error, 1)
	go func() {
		logging.Info("api listening", "addr", listen, "runtime", a.Driver.Name())
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			return errors.Wrap(errors.KindGeneral, "api server failed", err)
		}
		return nil
	case <-ctx.Done():
	}

	logging.Info("shutting down api")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(errors.KindGeneral, "api shutdown failed", err)
	}
	return nil
}
