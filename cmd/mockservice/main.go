// Command mockservice serves an in-memory PR-review API for smoke-testing
// load runs.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/prreview/loadgen/internal/logging"
	"github.com/prreview/loadgen/internal/mockservice"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.WithError(err).Error("mock service failed")
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := pflag.NewFlagSet("mockservice", pflag.ContinueOnError)
	addr := flags.String("addr", ":8080", "Listen address")
	latency := flags.Duration("latency", 0, "Delay added to every API response")
	logLevel := flags.String("log-level", "info", "Log level")
	logFormat := flags.String("log-format", logging.FormatText, "Log format: text, json, cli, logfmt")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if err := logging.Setup(*logLevel, *logFormat, os.Stderr); err != nil {
		return err
	}

	runtime.GOMAXPROCS(runtime.NumCPU())

	svc, err := mockservice.New(mockservice.Options{
		Latency:  *latency,
		Registry: prometheus.NewRegistry(),
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              *addr,
		Handler:           svc,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5*time.Second + *latency,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		ReadHeaderTimeout: 2 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{
			"addr":    *addr,
			"latency": *latency,
			"cpus":    runtime.NumCPU(),
		}).Info("mock PR-review service listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Info("shutting down")
	return server.Shutdown(shutdownCtx)
}
