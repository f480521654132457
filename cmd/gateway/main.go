package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/itwin-go/gateway/model/rpc"
	"github.com/itwin-go/gateway/module/irrecoverable"
	"github.com/itwin-go/gateway/module/util"
	"github.com/itwin-go/gateway/protocol/web"
	"github.com/itwin-go/gateway/registry"
)

func main() {

	var (
		flagBindAddress     string
		flagMetricsAddress  string
		flagLogLevel        string
		flagWorkers         int
		flagMaxPending      int
		flagShutdownTimeout time.Duration
		flagEnableCORS      bool
	)

	pflag.StringVar(&flagBindAddress, "bind", ":8080", "address for the RPC endpoint to listen on")
	pflag.StringVar(&flagMetricsAddress, "metrics-addr", ":9090", "address for the metrics endpoint to listen on")
	pflag.StringVar(&flagLogLevel, "loglevel", "info", "log level (debug, info, warn, error)")
	pflag.IntVar(&flagWorkers, "workers", 16, "number of concurrent operation executors")
	pflag.IntVar(&flagMaxPending, "max-pending", 256, "maximum backlog of accepted invocations before shedding load")
	pflag.DurationVar(&flagShutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
	pflag.BoolVar(&flagEnableCORS, "cors", false, "allow cross-origin requests")
	pflag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
	level, err := zerolog.ParseLevel(strings.ToLower(flagLogLevel))
	if err != nil {
		log.Fatal().Err(err).Str("level", flagLogLevel).Msg("invalid log level")
	}
	log = log.Level(level)

	reg := registry.New(log)
	if err := reg.RegisterImplementation(diagnosticsDefinition(), diagnosticsImpl{}); err != nil {
		log.Fatal().Err(err).Msg("could not register diagnostics implementation")
	}
	defer func() {
		if err := reg.Close(); err != nil {
			log.Err(err).Msg("could not close registry")
		}
	}()

	serverCfg := web.DefaultServerConfig()
	serverCfg.Address = flagBindAddress
	serverCfg.Workers = flagWorkers
	serverCfg.MaxPending = flagMaxPending
	serverCfg.ShutdownTimeout = flagShutdownTimeout
	serverCfg.EnableCORS = flagEnableCORS
	server := web.NewServer(log, reg, serverCfg)

	metricsServer := &http.Server{Addr: flagMetricsAddress, Handler: promhttp.Handler()}
	go func() {
		log.Info().Str("address", flagMetricsAddress).Msg("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Err(err).Msg("metrics server failed")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	signalerCtx, errChan := irrecoverable.WithSignaler(ctx)

	server.Start(signalerCtx)

	select {
	case <-util.AllReady(server):
		log.Info().Msg("gateway started")
	case err := <-errChan:
		log.Fatal().Err(err).Msg("gateway startup failed")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errChan:
		log.Err(err).Msg("irrecoverable failure, shutting down")
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), flagShutdownTimeout)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Err(err).Msg("metrics server shutdown failed")
	}

	select {
	case <-util.AllDone(server):
		log.Info().Msg("gateway stopped")
	case <-shutdownCtx.Done():
		log.Warn().Msg("shutdown timed out")
	}
}

// diagnosticsDefinition describes the built-in interface every gateway
// deployment serves, mostly for smoke testing a fresh install.
func diagnosticsDefinition() rpc.Definition {
	return rpc.NewDefinition("diagnostics", "ping", "echo")
}

type diagnosticsImpl struct{}

func (diagnosticsImpl) Routes() map[string]registry.HandlerFunc {
	return map[string]registry.HandlerFunc{
		"ping": func(ctx context.Context, params []interface{}) (interface{}, error) {
			return "pong", nil
		},
		"echo": func(ctx context.Context, params []interface{}) (interface{}, error) {
			if len(params) != 1 {
				return nil, fmt.Errorf("echo takes exactly one parameter, got %d", len(params))
			}
			return params[0], nil
		},
	}
}
