// Command repe-server serves the built-in method set over REPE/TCP.
//
// The listen port defaults to 8081 and can be overridden either by flags or
// by a bare port number as the first positional argument.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/repe-org/repe-go/config"
	"github.com/repe-org/repe-go/logging"
	"github.com/repe-org/repe-go/middleware"
	"github.com/repe-org/repe-go/protocol"
	"github.com/repe-org/repe-go/registry"
	"github.com/repe-org/repe-go/server"
	"github.com/repe-org/repe-go/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "repe-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("repe-server", pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to TOML config file")
	listenAddr := flags.String("listen", "", "listen address (overrides config)")
	logLevel := flags.String("log-level", "", "trace|debug|info|warn|error|disabled")
	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return err
		}
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	// A bare port as the first positional argument overrides everything.
	if args := flags.Args(); len(args) > 0 {
		port, err := strconv.Atoi(args[0])
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid port %q", args[0])
		}
		cfg.ListenAddr = fmt.Sprintf(":%d", port)
	}

	logger := logging.New("repe-server", cfg.LogLevel)

	opts := server.Options{
		Logger: &logger,
		Limits: protocol.Limits{
			MaxQueryBytes: cfg.MaxQueryBytes,
			MaxBodyBytes:  cfg.MaxBodyBytes,
		},
		MaxConns: cfg.MaxConns,
	}
	if len(cfg.EtcdEndpoints) > 0 {
		reg, err := registry.NewEtcdRegistry(cfg.EtcdEndpoints)
		if err != nil {
			return fmt.Errorf("connect etcd: %w", err)
		}
		defer reg.Close()
		opts.Discovery = reg
		opts.ServiceName = cfg.ServiceName
		opts.AdvertiseAddr = cfg.AdvertiseAddr
	}

	srv := server.NewServer(opts)
	srv.Use(middleware.RecoveryMiddleware(logger))
	srv.Use(middleware.LoggingMiddleware(logger))
	if cfg.RateLimit > 0 {
		srv.Use(middleware.RateLimitMiddleware(cfg.RateLimit, cfg.RateBurst))
	}
	if cfg.RequestTimeoutMS > 0 {
		srv.Use(middleware.TimeoutMiddleware(time.Duration(cfg.RequestTimeoutMS) * time.Millisecond))
	}

	methods, err := server.NewRegistry(service.Methods(srv)...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(methods, "tcp", cfg.ListenAddr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		return srv.Shutdown(time.Duration(cfg.ShutdownTimeoutMS) * time.Millisecond)
	}
}
