// Copyright 2026 The Kiln Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kiln-foundation/kiln/lib/audit"
	"github.com/kiln-foundation/kiln/lib/authorize"
	"github.com/kiln-foundation/kiln/lib/clock"
	"github.com/kiln-foundation/kiln/lib/identity"
	"github.com/kiln-foundation/kiln/lib/revocation"
	"github.com/kiln-foundation/kiln/lib/service"
	"github.com/kiln-foundation/kiln/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "", "path to the YAML configuration file (required)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("kiln-authd %s\n", version.Info())
		return nil
	}

	if configPath == "" {
		return fmt.Errorf("--config is required")
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Assemble the resolver stack: base rules, then the cache, then
	// latency instrumentation on the outside.
	var baseResolver identity.Resolver
	if config.RegistryPath != "" {
		registry, err := identity.LoadRegistry(config.RegistryPath)
		if err != nil {
			return fmt.Errorf("loading identity registry: %w", err)
		}
		logger.Info("identity registry loaded",
			"path", config.RegistryPath,
			"identities", registry.Len(),
			"strict", registry.Strict(),
		)
		baseResolver = registry
	} else {
		logger.Info("no identity registry configured, resolving with builtin rules")
		baseResolver = identity.NewBuiltinResolver()
	}

	clk := clock.Real()
	revocations := revocation.NewRegistry()

	promRegistry := prometheus.NewRegistry()
	daemonMetrics := newMetrics(promRegistry, revocations)

	resolver := baseResolver
	if ttl := time.Duration(config.ResolverCacheTTL); ttl > 0 {
		resolver = identity.NewCachingResolver(resolver, clk, ttl)
	}
	resolver = daemonMetrics.instrumentResolver(resolver)

	var auditLog *audit.Writer
	if config.AuditPath != "" {
		compression, err := audit.ParseCompression(config.AuditCompression)
		if err != nil {
			return err
		}
		auditLog, err = audit.OpenFile(config.AuditPath, compression)
		if err != nil {
			return fmt.Errorf("opening audit log: %w", err)
		}
		defer auditLog.Close()
		logger.Info("audit log open",
			"path", config.AuditPath,
			"compression", compression,
		)
	}

	authorizer, err := authorize.New(authorize.Config{
		Resolver:    resolver,
		Clock:       clk,
		Revocations: revocations,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	revokers, err := config.RevokerSet()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if len(revokers) == 0 {
		logger.Info("no revokers configured, revoke action disabled")
	}

	svc := &authService{
		authorizer:  authorizer,
		revocations: revocations,
		resolver:    resolver,
		revokers:    revokers,
		auditLog:    auditLog,
		metrics:     daemonMetrics,
		clock:       clk,
		startedAt:   clk.Now(),
		logger:      logger,
	}

	socketServer := service.NewSocketServer(config.SocketPath, logger)
	svc.registerActions(socketServer)

	socketDone := make(chan error, 1)
	go func() {
		socketDone <- socketServer.Serve(ctx)
	}()

	metricsDone := make(chan error, 1)
	if config.MetricsAddress != "" {
		go func() {
			metricsDone <- serveMetrics(ctx, config.MetricsAddress, promRegistry, logger)
		}()
	}

	go svc.runCleanup(ctx)

	logger.Info("authorization daemon running",
		"socket", config.SocketPath,
		"audit", config.AuditPath != "",
		"metrics", config.MetricsAddress != "",
	)

	// Run until a shutdown signal or a server failure, whichever comes
	// first. A server that stops while ctx is still live has failed;
	// stop() cancels ctx so the surviving goroutines wind down before
	// run returns.
	select {
	case <-ctx.Done():
		logger.Info("shutting down")

	case err := <-socketDone:
		stop()
		if config.MetricsAddress != "" {
			<-metricsDone
		}
		if err == nil {
			err = fmt.Errorf("socket server stopped unexpectedly")
		}
		return err

	case err := <-metricsDone:
		stop()
		<-socketDone
		if err == nil {
			err = fmt.Errorf("metrics server stopped unexpectedly")
		}
		return err
	}

	// Graceful path: the socket server finishes in-flight exchanges
	// before its channel yields.
	if err := <-socketDone; err != nil {
		logger.Error("socket server error", "error", err)
	}
	if config.MetricsAddress != "" {
		if err := <-metricsDone; err != nil {
			logger.Error("metrics server error", "error", err)
		}
	}

	return nil
}
