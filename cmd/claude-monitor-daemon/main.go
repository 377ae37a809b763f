// Package main is the entry point for the claude monitor daemon.
// It serves the monitor over TCP JSON-RPC and, when enabled, over a
// websocket gateway.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/siddartha-10/ClaudeCodeMonitor/internal/claude/history"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/config"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/constants"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/logger"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/common/tracing"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/daemon"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/db"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/events"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/events/broadcast"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/gateway"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/monitor"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/monitor/rpchandlers"
	"github.com/siddartha-10/ClaudeCodeMonitor/internal/workspace"
	"github.com/siddartha-10/ClaudeCodeMonitor/pkg/rpc"
)

const binaryName = "claude-monitor-daemon"

func usage() string {
	return fmt.Sprintf("USAGE:\n  %s [--listen <addr>] [--data-dir <path>] [--token <token> | --insecure-no-auth]\n\nOPTIONS:\n%s",
		binaryName, config.NewFlagSet(binaryName).FlagUsages())
}

func main() {
	// 1. Load configuration
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		fmt.Print(usage())
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n\n%s", err, usage())
		os.Exit(2)
	}

	// 2. Initialize logger
	log, err := logger.NewLogger(cfg.Logging.ToLoggerConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("daemon failed", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. Tracing
	tracing.Init(cfg.Tracing.OTLPEndpoint)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	// 4. Event bus (in-memory, or NATS if configured)
	provided, closeBus, err := events.Provide(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = closeBus() }()
	if provided.NATS != nil {
		log.Info("Using NATS event bus", zap.String("url", cfg.NATS.URL))
	} else {
		log.Info("Using in-memory event bus")
	}

	// 5. Workspace store
	pool, err := db.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open workspace database: %w", err)
	}
	defer func() { _ = pool.Close() }()
	store, err := workspace.NewStore(pool)
	if err != nil {
		return err
	}

	// 6. Monitor service
	home := strings.TrimSpace(cfg.Claude.Home)
	if home == "" {
		home = history.ResolveClaudeHome()
	}
	reader := history.NewReader(home, log)
	svc := monitor.NewService(store, reader, events.NewBusSink(provided.Bus, log), monitor.OptionsFromConfig(cfg), log)
	defer svc.Close()

	dispatcher := rpc.NewDispatcher()
	rpchandlers.NewHandlers(svc, log).RegisterHandlers(dispatcher)

	// 7. Event fan-out to clients
	fanout := broadcast.New(cfg.Daemon.EventBufferSize)
	defer fanout.Close()
	forwarding, err := daemon.ForwardEvents(provided.Bus, fanout)
	if err != nil {
		return fmt.Errorf("subscribe to events: %w", err)
	}
	defer func() { _ = forwarding.Unsubscribe() }()

	peerCfg := daemon.PeerConfig{
		Token:      cfg.Daemon.Token,
		Dispatcher: dispatcher,
		Events:     fanout,
	}
	if !cfg.Daemon.AuthRequired() {
		log.Warn("authentication disabled; any local process can drive claude")
	}

	// 8. Transports
	g, gctx := errgroup.WithContext(ctx)

	tcp := daemon.NewServer(cfg.Daemon.Listen, peerCfg, log)
	g.Go(func() error {
		return tcp.ListenAndServe(gctx)
	})

	if cfg.Gateway.Enabled {
		gw := gateway.NewServer(cfg.Gateway.Listen, peerCfg, cfg.Logging.Level == "debug", log)
		g.Go(func() error {
			return gw.ListenAndServe(gctx)
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			return gw.Shutdown(shutdownCtx)
		})
	}

	log.Info("claude monitor daemon started",
		zap.String("listen", cfg.Daemon.Listen),
		zap.String("data_dir", cfg.Daemon.DataDir),
		zap.String("claude_home", reader.Home()),
		zap.String("turn_mode", cfg.Claude.TurnMode))

	err = g.Wait()
	log.Info("Shutting down claude monitor daemon...")
	return err
}
