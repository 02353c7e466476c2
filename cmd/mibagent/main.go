package main

//	@title			MIB Agent Ops API
//	@version		0.1.0
//	@description	Table status and SNMP GET, GETNEXT, and walk over the agent's MIB tables.
//	@BasePath		/api/v1

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/mibagent/internal/config"
	"github.com/HerbHall/mibagent/internal/counterstore"
	"github.com/HerbHall/mibagent/internal/event"
	"github.com/HerbHall/mibagent/internal/server"
	"github.com/HerbHall/mibagent/internal/tracing"
	"github.com/HerbHall/mibagent/internal/version"
)

func main() {
	// Subcommand dispatch (before flag.Parse).
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "walk":
			runWalk(os.Args[2:])
			return
		case "import":
			runImport(os.Args[2:])
			return
		case "version":
			fmt.Println(version.Info())
			return
		}
	}

	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	// Load configuration (before logger, so log level/format can be configured).
	viperCfg, err := server.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := config.NewLogger(viperCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("mibagent starting", zap.String("version", version.Short()))

	if f := viperCfg.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded",
			zap.String("component", "config"),
			zap.String("source", f),
		)
	} else {
		logger.Warn("no configuration file found, using defaults",
			zap.String("component", "config"),
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var traceCfg tracing.Config
	if err := viperCfg.UnmarshalKey("tracing", &traceCfg); err != nil {
		logger.Fatal("invalid tracing configuration", zap.Error(err))
	}
	shutdownTracing, err := tracing.Init(ctx, traceCfg, logger.Named("tracing"))
	if err != nil {
		logger.Fatal("failed to initialize tracing", zap.Error(err))
	}
	defer tracing.ShutdownWithTimeout(context.Background(), shutdownTracing, logger)

	storeCfg, err := storeConfig(viperCfg)
	if err != nil {
		logger.Fatal("invalid store configuration", zap.Error(err))
	}
	store, err := counterstore.Open(ctx, storeCfg)
	if err != nil {
		logger.Fatal("failed to open counter store", zap.Error(err))
	}
	defer store.Close()

	logger.Info("counter store opened",
		zap.String("component", "store"),
		zap.String("driver", storeCfg.Driver),
	)

	bus := event.NewBus(logger.Named("event"))
	tracker := server.NewTracker(bus)
	defer tracker.Close()

	reg, names, err := newRegistry(viperCfg, logger)
	if err != nil {
		logger.Fatal("failed to register tables", zap.Error(err))
	}
	if err := initRegistry(ctx, reg, viperCfg, logger, bus, store); err != nil {
		logger.Fatal("failed to initialize tables", zap.Error(err))
	}
	if err := reg.StartAll(ctx); err != nil {
		logger.Fatal("failed to start tables", zap.Error(err))
	}

	var srv *server.Server
	var srvCfg server.Config
	if err := viperCfg.UnmarshalKey("server", &srvCfg); err != nil {
		logger.Fatal("invalid server configuration", zap.Error(err))
	}
	if srvCfg.Enabled {
		srv = server.New(srvCfg.Addr(), reg, server.Options{
			Logger:    logger.Named("server"),
			Ready:     func(context.Context) error { return tracker.Ready(names) },
			Tracker:   tracker,
			RateLimit: viperCfg.GetFloat64("server.rate_limit"),
		})
		go func() {
			if err := srv.Start(); err != nil {
				logger.Fatal("server error", zap.Error(err))
			}
		}()
	}

	logger.Info("mibagent ready",
		zap.Strings("tables", names),
		zap.Bool("http", srvCfg.Enabled),
	)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}
	reg.StopAll(shutdownCtx)
	bus.Wait()

	logger.Info("mibagent stopped")
}
