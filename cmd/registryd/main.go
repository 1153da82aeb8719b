package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ruteri/proof-compliance-registry/chain"
	"github.com/ruteri/proof-compliance-registry/cmd/flags"
	"github.com/ruteri/proof-compliance-registry/common"
	"github.com/ruteri/proof-compliance-registry/config"
	"github.com/ruteri/proof-compliance-registry/events"
	"github.com/ruteri/proof-compliance-registry/httpserver"
	"github.com/ruteri/proof-compliance-registry/interfaces"
	"github.com/ruteri/proof-compliance-registry/metrics"
	"github.com/ruteri/proof-compliance-registry/registry"
	"github.com/ruteri/proof-compliance-registry/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:    "registryd",
		Usage:   "Serve the proof compliance registry",
		Version: common.Version,
		Flags:   append(append([]cli.Flag{}, flags.ServerFlags...), flags.LogFlags...),
		Action:  run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cCtx *cli.Context) error {
	cfg, err := flags.LoadConfig(cCtx)
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := flags.SetupLogger(cfg.Log)
	ctx, cancel := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("Opening proof stores", "locations", cfg.Stores)
	store, err := storage.NewStoreFactory(logger).CreateMirroredStore(ctx, cfg.Stores)
	if err != nil {
		logger.Error("Failed to open proof store", "err", err)
		return err
	}
	defer closeLogged(logger, "store", store.Close)

	blocks, closeBlocks, err := newBlockSource(ctx, cfg.Blocks, logger)
	if err != nil {
		logger.Error("Failed to set up block source", "err", err)
		return err
	}
	defer closeBlocks()

	sink, err := events.NewSinks(ctx, cfg.Sinks, logger)
	if err != nil {
		logger.Error("Failed to set up event sinks", "err", err)
		return err
	}
	defer closeLogged(logger, "event sink", sink.Close)

	var metricsSrv *metrics.MetricsServer
	opts := chain.ExecutorOpts{Log: logger}
	if cfg.Server.MetricsAddr != "" {
		metricsSrv, err = metrics.New(common.PackageName, cfg.Server.MetricsAddr)
		if err != nil {
			logger.Error("Failed to create metrics server", "err", err)
			return err
		}
		opts.Observer = metricsSrv
	}

	reg := registry.NewRegistry(store, logger)
	executor := chain.NewExecutor(reg, blocks, sink, opts)

	execCtx, stopExecutor := context.WithCancel(context.Background())
	execDone := make(chan error, 1)
	go func() { execDone <- executor.Run(execCtx) }()

	server, err := httpserver.New(flags.ConfigureServer(cfg.Server, logger), httpserver.NewHandler(executor, store, logger), metricsSrv)
	if err != nil {
		stopExecutor()
		logger.Error("Failed to create server", "err", err)
		return err
	}

	logger.Info("Starting registry",
		"store", store.LocationURI(),
		"blockSource", blocks.Name(),
		"sink", sink.Name())
	server.RunInBackground()

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	// Stop accepting calls first so every accepted call is applied before the store closes.
	server.Shutdown()
	stopExecutor()
	if err := <-execDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Executor stopped with error", "err", err)
	}

	logger.Info("Server shutdown complete")
	return nil
}

func newBlockSource(ctx context.Context, cfg config.BlockConfig, logger *slog.Logger) (interfaces.BlockSource, func(), error) {
	switch cfg.Source {
	case config.BlockSourceEthereum:
		logger.Info("Connecting to Ethereum RPC", "address", cfg.RPCURL)
		src, err := chain.DialEthereumBlockSource(ctx, cfg.RPCURL, cfg.PollInterval, logger)
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil
	default:
		logger.Info("Using local block clock", "genesis", cfg.Genesis, "blockTime", cfg.BlockTime)
		return chain.NewLocalBlockSource(cfg.Genesis, cfg.BlockTime), func() {}, nil
	}
}

func closeLogged(logger *slog.Logger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.Warn("Failed to close "+what, "err", err)
	}
}
