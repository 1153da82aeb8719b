package flags

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/proof-compliance-registry/api"
	"github.com/ruteri/proof-compliance-registry/common"
	"github.com/ruteri/proof-compliance-registry/config"
	"github.com/urfave/cli/v2"
)

// LoadConfig reads --config if given and lets explicitly set flags override the file.
func LoadConfig(cCtx *cli.Context) (*config.Config, error) {
	cfg := config.Defaults()
	if path := cCtx.String(ConfigFlag.Name); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	}

	if cCtx.IsSet(ListenAddrFlag.Name) {
		cfg.Server.ListenAddr = cCtx.String(ListenAddrFlag.Name)
	}
	if cCtx.IsSet(MetricsAddrFlag.Name) {
		cfg.Server.MetricsAddr = cCtx.String(MetricsAddrFlag.Name)
	}
	if cCtx.IsSet(PprofFlag.Name) {
		cfg.Server.Pprof = cCtx.Bool(PprofFlag.Name)
	}
	if cCtx.IsSet(DrainSecondsFlag.Name) {
		cfg.Server.DrainSeconds = cCtx.Int64(DrainSecondsFlag.Name)
	}
	if cCtx.IsSet(LogJsonFlag.Name) {
		cfg.Log.JSON = cCtx.Bool(LogJsonFlag.Name)
	}
	if cCtx.IsSet(LogDebugFlag.Name) {
		cfg.Log.Debug = cCtx.Bool(LogDebugFlag.Name)
	}
	if cCtx.IsSet(LogUidFlag.Name) {
		cfg.Log.UID = cCtx.Bool(LogUidFlag.Name)
	}
	if cCtx.IsSet(LogServiceFlag.Name) {
		cfg.Log.Service = cCtx.String(LogServiceFlag.Name)
	}
	if cCtx.IsSet(StoreFlag.Name) {
		cfg.Stores = cCtx.StringSlice(StoreFlag.Name)
	}
	if cCtx.IsSet(SinkFlag.Name) {
		cfg.Sinks = cCtx.StringSlice(SinkFlag.Name)
	}
	if cCtx.IsSet(GenesisFlag.Name) {
		cfg.Blocks.Genesis = *cCtx.Timestamp(GenesisFlag.Name)
	}
	if cCtx.IsSet(BlockTimeFlag.Name) {
		cfg.Blocks.BlockTime = cCtx.Duration(BlockTimeFlag.Name)
	}
	if cCtx.IsSet(RpcAddrFlag.Name) {
		cfg.Blocks.Source = config.BlockSourceEthereum
		cfg.Blocks.RPCURL = cCtx.String(RpcAddrFlag.Name)
	}
	if cCtx.IsSet(PollIntervalFlag.Name) {
		cfg.Blocks.PollInterval = cCtx.Duration(PollIntervalFlag.Name)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func SetupLogger(cfg config.LogConfig) (log *slog.Logger) {
	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   cfg.Debug,
		JSON:    cfg.JSON,
		Service: cfg.Service,
		Version: common.Version,
	})

	if cfg.UID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cfg config.ServerConfig, logger *slog.Logger) *api.HTTPServerConfig {
	return &api.HTTPServerConfig{
		ListenAddr:               cfg.ListenAddr,
		MetricsAddr:              cfg.MetricsAddr,
		Log:                      logger,
		EnablePprof:              cfg.Pprof,
		DrainDuration:            time.Duration(cfg.DrainSeconds) * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}
}

var ConfigFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "YAML config file; flags given on the command line take precedence",
}

var ListenAddrFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8080",
	Usage: "address to listen on for API",
}

var StoreFlag = &cli.StringSliceFlag{
	Name:  "store",
	Usage: "proof store URI, repeatable; the first is authoritative, the rest are mirrors (default: memory://)",
}

var SinkFlag = &cli.StringSliceFlag{
	Name:  "sink",
	Usage: "event sink URI (log://, redis://host:6379/0?stream=..., amqp://...), repeatable",
}

var GenesisFlag = &cli.TimestampFlag{
	Name:   "genesis",
	Layout: time.RFC3339,
	Usage:  "genesis time of the local block source",
}

var BlockTimeFlag = &cli.DurationFlag{
	Name:  "block-time",
	Value: 6 * time.Second,
	Usage: "block interval of the local block source",
}

var RpcAddrFlag = &cli.StringFlag{
	Name:  "rpc-addr",
	Usage: "Ethereum RPC to take block numbers from instead of the local clock",
}

var PollIntervalFlag = &cli.DurationFlag{
	Name:  "poll-interval",
	Value: 2 * time.Second,
	Usage: "how long an Ethereum chain head is reused",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: "proof-registry",
	Usage: "add 'service' tag to logs",
}

var PprofFlag = &cli.BoolFlag{
	Name:  "pprof",
	Value: false,
	Usage: "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:  "drain-seconds",
	Value: 45,
	Usage: "seconds to wait in drain HTTP request",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:  "metrics-addr",
	Value: "127.0.0.1:8090",
	Usage: "address to listen on for Prometheus metrics, empty to disable",
}

var LogFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	LogServiceFlag,
}

var ServerFlags = []cli.Flag{
	ConfigFlag,
	ListenAddrFlag,
	MetricsAddrFlag,
	PprofFlag,
	DrainSecondsFlag,
	StoreFlag,
	SinkFlag,
	GenesisFlag,
	BlockTimeFlag,
	RpcAddrFlag,
	PollIntervalFlag,
}
