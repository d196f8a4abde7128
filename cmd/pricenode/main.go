package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/woodser/haveno-pricenode/pkg/config"
	"github.com/woodser/haveno-pricenode/pkg/logging"
	"github.com/woodser/haveno-pricenode/pkg/metrics"
	"github.com/woodser/haveno-pricenode/pkg/server/aggregator"
	"github.com/woodser/haveno-pricenode/pkg/server/api"
	"github.com/woodser/haveno-pricenode/pkg/server/currency"
	"github.com/woodser/haveno-pricenode/pkg/server/pivot"
	"github.com/woodser/haveno-pricenode/pkg/server/publish"
	"github.com/woodser/haveno-pricenode/pkg/server/snapshot"
	"github.com/woodser/haveno-pricenode/pkg/server/sources"
	"github.com/woodser/haveno-pricenode/pkg/server/transform"
	"github.com/woodser/haveno-pricenode/pkg/version"

	// Import sources to register them
	_ "github.com/woodser/haveno-pricenode/pkg/server/sources/httpjson"
	_ "github.com/woodser/haveno-pricenode/pkg/server/sources/static"
	_ "github.com/woodser/haveno-pricenode/pkg/server/sources/stream"
)

var (
	configFile = flag.String("config", "config/config.yaml", "Path to configuration file")
	showVer    = flag.Bool("version", false, "Show version and exit")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("haveno-pricenode version %s\n", version.Version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobal(logger)

	logger.Info("Starting haveno-pricenode", "version", version.Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- run(ctx, cfg, logger)
	}()

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig.String())
		cancel()
		if err := <-errChan; err != nil {
			logger.Error("Shutdown error", "error", err)
		}
	case err := <-errChan:
		if err != nil {
			logger.Error("Price node failed", "error", err)
			os.Exit(1)
		}
	}
	logger.Info("Shutdown complete")
}

// run wires every component and blocks until ctx is cancelled or the API fails.
func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	metricsOnAPI := false
	if cfg.Metrics.Enabled {
		metrics.Init()
		if cfg.Metrics.Addr == "" || cfg.Metrics.Addr == cfg.Server.HTTP.Addr {
			metricsOnAPI = true
		} else {
			go func() {
				logger.Info("Starting metrics server", "addr", cfg.Metrics.Addr, "path", cfg.Metrics.Path)
				if err := metrics.ServeHTTP(cfg.Metrics.Addr, cfg.Metrics.Path); err != nil {
					logger.Error("Metrics server failed", "error", err)
				}
			}()
		}
	}

	allSources := startSources(ctx, cfg, logger)
	defer func() {
		for _, src := range allSources {
			if err := src.Stop(); err != nil {
				logger.Warn("Failed to stop source", "source", src.Name(), "error", err)
			}
		}
	}()
	if len(allSources) == 0 {
		return errors.New("no sources started")
	}

	classifier, err := currency.NewRegistry(cfg.Currencies.Crypto, cfg.Currencies.Fiat)
	if err != nil {
		return err
	}

	logWindow := cfg.Aggregation.LogWindow.ToDuration()
	agg, err := aggregator.New(logger, cfg.Aggregation.OutlierStdDevValue(), logging.NewGate(logWindow))
	if err != nil {
		return err
	}
	logger.Info("Aggregation configured",
		"outlier_std_dev", agg.Multiplier(),
		"pivot", cfg.Aggregation.Pivot,
		"currencies", len(classifier.Codes()))

	translator, err := pivot.NewTranslator(pivot.Config{
		Pivot:        cfg.Aggregation.Pivot,
		CryptoBridge: cfg.Aggregation.CryptoBridge,
		FiatBridge:   cfg.Aggregation.FiatBridge,
	}, classifier, logger)
	if err != nil {
		return err
	}

	registry, gaps, err := buildTransformers(ctx, cfg, logWindow, logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, g := range gaps {
			g.Stop()
		}
	}()

	providers := make([]aggregator.Provider, 0, len(allSources))
	health := make([]api.HealthReporter, 0, len(allSources))
	for _, src := range allSources {
		providers = append(providers, src)
		health = append(health, src)
	}
	builder := snapshot.NewBuilder(providers, agg, translator, registry, logger)

	var ws *api.WebSocketServer
	publishers := make([]publish.Publisher, 0, 2)
	if cfg.Server.WebSocket.Enabled {
		ws = api.NewWebSocketServer(logger)
		go ws.Run()
		publishers = append(publishers, ws)
	}
	if cfg.Publish.Enabled && cfg.Publish.Redis.URL != "" {
		opts := []publish.RedisOption{}
		if cfg.Publish.Redis.Key != "" {
			opts = append(opts, publish.WithKey(cfg.Publish.Redis.Key))
		}
		if cfg.Publish.Redis.Channel != "" {
			opts = append(opts, publish.WithChannel(cfg.Publish.Redis.Channel))
		}
		if ttl := cfg.Publish.Redis.TTL.ToDuration(); ttl > 0 {
			opts = append(opts, publish.WithTTL(ttl))
		}
		rp, err := publish.NewRedisPublisher(ctx, cfg.Publish.Redis.URL, opts...)
		if err != nil {
			return fmt.Errorf("redis publisher: %w", err)
		}
		publishers = append(publishers, rp)
		logger.Info("Publishing snapshots to redis", "interval", cfg.Publish.Interval.ToDuration().String())
	}
	defer func() {
		for _, p := range publishers {
			_ = p.Close()
		}
	}()
	if len(publishers) > 0 {
		loop := publish.NewLoop(builder.Build, cfg.Publish.Interval.ToDuration(), logger, publishers...)
		go loop.Run(ctx)
	}

	opts := api.Options{
		Addr:           cfg.Server.HTTP.Addr,
		ReadTimeout:    cfg.Server.HTTP.ReadTimeout.ToDuration(),
		WriteTimeout:   cfg.Server.HTTP.WriteTimeout.ToDuration(),
		Version:        cfg.Server.Version,
		WebSocketPath:  cfg.Server.WebSocket.Path,
		RateLimit:      cfg.Server.RateLimit.Enabled,
		RequestsPerSec: cfg.Server.RateLimit.RequestsPerSecond,
		Burst:          cfg.Server.RateLimit.Burst,
	}
	if cfg.Server.HTTP.TLS.Enabled {
		opts.TLSCert = cfg.Server.HTTP.TLS.Cert
		opts.TLSKey = cfg.Server.HTTP.TLS.Key
	}
	if metricsOnAPI {
		opts.MetricsPath = cfg.Metrics.Path
	}
	server := api.NewServer(opts, builder, health, ws, logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Stop(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

// startSources creates, initializes and starts every enabled source. Sources
// that fail are logged and skipped.
func startSources(ctx context.Context, cfg *config.Config, logger *logging.Logger) []sources.Source {
	started := make([]sources.Source, 0, len(cfg.Sources))
	for _, sourceCfg := range cfg.EnabledSources() {
		logger.Info("Initializing source", "type", sourceCfg.Type, "format", sourceCfg.Format, "name", sourceCfg.Name)

		factoryCfg := sourceCfg.FactoryConfig()
		factoryCfg["logger"] = logger

		source, err := sources.Create(sourceCfg.Type, sourceCfg.Format, factoryCfg)
		if err != nil {
			logger.Warn("Failed to create source", "name", sourceCfg.Name, "error", err)
			continue
		}

		if err := source.Initialize(ctx); err != nil {
			logger.Warn("Failed to initialize source", "source", source.Name(), "error", err)
			continue
		}

		if err := source.Start(ctx); err != nil {
			logger.Warn("Failed to start source", "source", source.Name(), "error", err)
			continue
		}

		started = append(started, source)
	}
	logger.Info("Sources started", "count", len(started))
	return started
}

// buildTransformers starts the gap pollers and returns the transformer registry.
// Each transformer gets its own log gate so aggregation passes cannot starve it.
func buildTransformers(
	ctx context.Context,
	cfg *config.Config,
	logWindow time.Duration,
	logger *logging.Logger,
) (*transform.Registry, []*transform.HTTPGap, error) {
	gaps := make([]*transform.HTTPGap, 0, len(cfg.Transformers))
	transformers := make([]transform.Transformer, 0, len(cfg.Transformers))

	for _, tc := range cfg.Transformers {
		gap := transform.NewHTTPGap(tc.Currency+"-gap", transform.HTTPGapConfig{
			URL:          tc.Gap.URL,
			OfficialPath: tc.Gap.OfficialPath,
			ParallelPath: tc.Gap.ParallelPath,
			Interval:     tc.Gap.Interval.ToDuration(),
			MaxAge:       tc.Gap.MaxAge.ToDuration(),
			Timeout:      tc.Gap.Timeout.ToDuration(),
		}, logger)
		if err := gap.Start(ctx); err != nil {
			logger.Warn("Gap provider failed to start", "currency", tc.Currency, "error", err)
		}
		gaps = append(gaps, gap)

		transformers = append(transformers,
			transform.NewParallelMarket(tc.Currency, tc.NativeSource, gap, logging.NewGate(logWindow), logger))
		logger.Info("Registered transformer", "type", tc.Type, "currency", tc.Currency)
	}

	registry, err := transform.NewRegistry(transformers...)
	if err != nil {
		return nil, gaps, err
	}
	return registry, gaps, nil
}
