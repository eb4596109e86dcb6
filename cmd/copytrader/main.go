// Command copytrader is the engine's entry point: it wires every
// component from SPEC_FULL.md's module list into one Scheduler and runs
// it until SIGINT/SIGTERM, grounded on cmd/bot/main.go's flag-parse,
// signal-context, and graceful-shutdown shape.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/gagliardetto/solana-go"

	"github.com/solana-copytrader/engine/internal/builders"
	"github.com/solana-copytrader/engine/internal/builders/aggregator"
	"github.com/solana-copytrader/engine/internal/builders/meteora"
	"github.com/solana-copytrader/engine/internal/builders/orca"
	"github.com/solana-copytrader/engine/internal/builders/poolindex"
	"github.com/solana-copytrader/engine/internal/builders/pumpfun"
	"github.com/solana-copytrader/engine/internal/builders/raydium"
	"github.com/solana-copytrader/engine/internal/chain"
	"github.com/solana-copytrader/engine/internal/classify"
	"github.com/solana-copytrader/engine/internal/config"
	"github.com/solana-copytrader/engine/internal/coredomain"
	"github.com/solana-copytrader/engine/internal/coreevents"
	"github.com/solana-copytrader/engine/internal/dedup"
	"github.com/solana-copytrader/engine/internal/follower"
	"github.com/solana-copytrader/engine/internal/ingest"
	"github.com/solana-copytrader/engine/internal/ledger"
	"github.com/solana-copytrader/engine/internal/logger"
	"github.com/solana-copytrader/engine/internal/metrics"
	"github.com/solana-copytrader/engine/internal/planner"
	"github.com/solana-copytrader/engine/internal/scheduler"
	"github.com/solana-copytrader/engine/internal/store/postgres"
	"github.com/solana-copytrader/engine/internal/submit"
)

// busBufferSize bounds the Position Opened / Dispatch Confirmed / Dispatch
// Failed event fan-out; a full buffer drops the event rather than
// blocking a dispatch, matching coreevents.Bus's own discipline.
const busBufferSize = 256

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logCfg := logger.DefaultConfig(cfg.LogFile)
	logCfg.Development = cfg.DebugLogging
	appLogger, err := logger.New(logCfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	sched, err := build(rootCtx, cfg, appLogger)
	if err != nil {
		appLogger.LogError("failed to build engine", err)
		log.Fatalf("failed to build engine: %v", err)
	}

	appLogger.Info("copytrader starting")
	if err := sched.Run(rootCtx); err != nil && rootCtx.Err() == nil {
		appLogger.LogError("engine exited with error", err)
		log.Fatalf("engine exited with error: %v", err)
	}
	appLogger.Info("copytrader stopped")
}

// build wires every SPEC_FULL.md component into a Scheduler, in dependency
// order: durable store and chain access first, then the read-only
// classification/planning stages, then the write paths (ledger, dedup,
// submitter, builders), and finally the Scheduler itself.
func build(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) (*scheduler.Scheduler, error) {
	baseLogger := appLogger.Logger

	durable, err := postgres.New(cfg.PostgresURL, baseLogger)
	if err != nil {
		return nil, err
	}

	chainClient := chain.New(chain.Config{
		Endpoints:           cfg.RPCEndpoints,
		CallsPerSecond:      cfg.CallsPerSecond,
		ConfirmPollInterval: cfg.ConfirmPollInterval,
	}, baseLogger)

	signers, err := follower.LoadSigners(cfg.FollowerCSVPath)
	if err != nil {
		return nil, err
	}

	ledgerStore, err := ledger.New(ctx, durable, baseLogger)
	if err != nil {
		return nil, err
	}

	dedupCache := dedup.New(ctx, cfg.DedupSweepInterval, func(ctx context.Context) (solana.Hash, error) {
		bh, err := chainClient.LatestBlockhash(ctx)
		return bh.Hash, err
	}, baseLogger)

	classifier := classify.New(classify.NewDefaultRegistry(), baseLogger)
	planEngine := planner.New(ledgerStore)
	submitter := submit.New(chainClient, baseLogger)
	bus := coreevents.NewBus(baseLogger, busBufferSize)
	metricsCollector := metrics.New()

	registry, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}
	aggregatorClient := aggregator.New(cfg.AggregatorURL, cfg.AggregatorTimeout)

	var source ingest.Source = ingest.NewWSGeyserSource(cfg.StreamURL, baseLogger)

	wireMetrics(bus, metricsCollector)

	deps := scheduler.Deps{
		Source:     source,
		Chain:      chainClient,
		Classifier: classifier,
		Planner:    planEngine,
		Ledger:     ledgerStore,
		Dedup:      dedupCache,
		Submitter:  submitter,
		Registry:   registry,
		Aggregator: aggregatorClient,
		Store:      durable,
		Bus:        bus,
	}

	return scheduler.New(ctx, deps, signers, baseLogger)
}

// buildRegistry wires every native Instruction Builder the engine knows
// how to construct. A family absent from the registry falls back to the
// aggregator at dispatch time rather than failing the follower outright.
func buildRegistry(cfg *config.Config) (*builders.Registry, error) {
	feeRecipient, err := solana.PublicKeyFromBase58(cfg.PumpFunFeeRecipient)
	if err != nil {
		return nil, err
	}
	pumpfunBuilder, err := pumpfun.New(feeRecipient)
	if err != nil {
		return nil, err
	}

	pools := poolindex.New()
	if cfg.PoolSeedPath != "" {
		if err := poolindex.LoadSeedFile(pools, cfg.PoolSeedPath); err != nil {
			return nil, err
		}
	}
	raydiumBuilder := raydium.New(pools.ForRaydium())
	meteoraBuilder := meteora.New(pools.ForMeteora())
	orcaBuilder := orca.New(pools.ForOrca())

	return builders.NewRegistry().
		With(coredomain.DEXPumpFunBondingCrv, pumpfunBuilder).
		With(coredomain.DEXPumpFunAMM, pumpfunBuilder).
		With(coredomain.DEXRaydiumV4, raydiumBuilder).
		With(coredomain.DEXRaydiumCPMM, raydiumBuilder).
		With(coredomain.DEXRaydiumCLMM, raydiumBuilder).
		With(coredomain.DEXRaydiumLaunchpad, raydiumBuilder).
		With(coredomain.DEXMeteoraDLMM, meteoraBuilder).
		With(coredomain.DEXMeteoraDBC, meteoraBuilder).
		With(coredomain.DEXMeteoraCPAMM, meteoraBuilder).
		With(coredomain.DEXOrcaWhirlpool, orcaBuilder), nil
}

// wireMetrics subscribes the Metrics collector to the event bus so
// dispatch/classification outcomes are recorded without the Scheduler
// importing internal/metrics directly.
func wireMetrics(bus *coreevents.Bus, collector *metrics.Collector) {
	bus.SubscribeFunc(coreevents.DispatchConfirmed, func(ctx context.Context, e coreevents.Event) error {
		if ev, ok := e.(*coreevents.DispatchConfirmedEvent); ok {
			collector.RecordDispatch("confirmed", ev.FollowerID, ev.Duration)
		}
		return nil
	})
	bus.SubscribeFunc(coreevents.DispatchFailed, func(ctx context.Context, e coreevents.Event) error {
		if ev, ok := e.(*coreevents.DispatchFailedEvent); ok {
			collector.RecordDispatch("failed", ev.FollowerID, 0)
		}
		return nil
	})
	bus.SubscribeFunc(coreevents.ClassificationRejected, func(ctx context.Context, e coreevents.Event) error {
		if ev, ok := e.(*coreevents.ClassificationRejectedEvent); ok {
			collector.RecordClassification(ev.Reason)
		}
		return nil
	})
}
