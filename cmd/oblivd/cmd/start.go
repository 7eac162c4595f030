package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"cosmossdk.io/log"
	"github.com/spf13/cobra"

	"github.com/oblivion-chain/oblivion/api"
	"github.com/oblivion-chain/oblivion/app"
	"github.com/oblivion-chain/oblivion/app/health"
	"github.com/oblivion-chain/oblivion/app/telemetry"
	"github.com/oblivion-chain/oblivion/indexer"
	"github.com/oblivion-chain/oblivion/x/marketplace/verifier"
)

// Version is set at build time with -ldflags.
var Version = "dev"

// StartCmd runs the node: state machine, HTTP API and metrics listener.
func StartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the node",
		Long: `Start opens the database under <home>/data, initializes the chain from
<home>/config/genesis.json on first run and serves the HTTP API until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := getCommandContext(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runNode(ctx, cc)
		},
	}
}

func runNode(ctx context.Context, cc *commandContext) (err error) {
	cfg := cc.Config
	logger := cc.Logger

	if cfg.Telemetry.ChainID == "" {
		cfg.Telemetry.ChainID = cfg.App.ChainID
	}
	provider, err := telemetry.NewProvider(cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = errors.Join(err, provider.Shutdown(shutdownCtx))
	}()
	txMetrics, err := telemetry.NewTxMetrics(provider.Meter())
	if err != nil {
		return err
	}

	verifiers, err := loadVerifiers(cc.Home, logger)
	if err != nil {
		return err
	}

	var (
		sink     indexer.Sink = indexer.Nop{}
		postgres *indexer.PostgresSink
	)
	if cfg.Indexer.URL != "" {
		postgres, err = indexer.NewPostgresSink(ctx, logger, cfg.Indexer)
		if err != nil {
			return err
		}
		sink = postgres
	}
	defer func() { err = errors.Join(err, sink.Close()) }()

	db, err := cfg.App.OpenDB()
	if err != nil {
		return err
	}
	node, err := app.New(logger, db, cfg.App,
		app.WithVerifiers(verifiers),
		app.WithReceiptSink(sink),
		app.WithTxMetrics(txMetrics),
	)
	if err != nil {
		db.Close()
		return err
	}
	defer func() { err = errors.Join(err, node.Close()) }()

	if node.Height() == 0 {
		doc, err := app.LoadGenesis(filepath.Join(cc.Home, configDirName, genesisName))
		if err != nil {
			return err
		}
		if err := node.InitChain(ctx, doc); err != nil {
			return err
		}
	}

	checker, err := health.NewChecker(logger, cfg.Health, node, Version)
	if err != nil {
		return err
	}
	checker.AddProbe("telemetry", func(context.Context) error { return provider.HealthCheck() }, true)
	if postgres != nil {
		checker.AddProbe("indexer", postgres.Ping, true)
	}
	store, err := openContentStore(logger, cfg.Content)
	if err != nil {
		return err
	}
	checker.AddProbe("content_store", store.Ping, true)

	if cfg.Metrics.Enabled {
		if _, err := api.StartMetricsServer(ctx, logger, cfg.Metrics.Addr, checker); err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
	}

	server, err := api.NewServer(logger, node, checker, &cfg.API)
	if err != nil {
		return err
	}
	logger.Info("node started",
		"chain_id", node.ChainID(),
		"height", node.Height(),
		"verifiers", verifiers.Names(),
		"version", Version,
	)
	return server.Start(ctx)
}

// loadVerifiers registers the mock verifier and, when init wrote one, the
// groth16 verifying key.
func loadVerifiers(home string, logger log.Logger) (*verifier.Router, error) {
	router := verifier.NewRouter().Register(verifier.NameMock, verifier.MockVerifier{})

	f, err := os.Open(filepath.Join(home, configDirName, verifyingKey))
	if errors.Is(err, os.ErrNotExist) {
		return router, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	v, err := verifier.LoadGroth16Verifier(f)
	if err != nil {
		return nil, fmt.Errorf("verifying key: %w", err)
	}
	logger.Info("loaded groth16 verifying key")
	return router.Register(verifier.NameGroth16, v), nil
}
