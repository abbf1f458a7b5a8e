package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/vaultsig/multisig-go/pkg/config"
	"github.com/vaultsig/multisig-go/pkg/effect"
	"github.com/vaultsig/multisig-go/pkg/logger"
	"github.com/vaultsig/multisig-go/pkg/persistence"
	"github.com/vaultsig/multisig-go/pkg/persistence/badger"
	"github.com/vaultsig/multisig-go/pkg/persistence/memory"
	"github.com/vaultsig/multisig-go/pkg/persistence/redis"
	"github.com/vaultsig/multisig-go/pkg/server"
	"github.com/vaultsig/multisig-go/pkg/wallet"
)

func main() {
	app := &cli.App{
		Name:  "multisig-server",
		Usage: "Multi-party transaction authorization server",
		Description: `A quorum-gated transaction authorization engine.

Designated owners jointly approve proposed transactions using off-chain
collected, domain-separated ECDSA signatures. Once the approval threshold is
met, any owner may execute the transaction, which performs the configured
side effect exactly once. Owner set and threshold are governed by a single
configured authority.`,
		Version: "1.0.0",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   8600,
				Usage:   "HTTP server port",
				EnvVars: []string{config.EnvWalletPort},
			},
			&cli.Uint64Flag{
				Name:     "chain-id",
				Aliases:  []string{"chain"},
				Usage:    "Chain/environment identifier bound into signature digests",
				EnvVars:  []string{config.EnvWalletChainID},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "instance-address",
				Aliases:  []string{"instance"},
				Usage:    "This wallet's identity address, bound into signature digests",
				EnvVars:  []string{config.EnvWalletInstance},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "owners",
				Usage:    "Comma-separated initial owner addresses (ignored once registry state is persisted)",
				EnvVars:  []string{config.EnvWalletOwners},
				Required: true,
			},
			&cli.IntFlag{
				Name:     "required",
				Usage:    "Initial approval threshold",
				EnvVars:  []string{config.EnvWalletRequired},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "authority",
				Usage:    "Governance authority address (may add/remove owners and change the threshold)",
				EnvVars:  []string{config.EnvWalletAuthority},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "persistence-type",
				Value:   string(config.PersistenceBadger),
				Usage:   "Persistence backend: memory (testing only), badger, redis",
				EnvVars: []string{config.EnvWalletPersistence},
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Value:   "./data",
				Usage:   "Badger data directory",
				EnvVars: []string{config.EnvWalletDataDir},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis address (host:port)",
				EnvVars: []string{config.EnvWalletRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvWalletRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Value:   0,
				Usage:   "Redis database number",
				EnvVars: []string{config.EnvWalletRedisDB},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvWalletVerbose},
			},
		},
		Action: runWalletServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runWalletServer(c *cli.Context) error {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	cfg := parseWalletConfig(c)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	store, err := buildPersistence(cfg, l)
	if err != nil {
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.HealthCheck(); err != nil {
		return fmt.Errorf("persistence health check failed: %w", err)
	}

	owners := make([]common.Address, 0, len(cfg.Owners))
	for _, o := range cfg.Owners {
		owners = append(owners, common.HexToAddress(o))
	}

	w, err := wallet.NewWallet(wallet.Config{
		ChainID:         cfg.ChainID,
		InstanceAddress: common.HexToAddress(cfg.InstanceAddress),
		Owners:          owners,
		Required:        cfg.Required,
		Authority:       common.HexToAddress(cfg.Authority),
		Effect:          effect.Noop{},
		Persistence:     store,
		Logger:          l,
	})
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	srv := server.NewServer(w, cfg.Port, l, store.HealthCheck)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	l.Sugar().Infow("Wallet server running",
		"port", cfg.Port,
		"chain_id", cfg.ChainID,
		"instance", cfg.InstanceAddress,
		"owners", len(cfg.Owners),
		"required", cfg.Required,
		"persistence", string(cfg.PersistenceType))

	// Block until interrupted
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Sugar().Info("Shutting down")
	return srv.Stop()
}

func parseWalletConfig(c *cli.Context) *config.WalletServerConfig {
	return &config.WalletServerConfig{
		Port:            c.Int("port"),
		ChainID:         c.Uint64("chain-id"),
		InstanceAddress: c.String("instance-address"),
		Owners:          config.ParseOwners(c.String("owners")),
		Required:        c.Int("required"),
		Authority:       c.String("authority"),
		PersistenceType: config.PersistenceType(c.String("persistence-type")),
		DataDir:         c.String("data-dir"),
		RedisAddress:    c.String("redis-address"),
		RedisPassword:   c.String("redis-password"),
		RedisDB:         c.Int("redis-db"),
		Verbose:         c.Bool("verbose"),
	}
}

func buildPersistence(cfg *config.WalletServerConfig, l *zap.Logger) (persistence.IWalletPersistence, error) {
	switch cfg.PersistenceType {
	case config.PersistenceMemory:
		l.Sugar().Warnw("Using in-memory persistence - ALL STATE WILL BE LOST ON RESTART")
		return memory.NewMemoryPersistence(), nil
	case config.PersistenceBadger:
		return badger.NewBadgerPersistence(cfg.DataDir, l)
	case config.PersistenceRedis:
		return redis.NewRedisPersistence(&redis.RedisConfig{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, l)
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s", cfg.PersistenceType)
	}
}
