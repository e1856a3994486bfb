// Package app wires configuration into a running gallery: RPC transport,
// contract gateway, stores and the session.
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"timeshift-nft/internal/config"
	"timeshift-nft/internal/evm"
	"timeshift-nft/internal/gallery"
	"timeshift-nft/internal/gateway"
	"timeshift-nft/internal/mint"
	"timeshift-nft/internal/session"
	"timeshift-nft/internal/storage"
	"timeshift-nft/internal/storage/memory"
	"timeshift-nft/internal/storage/migrations"
	pgstore "timeshift-nft/internal/storage/postgres"
)

// NewLogger returns the component logger used across binaries.
func NewLogger(component string) *log.Logger {
	return log.New(os.Stdout, "["+component+"] ", log.LstdFlags|log.Lshortfile)
}

// Stores holds the history stores.
type Stores struct {
	Artwork storage.ArtworkStore
	Mints   storage.MintStore
}

// App is a wired gallery.
type App struct {
	Config   *config.Config
	RPC      *evm.HTTPClient
	Contract *gateway.Contract
	Session  *session.Session
	Stores   *Stores

	logger    *log.Logger
	cleanup   func()
	closeOnce sync.Once
}

// New builds every component from cfg. The session is created unbound; call Bind.
func New(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.Default()
	}

	rpc := evm.NewHTTPClient(cfg.RPCEndpoint,
		evm.WithMaxRetries(cfg.RPCMaxRetries),
		evm.WithTimeout(cfg.RPCCallTimeout),
	)

	contract, err := gateway.NewContract(gateway.Options{
		Client:      rpc,
		Address:     cfg.ContractAddress,
		Signer:      cfg.SignerAddress,
		CallTimeout: cfg.RPCCallTimeout,
		RateLimit:   cfg.RPCRateLimit,
		RateBurst:   cfg.RPCRateBurst,
	})
	if err != nil {
		return nil, fmt.Errorf("create contract gateway: %w", err)
	}

	stores, cleanup, err := CreateStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	sess := session.New(session.Options{
		Resolver: gallery.NewResolver(gallery.ResolverOptions{
			Workers: cfg.ResolverWorkers,
			Logger:  NewLogger("resolver"),
		}),
		Refresher: gallery.NewRefresher(gallery.RefresherOptions{
			Store:    stores.Artwork,
			Contract: contract.Address(),
			Logger:   NewLogger("refresher"),
		}),
		Scheduler: gallery.NewScheduler(cfg.RefreshInterval),
		Minter: mint.NewMinter(mint.Options{
			ReceiptPollInterval: cfg.ReceiptPollInterval,
			ConfirmTimeout:      cfg.ConfirmTimeout,
			ExplorerTxURL:       cfg.ExplorerTxURL,
			Store:               stores.Mints,
			Contract:            contract.Address(),
			Logger:              NewLogger("mint"),
		}),
		Logger: NewLogger("session"),
	})

	return &App{
		Config:   cfg,
		RPC:      rpc,
		Contract: contract,
		Session:  sess,
		Stores:   stores,
		logger:   logger,
		cleanup:  cleanup,
	}, nil
}

// CheckChain logs the chain id of the RPC endpoint, failing if it is unreachable.
func (a *App) CheckChain(ctx context.Context) error {
	id, err := a.RPC.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("query chain id: %w", err)
	}
	a.logger.Printf("connected to chain %d, contract %s", id, a.Contract.Address())
	return nil
}

// Bind points the session at the configured owner.
func (a *App) Bind() uint64 {
	return a.Session.Bind(a.Contract, a.Config.Owner())
}

// Watch subscribes to contract transfers over WebSocket until ctx is done.
// A no-op without a WebSocket endpoint.
func (a *App) Watch(ctx context.Context) error {
	if a.Config.WSEndpoint == "" {
		return nil
	}

	wsCfg := evm.DefaultWSConfig()
	wsCfg.Logger = NewLogger("ws")
	ws, err := evm.NewWSClient(ctx, a.Config.WSEndpoint, &wsCfg)
	if err != nil {
		return fmt.Errorf("create websocket client: %w", err)
	}
	defer ws.Close()

	return a.Session.Watch(ctx, ws, a.Contract.Address())
}

// Close stops the session and releases the stores. Safe to call more than once.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		a.Session.Close()
		a.cleanup()
	})
}

// CreateStores returns in-memory stores or migrated PostgreSQL stores.
func CreateStores(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Stores, func(), error) {
	if cfg.UseMemory {
		return &Stores{
			Artwork: memory.NewArtworkStore(),
			Mints:   memory.NewMintStore(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool, logger); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrate postgres: %w", err)
	}

	return &Stores{
		Artwork: pgstore.NewArtworkStore(pool),
		Mints:   pgstore.NewMintStore(pool),
	}, pool.Close, nil
}
