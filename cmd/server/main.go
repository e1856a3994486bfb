// Package main runs the gallery service: it resolves the owner's tokens,
// keeps their artwork fresh, watches contract transfers and serves the
// gallery HTTP API with health, metrics and status endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"timeshift-nft/internal/api"
	"timeshift-nft/internal/app"
	"timeshift-nft/internal/config"
)

// shutdownTimeout bounds graceful shutdown after the first signal.
const shutdownTimeout = 30 * time.Second

func main() {
	logger := app.NewLogger("server")

	cfg, err := config.Load(".env")
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Flags override env
	flag.StringVar(&cfg.RPCEndpoint, "rpc-endpoint", cfg.RPCEndpoint, "Ethereum JSON-RPC HTTP endpoint")
	flag.StringVar(&cfg.WSEndpoint, "ws-endpoint", cfg.WSEndpoint, "Ethereum WebSocket endpoint (optional, enables transfer watching)")
	flag.StringVar(&cfg.ContractAddress, "contract", cfg.ContractAddress, "TimeShift NFT contract address")
	flag.StringVar(&cfg.SignerAddress, "signer", cfg.SignerAddress, "Account mint transactions are sent from")
	flag.StringVar(&cfg.OwnerAddress, "owner", cfg.OwnerAddress, "Gallery owner (defaults to --signer)")
	flag.StringVar(&cfg.PostgresDSN, "postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	flag.BoolVar(&cfg.UseMemory, "use-memory", cfg.UseMemory, "Use in-memory storage instead of PostgreSQL")
	flag.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP listen address")
	flag.DurationVar(&cfg.RefreshInterval, "refresh-interval", cfg.RefreshInterval, "Metadata refresh interval")
	flag.IntVar(&cfg.ResolverWorkers, "resolver-workers", cfg.ResolverWorkers, "Concurrent ownership lookups")
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration:\n%v", err)
	}
	if !cfg.CanMint() {
		logger.Println("No signer configured, minting is disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gallery, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create gallery: %v", err)
	}

	if err := gallery.CheckChain(ctx); err != nil {
		gallery.Close()
		logger.Fatalf("RPC endpoint unavailable: %v", err)
	}

	gallery.Bind()
	logger.Printf("Gallery bound to owner %s", cfg.Owner())

	go func() {
		if err := gallery.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("Transfer watch stopped: %v", err)
		}
	}()

	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.New(api.Options{
			Session:  gallery.Session,
			Contract: cfg.ContractAddress,
			Artwork:  gallery.Stores.Artwork,
			Mints:    gallery.Stores.Mints,
			Logger:   app.NewLogger("api"),
		}).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to signal completion
	done := make(chan struct{})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stop()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("HTTP shutdown: %v", err)
		}

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(shutdownTimeout):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	logger.Printf("Starting HTTP server on %s", cfg.HTTPAddr)
	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Printf("HTTP server error: %v", err)
	}

	cancel()
	gallery.Close()
	close(done)

	logger.Println("Shutdown complete")
}
