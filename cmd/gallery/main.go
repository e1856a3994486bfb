// Package main is a command-line client of the gallery: it resolves the
// owner's tokens once, mints a token, prints the signer balance, or watches
// the gallery live.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"timeshift-nft/internal/app"
	"timeshift-nft/internal/config"
	"timeshift-nft/internal/evm"
	"timeshift-nft/internal/session"
)

const usage = `usage: gallery [flags] <command>

commands:
  resolve   list the owner's tokens
  mint      mint a token and wait for confirmation
  balance   print the signer balance in ether
  watch     keep the gallery live and print every change

flags:
`

func main() {
	logger := app.NewLogger("gallery")

	cfg, err := config.Load(".env")
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	cfg.UseMemory = true

	flag.StringVar(&cfg.RPCEndpoint, "rpc-endpoint", cfg.RPCEndpoint, "Ethereum JSON-RPC HTTP endpoint")
	flag.StringVar(&cfg.WSEndpoint, "ws-endpoint", cfg.WSEndpoint, "Ethereum WebSocket endpoint (watch only)")
	flag.StringVar(&cfg.ContractAddress, "contract", cfg.ContractAddress, "TimeShift NFT contract address")
	flag.StringVar(&cfg.SignerAddress, "signer", cfg.SignerAddress, "Account mint transactions are sent from")
	flag.StringVar(&cfg.OwnerAddress, "owner", cfg.OwnerAddress, "Gallery owner (defaults to --signer)")
	flag.IntVar(&cfg.ResolverWorkers, "resolver-workers", cfg.ResolverWorkers, "Concurrent ownership lookups")
	svgDir := flag.String("svg-dir", "", "Write each token's decoded SVG into this directory (resolve only)")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall timeout for resolve, mint and balance")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	command := flag.Arg(0)

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid configuration:\n%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gallery, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create gallery: %v", err)
	}
	defer gallery.Close()

	switch command {
	case "resolve":
		err = runResolve(ctx, gallery, *timeout, *svgDir)
	case "mint":
		err = runMint(ctx, gallery, *timeout)
	case "balance":
		err = runBalance(ctx, gallery, *timeout)
	case "watch":
		err = runWatch(ctx, gallery)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		gallery.Close()
		logger.Fatalf("%s: %v", command, err)
	}
}

func runResolve(ctx context.Context, a *app.App, timeout time.Duration, svgDir string) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	a.Bind()
	if err := a.Session.WaitIdle(ctx); err != nil {
		return err
	}

	st := a.Session.State()
	if st.Error != "" {
		return errors.New(st.Error)
	}
	printState(st)

	if svgDir == "" {
		return nil
	}
	if err := os.MkdirAll(svgDir, 0o755); err != nil {
		return fmt.Errorf("create svg dir: %w", err)
	}
	for _, t := range st.Tokens {
		if t.SVG == "" {
			continue
		}
		path := filepath.Join(svgDir, fmt.Sprintf("%d.svg", t.ID))
		if err := os.WriteFile(path, []byte(t.SVG), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	fmt.Printf("wrote svgs to %s\n", svgDir)
	return nil
}

func runMint(ctx context.Context, a *app.App, timeout time.Duration) error {
	if !a.Config.CanMint() {
		return errors.New("SIGNER_ADDRESS is required to mint")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	a.Bind()
	result, err := a.Session.Mint(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("minted in block %d: %s\n", result.BlockNumber, result.ExplorerURL)

	if err := a.Session.WaitIdle(ctx); err != nil {
		return err
	}
	printState(a.Session.State())
	return nil
}

func runBalance(ctx context.Context, a *app.App, timeout time.Duration) error {
	if !a.Config.CanMint() {
		return errors.New("SIGNER_ADDRESS is required for balance")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	wei, err := a.Contract.Balance(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s ETH\n", a.Contract.Signer(), evm.FormatEther(wei))
	return nil
}

func runWatch(ctx context.Context, a *app.App) error {
	a.Bind()

	go func() {
		if err := a.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "transfer watch stopped: %v\n", err)
		}
	}()

	ticker := time.NewTicker(a.Config.RefreshInterval)
	defer ticker.Stop()

	var last string
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			st := a.Session.State()
			if st.Loading {
				continue
			}
			if fp := fingerprint(st); fp != last {
				last = fp
				printState(st)
			}
		}
	}
}

// fingerprint changes whenever the visible gallery changes.
func fingerprint(st session.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%s", st.Generation, st.Error)
	for _, t := range st.Tokens {
		fmt.Fprintf(&b, "|%d:%s", t.ID, t.Metadata.Image)
	}
	return b.String()
}

func printState(st session.State) {
	fmt.Printf("owner %s: %d token(s)\n", st.Owner, len(st.Tokens))
	featured, hasFeatured := st.Featured()
	for _, t := range st.Tokens {
		marker := " "
		if hasFeatured && t.ID == featured.ID {
			marker = "*"
		}
		if t.SVG == "" {
			fmt.Printf("%s #%-5d %-32s no inline svg\n", marker, t.ID, t.DisplayName())
			continue
		}
		fmt.Printf("%s #%-5d %-32s svg (%d bytes)\n", marker, t.ID, t.DisplayName(), len(t.SVG))
	}
}
