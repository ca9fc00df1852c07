package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/tokengate/token-allowlist-backend/api/handlers"
	"github.com/tokengate/token-allowlist-backend/cmd/flags"
	"github.com/tokengate/token-allowlist-backend/httpserver"
	"github.com/tokengate/token-allowlist-backend/interfaces"
	"github.com/tokengate/token-allowlist-backend/keystore"
	"github.com/tokengate/token-allowlist-backend/ledger"
	"github.com/tokengate/token-allowlist-backend/program"
	"github.com/tokengate/token-allowlist-backend/registry"
	"github.com/tokengate/token-allowlist-backend/storage"
)

var genesisBalanceFlag = &cli.Uint64Flag{
	Name:  "genesis-balance",
	Value: 1_000_000_000_000,
	Usage: "balance credited to the authority account at ledger genesis",
}

var serverFlags = append([]cli.Flag{
	flags.ListenAddrFlag,
	flags.SeedFlag,
	flags.PassphraseFlag,
	flags.SaltFlag,
	flags.StorageFlag,
	flags.MaxShardsFlag,
	genesisBalanceFlag,
	flags.LogServiceFlagFn("allowlist-server"),
}, flags.CommonFlags...)

func main() {
	app := &cli.App{
		Name:   "allowlist-server",
		Usage:  "Serve the token allowlist registry API",
		Flags:  serverFlags,
		Action: runServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runServer(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	keys, err := buildKeystore(cCtx)
	if err != nil {
		logger.Error("Failed to build keystore", "err", err)
		return err
	}

	authority, err := keys.DeriveKeypair("authority")
	if err != nil {
		return err
	}

	l := ledger.New(logger, ledger.Config{
		Rent: program.DefaultRent,
		Genesis: map[interfaces.Identity]uint64{
			authority.Identity: cCtx.Uint64(genesisBalanceFlag.Name),
		},
	})

	client, err := registry.NewAllowlistClient(l, l, keys, logger)
	if err != nil {
		return err
	}

	// First boot initializes the registry map account.
	if _, exists := l.GetAccount(client.Registry()); !exists {
		maxShards := cCtx.Uint64(flags.MaxShardsFlag.Name)
		if _, err := client.InitRegistry(cCtx.Context, maxShards); err != nil {
			logger.Error("Failed to initialize registry", "err", err)
			return err
		}
		if _, err := client.CreateShard(cCtx.Context, registry.DefaultShardCapacity); err != nil {
			logger.Error("Failed to create initial shard", "err", err)
			return err
		}
	}

	logger.Info("Registry ready",
		"registry", client.Registry().String(),
		"authority", client.Authority().String())

	publisher, err := buildPublisher(cCtx, logger)
	if err != nil {
		return err
	}

	handler := handlers.NewHandler(client, l, publisher, nil, logger)

	cfg := flags.ConfigureServer(cCtx, logger, cCtx.String(flags.ListenAddrFlag.Name))
	server, err := httpserver.New(cfg, handler)
	if err != nil {
		logger.Error("Failed to create server", "err", err)
		return err
	}
	handler.SetMetrics(server.Metrics())
	if m := server.Metrics(); m != nil {
		l.SetMetrics(m)
	}

	server.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	<-exit
	logger.Info("Shutting down")

	server.Shutdown()
	return nil
}

// buildKeystore derives the master seed from either the hex seed flag or a
// passphrase. Exactly one source must be provided.
func buildKeystore(cCtx *cli.Context) (*keystore.Keystore, error) {
	seedHex := cCtx.String(flags.SeedFlag.Name)
	passphrase := cCtx.String(flags.PassphraseFlag.Name)

	switch {
	case seedHex != "" && passphrase != "":
		return nil, errors.New("keystore-seed and keystore-passphrase are mutually exclusive")
	case seedHex != "":
		seed, err := hex.DecodeString(seedHex)
		if err != nil || len(seed) != 32 {
			return nil, fmt.Errorf("invalid keystore-seed - must be 64 hex chars (32 bytes): %v", err)
		}
		return keystore.New(seed)
	case passphrase != "":
		return keystore.FromPassphrase(passphrase, cCtx.String(flags.SaltFlag.Name))
	default:
		return nil, errors.New("either keystore-seed or keystore-passphrase is required")
	}
}

// buildPublisher creates a snapshot publisher over the configured storage
// backends. Returns nil when no storage URIs are given.
func buildPublisher(cCtx *cli.Context, log *slog.Logger) (*storage.Publisher, error) {
	uris := cCtx.StringSlice(flags.StorageFlag.Name)
	if len(uris) == 0 {
		return nil, nil
	}

	locations := make([]interfaces.StorageBackendLocation, 0, len(uris))
	for _, uri := range uris {
		location, err := interfaces.NewStorageBackendLocation(uri)
		if err != nil {
			return nil, fmt.Errorf("invalid storage URI %q: %w", uri, err)
		}
		locations = append(locations, location)
	}

	factory := storage.NewStorageBackendFactory(log)
	backend, err := factory.CreateMultiBackend(locations)
	if err != nil {
		return nil, err
	}

	return storage.NewPublisher(backend, log), nil
}
