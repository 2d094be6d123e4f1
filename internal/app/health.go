package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"courseware.fit/polyglot/internal/cli"
	"courseware.fit/polyglot/internal/kvstore"
)

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Second, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, logger, err := loadRuntime()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("health check failed to open store")
		fmt.Fprintf(os.Stderr, "Store connection failed: %v\n", err)
		return 1
	}
	defer closeStore()

	if pg, ok := store.(*kvstore.Postgres); ok {
		if err := pg.Ping(ctx); err != nil {
			logger.Error().Err(err).Msg("store ping failed")
			fmt.Fprintf(os.Stderr, "Store ping failed: %v\n", err)
			return 1
		}
		fmt.Printf("OK: store reachable (namespace %s)\n", cfg.StoreNamespace)
		return 0
	}

	fmt.Println("OK: in-memory store")
	return 0
}
