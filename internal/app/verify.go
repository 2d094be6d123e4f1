package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"courseware.fit/polyglot/internal/cli"
	"courseware.fit/polyglot/internal/kvstore"
	"courseware.fit/polyglot/internal/language"
	"courseware.fit/polyglot/internal/replicate"
	"courseware.fit/polyglot/internal/resource"
)

func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	resourceID := fs.String("resource", "", "Resource ID to verify")
	langs := fs.String("langs", "", "Comma-separated language codes (defaults to the resource's available languages)")
	group := fs.String("group", "", "Mailbox group to include in the check")
	timeout := fs.Duration("timeout", time.Minute, "Command timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if strings.TrimSpace(*resourceID) == "" {
		fmt.Fprintln(os.Stderr, "--resource is required")
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
		logger.Error().Err(err).Msg("verify failed to open store")
		fmt.Fprintf(os.Stderr, "Store connection failed: %v\n", err)
		return 1
	}
	defer closeStore()

	repo := resource.NewRepository(store, logger)
	res, err := repo.GetResource(ctx, strings.TrimSpace(*resourceID))
	if err != nil {
		if errors.Is(err, resource.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "Resource %s not found\n", *resourceID)
			return 1
		}
		logger.Error().Err(err).Str("resource_id", *resourceID).Msg("load resource failed")
		fmt.Fprintf(os.Stderr, "Failed to load resource: %v\n", err)
		return 1
	}

	targets := splitLanguageList(*langs)
	if len(targets) == 0 {
		targets = res.AvailableLanguages
	}
	if len(targets) == 0 {
		fmt.Fprintln(os.Stderr, "No languages to verify: pass --langs or replicate the resource first")
		return 2
	}

	verifier := replicate.NewVerifier(store, logger, replicate.VerifyPolicy{
		MaxAttempts:  cfg.VerifyMaxAttempts,
		InitialDelay: cfg.VerifyInitialDelay,
		MaxDelay:     cfg.VerifyMaxDelay,
		MaxTotalWait: cfg.VerifyMaxTotalWait,
	})

	exitCode := 0
	for _, raw := range targets {
		lang := language.NormalizeCode(raw)
		if lang == "" {
			fmt.Printf("%s: SKIP (not a valid language code)\n", raw)
			exitCode = 1
			continue
		}

		keys := []string{kvstore.ContentKey(res.ID, lang)}
		if res.MailboxEnabled() && strings.TrimSpace(*group) != "" {
			keys = append(keys, kvstore.MailboxKey(res.ID, strings.TrimSpace(*group), lang))
		}

		attempts := verifier.Verify(ctx, res.ID, keys)
		visible := true
		for _, key := range keys {
			value, err := store.Get(ctx, key)
			if err != nil || value == nil {
				visible = false
				break
			}
		}

		if visible {
			fmt.Printf("%s: OK (%d keys, %d attempts)\n", lang, len(keys), attempts)
		} else {
			fmt.Printf("%s: MISSING after %d attempts\n", lang, attempts)
			exitCode = 1
		}
	}

	return exitCode
}
