package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"courseware.fit/polyglot/internal/cli"
	"courseware.fit/polyglot/internal/replicate"
)

const (
	outputFormatTable = "table"
	outputFormatJSON  = "json"
)

func runReplicate(args []string) int {
	fs := flag.NewFlagSet("replicate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	resourceID := fs.String("resource", "", "Resource ID to replicate")
	langs := fs.String("langs", "", "Comma-separated target language codes")
	sourceLang := fs.String("source", "", "Source language override (defaults to resource metadata)")
	group := fs.String("group", "", "Preferred mailbox group")
	provider := fs.String("provider", "", "Translation provider name (defaults to TRANSLATION_PROVIDER)")
	model := fs.String("model", "", "Translation model override")
	format := fs.String("format", outputFormatTable, "Output format: table or json")
	timeout := fs.Duration("timeout", 10*time.Minute, "Command timeout")

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
	targets := splitLanguageList(*langs)
	if len(targets) == 0 {
		fmt.Fprintln(os.Stderr, "--langs is required (for example: --langs de,fr,tr)")
		return 2
	}
	outputFormat, err := parseOutputFormat(*format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
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
		logger.Error().Err(err).Msg("replicate failed to open store")
		fmt.Fprintf(os.Stderr, "Store connection failed: %v\n", err)
		return 1
	}
	defer closeStore()

	coordinator, _ := buildCoordinator(store, cfg, logger)

	result, err := coordinator.Replicate(ctx, replicate.BatchRequest{
		ResourceID:      strings.TrimSpace(*resourceID),
		TargetLanguages: targets,
		SourceLanguage:  strings.TrimSpace(*sourceLang),
		GroupKey:        strings.TrimSpace(*group),
		Provider:        strings.TrimSpace(*provider),
		Model:           strings.TrimSpace(*model),
	})
	if err != nil {
		logger.Error().Err(err).Str("resource_id", *resourceID).Msg("replication batch rejected")
		fmt.Fprintf(os.Stderr, "Replication failed: %v\n", err)
		return 1
	}

	if outputFormat == outputFormatJSON {
		encoded, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode result: %v\n", err)
			return 1
		}
		fmt.Println(string(encoded))
	} else {
		printBatchTable(result)
	}

	if result.Status == replicate.StatusFailed {
		return 1
	}
	return 0
}

func printBatchTable(result *replicate.BatchResult) {
	fmt.Printf("Batch %s: %s (%d ok, %d failed, %s)\n",
		result.BatchID, result.Status, result.SuccessCount, result.FailureCount, result.TotalDuration)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LANG\tRESULT\tURL\tNOTE")
	for _, job := range result.Results {
		outcome := "ok"
		note := job.Note
		if !job.Success {
			outcome = "failed"
			note = fmt.Sprintf("[%s] %s", job.ErrorKind, job.Error)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", job.Language, outcome, job.URL, note)
	}
	_ = w.Flush()
}

func splitLanguageList(raw string) []string {
	parts := strings.Split(raw, ",")
	langs := make([]string, 0, len(parts))
	for _, part := range parts {
		lang := strings.TrimSpace(part)
		if lang == "" {
			continue
		}
		langs = append(langs, lang)
	}
	return langs
}

func parseOutputFormat(raw string) (string, error) {
	format := strings.TrimSpace(strings.ToLower(raw))
	switch format {
	case "", outputFormatTable:
		return outputFormatTable, nil
	case outputFormatJSON:
		return outputFormatJSON, nil
	default:
		return "", fmt.Errorf("--format must be table or json")
	}
}
