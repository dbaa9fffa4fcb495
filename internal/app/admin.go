package app

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"horse.fit/voxlate/internal/auth"
	"horse.fit/voxlate/internal/cli"
	"horse.fit/voxlate/internal/config"
	"horse.fit/voxlate/internal/db"
	"horse.fit/voxlate/internal/settings"
	"horse.fit/voxlate/internal/usage"
)

func runStats(args []string) int {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	formatRaw := fs.String("format", outputFormatTable, "Output format: table or json")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	format, err := parseOutputFormat(*formatRaw, outputFormatTable)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	_, cancel, rt, err := openRuntime(30*time.Second, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer rt.Close()

	if err := statsCommand(rt.usage.Stats(), rt.usage.EventTypes(), format, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func statsCommand(stats usage.Stats, eventTypes []string, format string, out io.Writer) error {
	if format == outputFormatJSON {
		return writeJSON(out, stats)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EVENT\tCOUNT")
	for _, eventType := range eventTypes {
		fmt.Fprintf(tw, "%s\t%d\n", eventType, stats.Counters[eventType])
	}
	fmt.Fprintf(tw, "total\t%d\n", stats.Total)
	return tw.Flush()
}

func runSettings(args []string) int {
	action := "show"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		action = strings.ToLower(strings.TrimSpace(args[0]))
		args = args[1:]
	}
	switch action {
	case "show", "set", "reset":
	default:
		fmt.Fprintf(os.Stderr, "Unknown settings action: %s\n\n", action)
		printSettingsUsage()
		return 2
	}

	fs := flag.NewFlagSet("settings "+action, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	reveal := fs.Bool("reveal", false, "Print credentials without redaction")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	var patchRaw []byte
	if action == "set" {
		raw, err := readPatchArg(fs.Arg(0), os.Stdin)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		patchRaw = raw
	}

	ctx, cancel, rt, err := openRuntime(30*time.Second, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer rt.Close()

	result, err := settingsCommand(ctx, rt.settings, action, patchRaw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Settings %s failed: %v\n", action, err)
		if errors.Is(err, settings.ErrInvalidPatch) {
			return 2
		}
		return 1
	}
	if !*reveal {
		result = result.Redacted()
	}
	if err := writeJSON(os.Stdout, result); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func settingsCommand(ctx context.Context, store *settings.Store, action string, patchRaw []byte) (settings.Settings, error) {
	switch action {
	case "set":
		patch, err := settings.ValidatePatch(patchRaw)
		if err != nil {
			return settings.Settings{}, err
		}
		return store.Update(ctx, patch)
	case "reset":
		return store.Reset(ctx)
	default:
		return store.Current(), nil
	}
}

// readPatchArg returns the JSON patch argument, reading stdin for "-" or an
// empty argument.
func readPatchArg(arg string, stdin io.Reader) ([]byte, error) {
	trimmed := strings.TrimSpace(arg)
	if trimmed != "" && trimmed != "-" {
		return []byte(trimmed), nil
	}
	raw, err := io.ReadAll(bufio.NewReader(stdin))
	if err != nil {
		return nil, fmt.Errorf("read settings patch from stdin: %w", err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return nil, fmt.Errorf("settings set requires a JSON patch argument or stdin")
	}
	return raw, nil
}

func printSettingsUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  voxlate settings [show] [--reveal]")
	fmt.Fprintln(os.Stderr, "  voxlate settings set '<json patch>'")
	fmt.Fprintln(os.Stderr, "  voxlate settings reset")
}

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 10*time.Second, "Health check timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, logger, err := loadConfig(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if cfg.StoreBackendName() == config.StoreBackendPostgres {
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			logger.Error().Err(err).Msg("health check failed to connect")
			fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
			return 1
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			logger.Error().Err(err).Msg("health check ping failed")
			fmt.Fprintf(os.Stderr, "Database ping failed: %v\n", err)
			return 1
		}
	}

	logger.Info().Str("store", cfg.StoreBackendName()).Msg("health check passed")
	fmt.Fprintf(os.Stdout, "ok (store=%s)\n", cfg.StoreBackendName())
	return 0
}

func runHashToken(args []string) int {
	fs := flag.NewFlagSet("hash-token", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	cost := fs.Int("cost", auth.DefaultBcryptCost, "bcrypt cost")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "hash-token requires exactly one token argument")
		return 2
	}

	hash, err := auth.HashTokenWithCost(fs.Arg(0), *cost)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	fmt.Fprintln(os.Stdout, hash)
	return 0
}
