package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"horse.fit/voxlate/internal/cli"
	"horse.fit/voxlate/internal/language"
	"horse.fit/voxlate/internal/translation"
)

type translateOptions struct {
	Text       string
	SourceLang string
	TargetLang string
	All        bool
	Format     string
	UserID     string
}

func runTranslate(args []string) int {
	fs := flag.NewFlagSet("translate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	from := fs.String("from", language.Auto, "Source language (ISO 639-1 or auto)")
	to := fs.String("to", "", "Target language (ISO 639-1, for example: ar, en)")
	all := fs.Bool("all", false, "Query every available provider instead of the fallback chain")
	user := fs.String("user", "", "User id recorded with the usage event")
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
	text := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if text == "" {
		fmt.Fprintln(os.Stderr, "translate requires text to translate")
		return 2
	}
	if language.NormalizeCode(*to) == "" {
		fmt.Fprintln(os.Stderr, "--to is required and must be a valid language code")
		return 2
	}

	ctx, cancel, rt, err := openRuntime(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer rt.Close()

	if err := translateCommand(ctx, rt.orchestrator, translateOptions{
		Text:       text,
		SourceLang: *from,
		TargetLang: *to,
		All:        *all,
		Format:     format,
		UserID:     *user,
	}, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Translate failed: %v\n", err)
		return 1
	}
	return 0
}

func translateCommand(ctx context.Context, orch *translation.Orchestrator, opts translateOptions, out io.Writer) error {
	req := translation.Request{
		Text:       opts.Text,
		SourceLang: opts.SourceLang,
		TargetLang: opts.TargetLang,
		UserID:     opts.UserID,
	}

	var results []translation.Result
	if opts.All {
		all, err := orch.TranslateAll(ctx, req)
		if err != nil {
			return err
		}
		if len(all) == 0 {
			return translation.ErrAllProvidersFailed
		}
		results = all
	} else {
		result, err := orch.Translate(ctx, req)
		if err != nil {
			return err
		}
		results = []translation.Result{*result}
	}

	if opts.Format == outputFormatJSON {
		if opts.All {
			return writeJSON(out, results)
		}
		return writeJSON(out, results[0])
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tCONFIDENCE\tDETECTED\tTRANSLATION")
	for _, result := range results {
		fmt.Fprintf(tw, "%s\t%.2f\t%s\t%s\n",
			translation.DisplayName(result.API),
			result.Confidence,
			result.DetectedLanguage,
			truncateForTable(result.Translation, 80),
		)
		for _, alternative := range result.Alternatives {
			fmt.Fprintf(tw, "\t\t\t  alt: %s\n", truncateForTable(alternative, 76))
		}
	}
	return tw.Flush()
}

func runDetect(args []string) int {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", time.Minute, "Command timeout")
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
	text := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if text == "" {
		fmt.Fprintln(os.Stderr, "detect requires text")
		return 2
	}

	ctx, cancel, rt, err := openRuntime(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer rt.Close()

	detection, err := rt.orchestrator.DetectLanguage(ctx, text)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Detect failed: %v\n", err)
		return 1
	}

	if format == outputFormatJSON {
		if err := writeJSON(os.Stdout, detection); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}
	fmt.Fprintf(os.Stdout, "%s (%s) confidence=%.2f via %s\n",
		detection.Language, language.Label(detection.Language), detection.Confidence, detection.API)
	return 0
}

func runProviders(args []string) int {
	fs := flag.NewFlagSet("providers", flag.ContinueOnError)
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

	if err := providersCommand(rt.orchestrator, format, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func providersCommand(orch *translation.Orchestrator, format string, out io.Writer) error {
	available := orch.AvailableProviders()
	if format == outputFormatJSON {
		return writeJSON(out, available)
	}

	availableByName := make(map[string]translation.ProviderInfo, len(available))
	for _, info := range available {
		availableByName[info.Name] = info
	}
	prefs := orch.Preferences()

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tNAME\tAVAILABLE\tDETECT\tROLE")
	for _, name := range orch.Registry().ProviderNames() {
		info, ok := availableByName[name]
		role := ""
		if name == prefs.PrimaryAPI {
			role = "primary"
		} else if prefs.EnableFallback && inFallbackChain(name) {
			role = "fallback"
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%t\t%s\n", name, translation.DisplayName(name), ok, info.CanDetect, role)
	}
	return tw.Flush()
}

func runTest(args []string) int {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	timeout := fs.Duration("timeout", 2*time.Minute, "Command timeout")
	text := fs.String("text", translation.DefaultTestText, "English text translated to Arabic")
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
	if fs.NArg() > 1 {
		fmt.Fprintln(os.Stderr, "test accepts at most one provider name")
		return 2
	}

	ctx, cancel, rt, err := openRuntime(*timeout, envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer cancel()
	defer rt.Close()

	failed, err := testCommand(ctx, rt.orchestrator, strings.TrimSpace(fs.Arg(0)), *text, format, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Test failed: %v\n", err)
		return 1
	}
	if failed {
		return 1
	}
	return 0
}

// testCommand tests one provider, or every provider when name is empty. It
// reports whether any tested provider failed.
func testCommand(ctx context.Context, orch *translation.Orchestrator, name, text, format string, out io.Writer) (bool, error) {
	var results map[string]translation.ProviderTestResult
	if name != "" {
		result, err := orch.TestProvider(ctx, name, text)
		if errors.Is(err, translation.ErrUnknownProvider) {
			return true, err
		}
		entry := translation.ProviderTestResult{Result: result}
		if err != nil {
			entry.Error = err.Error()
		}
		results = map[string]translation.ProviderTestResult{name: entry}
	} else {
		results = orch.TestAllProviders(ctx, text)
	}

	failed := false
	for _, entry := range results {
		if entry.Error != "" {
			failed = true
		}
	}

	if format == outputFormatJSON {
		return failed, writeJSON(out, results)
	}

	names := make([]string, 0, len(results))
	for key := range results {
		names = append(names, key)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tSTATUS\tRESULT")
	for _, key := range names {
		entry := results[key]
		if entry.Error != "" {
			fmt.Fprintf(tw, "%s\tFAIL\t%s\n", key, truncateForTable(entry.Error, 80))
			continue
		}
		fmt.Fprintf(tw, "%s\tOK\t%s\n", key, truncateForTable(entry.Result.Translation, 80))
	}
	return failed, tw.Flush()
}

func inFallbackChain(name string) bool {
	for _, candidate := range translation.FallbackChain {
		if candidate == name {
			return true
		}
	}
	return false
}
