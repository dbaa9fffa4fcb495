package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"horse.fit/voxlate/internal/cli"
)

const (
	outputFormatTable = "table"
	outputFormatJSON  = "json"
)

func parseOutputFormat(raw, defaultFormat string) (string, error) {
	format := strings.TrimSpace(strings.ToLower(raw))
	if format == "" {
		format = strings.TrimSpace(strings.ToLower(defaultFormat))
	}
	switch format {
	case outputFormatTable, outputFormatJSON:
		return format, nil
	default:
		return "", fmt.Errorf("--format must be table or json")
	}
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(value)
}

func truncateForTable(value string, maxLen int) string {
	trimmed := strings.Join(strings.Fields(value), " ")
	if maxLen <= 0 {
		return trimmed
	}
	if utf8.RuneCountInString(trimmed) <= maxLen {
		return trimmed
	}

	runes := []rune(trimmed)
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// openRuntime loads configuration and wires a runtime bounded by timeout.
func openRuntime(timeout time.Duration, envLoader *cli.EnvLoader) (context.Context, context.CancelFunc, *runtime, error) {
	cfg, logger, err := loadConfig(envLoader)
	if err != nil {
		return nil, nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	rt, err := buildRuntime(ctx, cfg, logger, runtimeOptions{})
	if err != nil {
		cancel()
		return nil, nil, nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return ctx, cancel, rt, nil
}
