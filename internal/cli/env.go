package cli

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// OverrideEnvVars name variables pointing at an env file that wins over --env.
var OverrideEnvVars = []string{"VOXLATE_ENV_FILE", "HORSE_ENV_FILE"}

// EnvLoader loads one .env file chosen from the override variables, the --env
// flag and the default path.
type EnvLoader struct {
	value       *string
	defaultPath string
}

// AddEnvFlag registers an --env flag and returns an EnvLoader.
func AddEnvFlag(fs *flag.FlagSet, defaultPath, description string) *EnvLoader {
	if fs == nil {
		fs = flag.CommandLine
	}
	if defaultPath == "" {
		defaultPath = ".env"
	}
	if description == "" {
		description = "Path to the .env file"
	}

	return &EnvLoader{
		value:       fs.String("env", defaultPath, description),
		defaultPath: defaultPath,
	}
}

// Load overlays the first loadable candidate onto the process environment and
// returns its path. A missing default file is not an error; an explicit --env
// path that cannot be loaded is.
func (l *EnvLoader) Load() (string, error) {
	if l == nil {
		return "", fmt.Errorf("env loader is nil")
	}
	log.SetOutput(os.Stderr)

	for _, envVar := range OverrideEnvVars {
		custom := strings.TrimSpace(os.Getenv(envVar))
		if custom == "" {
			continue
		}
		if err := godotenv.Overload(custom); err == nil {
			log.Printf("Loaded environment from %s: %s", envVar, custom)
			return custom, nil
		}
		log.Printf("Warning: failed to load %s=%s", envVar, custom)
	}

	requested := l.requested()
	for _, candidate := range l.candidates(requested) {
		if err := godotenv.Overload(candidate); err == nil {
			log.Printf("Loaded environment from: %s", candidate)
			return candidate, nil
		}
	}

	if requested != l.defaultPath {
		return "", fmt.Errorf("failed to load env file from %s", requested)
	}
	return "", nil
}

func (l *EnvLoader) requested() string {
	if l.value != nil {
		if trimmed := strings.TrimSpace(*l.value); trimmed != "" {
			return trimmed
		}
	}
	return l.defaultPath
}

// candidates lists requested, its basename and the default path, without duplicates.
func (l *EnvLoader) candidates(requested string) []string {
	out := []string{requested}
	if base := filepath.Base(requested); base != "" && base != "." && base != requested {
		out = append(out, base)
	}
	if l.defaultPath != requested {
		out = append(out, l.defaultPath)
	}
	return out
}
