package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "serve":
		return runServe(args[1:])
	case "translate":
		return runTranslate(args[1:])
	case "detect":
		return runDetect(args[1:])
	case "providers":
		return runProviders(args[1:])
	case "test":
		return runTest(args[1:])
	case "stats":
		return runStats(args[1:])
	case "settings":
		return runSettings(args[1:])
	case "health":
		return runHealth(args[1:])
	case "hash-token":
		return runHashToken(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "voxlate CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  voxlate <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  serve       Start Echo API server")
	fmt.Fprintln(os.Stderr, "  translate   Translate text with fallback, or with every provider (--all)")
	fmt.Fprintln(os.Stderr, "  detect      Detect the language of text")
	fmt.Fprintln(os.Stderr, "  providers   List available translation providers")
	fmt.Fprintln(os.Stderr, "  test        Test one provider, or all of them")
	fmt.Fprintln(os.Stderr, "  stats       Show usage counters")
	fmt.Fprintln(os.Stderr, "  settings    Show, update or reset provider settings")
	fmt.Fprintln(os.Stderr, "  health      Verify configuration and store connectivity")
	fmt.Fprintln(os.Stderr, "  hash-token  Print the bcrypt hash for ADMIN_TOKEN_HASH")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"voxlate <command> -h\" for command-specific flags.")
}
