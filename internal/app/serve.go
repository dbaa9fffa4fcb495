package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"horse.fit/voxlate/internal/cli"
	"horse.fit/voxlate/internal/httpapi"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "", "Host interface to bind (default 0.0.0.0, or 127.0.0.1 while admin routes are open)")
	port := fs.Int("port", 8095, "HTTP port")
	readTimeout := fs.Duration("read-timeout", 10*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 60*time.Second, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *port <= 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
		return 2
	}

	cfg, logger, err := loadConfig(envLoader)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	rt, err := buildRuntime(ctx, cfg, logger, runtimeOptions{})
	if err != nil {
		logger.Error().Err(err).Msg("serve failed to initialize")
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		return 1
	}
	defer rt.Close()
	rt.listen(ctx)

	adminOpen := cfg.AdminTokenHash == "" && cfg.IsLocal()
	if cfg.AdminTokenHash == "" {
		logger.Warn().Bool("local", cfg.IsLocal()).Msg("ADMIN_TOKEN_HASH is not set; admin routes are open only in local environment")
	}
	*host = bindHost(*host, adminOpen)
	if adminOpen && !isLoopbackHost(*host) {
		logger.Warn().Str("host", *host).Msg("admin routes are open without a token on a non-loopback interface")
	}

	srv := httpapi.NewServer(httpapi.Deps{
		Translator: rt.orchestrator,
		Settings:   rt.settings,
		Usage:      rt.usage,
		History:    rt.history,
		Reader:     rt.reader,
		Bus:        rt.bus,
		Latency:    rt.latency,
	}, logger, httpapi.Options{
		Host:                      *host,
		Port:                      *port,
		ReadTimeout:               *readTimeout,
		WriteTimeout:              *writeTimeout,
		ShutdownTimeout:           *shutdownTimeout,
		CORSOrigins:               cfg.CORSAllowedOriginsList(),
		AdminTokenHash:            cfg.AdminTokenHash,
		AllowUnauthenticatedAdmin: adminOpen,
	})

	if err := srv.Start(ctx); err != nil {
		logger.Error().Err(err).Str("host", *host).Int("port", *port).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}

	return 0
}

// bindHost picks the listen host. Without an explicit --host, a server whose
// admin routes need no token only listens on loopback.
func bindHost(flagHost string, adminOpen bool) string {
	if host := strings.TrimSpace(flagHost); host != "" {
		return host
	}
	if adminOpen {
		return "127.0.0.1"
	}
	return "0.0.0.0"
}

func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
