package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/monpham/mcp-homecast/internal/adapters/gocast"
	"github.com/monpham/mcp-homecast/internal/buildinfo"
	"github.com/monpham/mcp-homecast/internal/cast"
	"github.com/monpham/mcp-homecast/internal/config"
	"github.com/monpham/mcp-homecast/internal/dataapi"
	"github.com/monpham/mcp-homecast/internal/diagnostics"
	"github.com/monpham/mcp-homecast/internal/lifecycle"
	"github.com/monpham/mcp-homecast/internal/mcpserver"
	"github.com/monpham/mcp-homecast/internal/registry"
)

const serverName = "mcp-homecast"

type selfTestOutput struct {
	Server struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"server"`
	CastAdapters struct {
		ScannerWired bool `json:"scanner_wired"`
		DialerWired  bool `json:"dialer_wired"`
	} `json:"cast_adapters"`
	Environment diagnostics.EnvironmentReport `json:"environment"`
}

func main() {
	selfTest := flag.Bool("self-test", false, "run wiring and environment diagnostics then exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(buildinfo.Version)
		return
	}

	cfg := config.Load()
	bundle := gocast.NewBundle()

	if *selfTest {
		out := selfTestOutput{
			Environment: diagnostics.DetectEnvironment(cfg.AdapterURL),
		}
		out.Server.Name = serverName
		out.Server.Version = buildinfo.Version
		out.CastAdapters.ScannerWired = bundle.Scanner != nil
		out.CastAdapters.DialerWired = bundle.Dialer != nil

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(out); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	runCtx, stopSignals := signal.NotifyContext(context.Background(), lifecycle.TerminationSignals()...)
	defer stopSignals()

	logLevel := parseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	logger.Info(
		"mcp_server_start",
		slog.String("server", serverName),
		slog.String("version", buildinfo.Version),
		slog.String("log_level", logLevel.String()),
		slog.String("adapter_url", cfg.AdapterURL),
	)

	manager := cast.NewManager(bundle.Scanner, bundle.Dialer, registry.New(), cast.Options{
		CommandTimeout:   cfg.CommandTimeout,
		DiscoveryTimeout: cfg.DiscoveryTimeout,
		Logger:           logger,
	})
	data := dataapi.NewClient(dataapi.Options{
		AdapterURL: cfg.AdapterURL,
		VerifySSL:  cfg.VerifySSL,
		Logger:     logger,
	})
	srv := mcpserver.New(os.Stdin, os.Stdout, mcpserver.Config{
		ServerName:    serverName,
		ServerVersion: buildinfo.Version,
		Logger:        logger,
		Devices:       manager,
		Data:          data,
	})

	runErrCh := make(chan error, 1)
	go func() {
		runErrCh <- srv.Run(runCtx)
	}()

	var runErr error
	select {
	case runErr = <-runErrCh:
	case <-runCtx.Done():
		runErr = runCtx.Err()
	}
	if runErr != nil {
		logger.Warn("mcp_server_stopping", slog.String("reason", runErr.Error()))
	} else {
		logger.Info("mcp_server_stopping", slog.String("reason", "clean_eof"))
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		fmt.Fprintf(os.Stderr, "invalid MCP_HOMECAST_LOG_LEVEL=%q; defaulting to info\n", raw)
		return slog.LevelInfo
	}
}
