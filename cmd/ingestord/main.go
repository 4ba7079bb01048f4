package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/provenance-network/anchor-ingestor/internal/config"
	"github.com/provenance-network/anchor-ingestor/pkg/chainsource"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// startServer is a variable to allow mocking in tests.
var startServer = runServer

// Run is the CLI entrypoint, factored out from main for testability.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		return startServer()
	}

	switch args[1] {
	case "health":
		return runHealthCheck(stdout)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stdout, "Unknown command: %s. Defaulting to server...\n", args[1])
		return startServer()
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage: ingestord <command> [arguments]")
	_, _ = fmt.Fprintln(w, "\nCommands:")
	_, _ = fmt.Fprintln(w, "  server     Run the ingestor (default)")
	_, _ = fmt.Fprintln(w, "  health     Check health of a running ingestor")
}

func runHealthCheck(stdout io.Writer) int {
	addr := os.Getenv("HEALTH_ADDR")
	if addr == "" {
		addr = ":8089"
	}
	client := http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get("http://localhost" + addr + "/health")
	if err != nil {
		_, _ = fmt.Fprintf(stdout, "Health check failed: %v\n", err)
		return 1
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		_, _ = fmt.Fprintf(stdout, "Health check failed: status %d\n", resp.StatusCode)
		return 1
	}
	_, _ = fmt.Fprintln(stdout, "OK")
	return 0
}

// runServer wires every subsystem, runs the active chain source and the
// health endpoint, and blocks until a shutdown signal arrives.
func runServer() int {
	logger := slog.Default()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load failed", "error", err)
		return 1
	}
	logger.Info("ingestord starting", "chain_source", cfg.ChainSource, "contract_account", cfg.ContractAccount)

	services, err := NewServices(ctx, cfg, logger)
	if err != nil {
		logger.Error("service init failed", "error", err)
		return 1
	}

	var src chainsource.Source
	switch cfg.ChainSource {
	case config.ChainSourceStreaming:
		src = chainsource.NewStreamingSource(chainsource.StreamingConfig{
			URL:                  cfg.ShipURL,
			ContractAccount:      cfg.ContractAccount,
			StartBlockNum:        cfg.StartBlock,
			EndBlockNum:          cfg.EndBlock,
			ReconnectDelay:       cfg.ReconnectDelay,
			MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		}, logger)
	case config.ChainSourcePush:
		src = chainsource.NewPushSource(chainsource.PushConfig{
			Addr:      cfg.PushAddr,
			JWTSecret: []byte(cfg.PushJWTKey),
		}, logger)
	}

	if err := services.Chain.Start(ctx, src); err != nil {
		logger.Error("chain source start failed", "error", err)
		return 1
	}

	healthMux := http.NewServeMux()
	healthMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	healthServer := &http.Server{Addr: cfg.HealthAddr, Handler: healthMux}
	go func() {
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	logger.Info("ingestord ready", "health_addr", cfg.HealthAddr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("ingestord shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	exitCode := 0
	if err := services.Chain.Stop(shutdownCtx); err != nil {
		logger.Error("chain source stop failed", "error", err)
		exitCode = 1
	}
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("health server shutdown failed", "error", err)
		exitCode = 1
	}
	if err := services.Close(shutdownCtx); err != nil {
		logger.Error("service shutdown failed", "error", err)
		exitCode = 1
	}

	return exitCode
}
