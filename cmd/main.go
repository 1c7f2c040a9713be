package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"rtpkit/internal/inspect"
)

func main() {
	configPath := flag.String("config", filepath.Join("configs", "default.yaml"), "config file (.yaml, .yml or .toml)")
	flag.Parse()

	config, err := inspect.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	inspect.InitLogger(config)

	input, err := inspect.OpenInput(config.Inspect.Input)
	if err != nil {
		slog.Error("Failed to open input", "err", err)
		os.Exit(1)
	}
	defer input.Close()

	inspector := inspect.NewInspector(config, input)
	if err := inspector.Start(); err != nil {
		slog.Error("Failed to start inspector", "err", err)
		os.Exit(1)
	}

	// 시그널 수신을 위한 채널 생성
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down inspector", "signal", sig)
	case <-inspector.Done():
	}

	inspector.Stop()
	slog.Info("Inspector shutdown complete")
}
