package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/viant/afs"

	"github.com/mdbridge/mdbridge"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	mode := flag.String("mode", "rpc", "operation mode: rpc | test")
	configPath := flag.String("config", "", "path to config.yaml (optional)")
	basePort := flag.Int("base-port", 0, "first auto-assigned worker port (optional)")
	traceFile := flag.String("trace-file", "", "write OpenTelemetry spans to this file (optional)")
	flag.Parse()
	if *showVersion {
		fmt.Printf("mdbridge version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	// stdout is the protocol channel; everything else goes to stderr
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := mdbridge.DefaultConfig()
	if *configPath != "" {
		loaded, err := mdbridge.LoadConfig(ctx, afs.New(), *configPath)
		if err != nil {
			logger.Error("mdbridge failed to initialize", "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *basePort != 0 {
		cfg.Registry.BasePort = *basePort
	}

	if *mode == "test" {
		data, _ := json.Marshal(map[string]string{"status": "bridge_ready", "version": cfg.Version})
		fmt.Println(string(data))
		return
	}

	options := []mdbridge.Option{
		mdbridge.WithConfig(cfg),
		mdbridge.WithLogger(logger),
		mdbridge.WithRegisterer(prometheus.DefaultRegisterer),
	}
	if cfg.Tracing.Enabled || *traceFile != "" {
		out := cfg.Tracing.OutputFile
		if *traceFile != "" {
			out = *traceFile
		}
		options = append(options, mdbridge.WithTracing("mdbridge", cfg.Version, out))
	}

	runtime := mdbridge.New(options...).Runtime()

	// a signal shuts the registry down directly, independent of the
	// transport loop which may be blocked reading stdin
	go func() {
		<-ctx.Done()
		_ = runtime.Registry().ShutdownAll(context.Background())
	}()

	logger.Info("mdbridge starting", "base_port", cfg.Registry.BasePort)
	if err := runtime.Run(ctx, os.Stdin, os.Stdout); err != nil {
		logger.Error("mdbridge failed", "error", err)
		os.Exit(1)
	}
	runtime.Registry().Wait()
	logger.Info("mdbridge stopped")
}
