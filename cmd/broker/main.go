package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/downfa11-org/duraq/pkg/config"
	"github.com/downfa11-org/duraq/pkg/metrics"
	"github.com/downfa11-org/duraq/pkg/queue"
	"github.com/downfa11-org/duraq/pkg/server"
	"github.com/downfa11-org/duraq/util"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	fmt.Printf("🚀 Starting broker on %s\n", cfg.ListenAddr())
	fmt.Printf("💾 Data dir: %s | 📊 Exporter: %v\n", cfg.DataDir, cfg.EnableExporter)

	q, err := queue.Open(cfg.DataDir)
	if err != nil {
		log.Fatalf("❌ Failed to open queue: %v", err)
	}

	if cfg.EnableExporter {
		metrics.StartMetricsServer(cfg.ExporterPort)
	}

	srv := server.NewServer(cfg, q)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		util.Info("received %s, shutting down", sig)
		srv.Stop()
	}()

	if err := srv.Run(); err != nil {
		log.Fatalf("❌ Broker failed: %v", err)
	}

	srv.Stop()
	if err := q.Close(); err != nil {
		util.Error("failed to close queue: %v", err)
	}
}
