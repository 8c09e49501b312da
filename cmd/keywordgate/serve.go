package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"keywordgate/pkg/config"
	"keywordgate/pkg/control"
	"keywordgate/pkg/engine"
	"keywordgate/pkg/ingest"
	"keywordgate/pkg/matcher"
	"keywordgate/pkg/output"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway: TCP/UDP ingest, keyword filtering, outputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	slog.Info("initializing keywordgate")

	buffer, err := engine.NewRingBuffer(cfg.Pipeline.RingSize)
	if err != nil {
		return fmt.Errorf("create buffer: %w", err)
	}

	// Startup filter from config; a manifest replaces the whole chain.
	filter, err := engine.NewKeywordFilterProcessor(engine.KeywordFilterConfig{
		Name:          "config_keywords",
		Keywords:      cfg.Filter.Keywords,
		CaseSensitive: cfg.Filter.CaseSensitive,
		Mode:          engine.FilterMode(cfg.Filter.Mode),
		MaxStates:     cfg.Filter.MaxStates,
	})
	if err != nil {
		return err
	}
	chain := engine.NewProcessorChain(filter)

	pipeline := engine.NewPipeline(buffer, chain, output.NewConsoleOutput(),
		engine.WithWorkers(cfg.Pipeline.Workers),
		engine.WithBatchSize(cfg.Pipeline.BatchSize),
		engine.WithFailOpenRatio(cfg.Pipeline.FailOpenRatio),
	)

	tcpIngestor := ingest.NewTCPIngestor(fmt.Sprintf(":%d", cfg.Server.TCPPort), buffer)
	udpIngestor := ingest.NewUDPIngestor(fmt.Sprintf(":%d", cfg.Server.UDPPort), buffer)

	// In allow mode datagrams that cannot pass are rejected before they are
	// ever copied out of the read buffer. A manifest replaces the chain the
	// prefilter was derived from, so applying one turns it off.
	if cfg.Filter.Mode == config.ModeAllow && len(cfg.Filter.Keywords) > 0 {
		prefilter := matcher.NewWithOptions(matcher.Options{
			CaseSensitive:     cfg.Filter.CaseSensitive,
			InitialBufferSize: cfg.Filter.InitialBufferSize,
			MaxBufferSize:     cfg.Filter.MaxBufferSize,
			MaxStates:         cfg.Filter.MaxStates,
		})
		if err := prefilter.UpdateKeywords(cfg.Filter.Keywords); err != nil {
			return err
		}
		udpIngestor.WithPrefilter(prefilter)
	}

	pipeline.Start(ctx)

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		control.NewWatcher(rdb, pipeline, cfg.Redis.ConfigKey, cfg.Redis.Channel).
			WithMaxStates(cfg.Filter.MaxStates).
			OnApply(udpIngestor.DisablePrefilter).
			Start(ctx)
	}

	if cfg.ManifestFile != "" {
		builder := &control.Builder{MaxStates: cfg.Filter.MaxStates}
		if rdb != nil {
			builder.Redis = rdb
		}
		fw := control.NewFileWatcher(cfg.ManifestFile, pipeline, builder).
			OnApply(udpIngestor.DisablePrefilter)
		go func() {
			if err := fw.Run(ctx); err != nil {
				slog.Error("manifest file watcher stopped", "error", err)
			}
		}()
	}

	go func() {
		if err := tcpIngestor.Start(); err != nil {
			slog.Error("TCP ingestor died", "error", err)
			os.Exit(1)
		}
	}()
	go func() {
		if err := udpIngestor.Start(); err != nil {
			slog.Error("UDP ingestor died", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("keywordgate running", "tcp_port", cfg.Server.TCPPort, "udp_port", cfg.Server.UDPPort)
	<-ctx.Done()
	slog.Info("shutting down")
	time.Sleep(time.Second) // Give workers time to flush
	slog.Info("bye", "dropped", buffer.DroppedCount())
	return nil
}
