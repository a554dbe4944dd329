// Tactix - Discord tactical assistant for football manager games.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tactix/internal/audio"
	"github.com/tactix/internal/bot"
	"github.com/tactix/internal/config"
	"github.com/tactix/internal/match"
	"github.com/tactix/internal/metrics"
	"github.com/tactix/internal/services/ai"
	"github.com/tactix/internal/services/scraper"
	"github.com/tactix/internal/session"
	"github.com/tactix/internal/storage"
	"github.com/tactix/pkg/healthcheck"
	"github.com/tactix/pkg/logger"
)

func main() {
	// Health check flag for Docker
	healthFlag := flag.Bool("health", false, "Run health check")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	if *healthFlag {
		if err := runHealthCheck(cfg.HealthAddr); err != nil {
			os.Exit(1)
		}
		os.Exit(0)
	}

	if err := logger.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	logger.Log.Info("Starting Tactix...")

	if err := cfg.Validate(); err != nil {
		logger.Log.Fatalf("Config invalid: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	backend := openBackend(ctx, cfg)
	cancel()

	var out audio.Output
	if cfg.AudioDir != "" {
		rec, err := audio.NewWAVRecorder(cfg.AudioDir)
		if err != nil {
			logger.Log.Warnf("Audio output disabled: %v", err)
		} else {
			out = rec
		}
	}
	synth := audio.NewSynth(out, audio.DefaultSampleRate)

	sessions := session.NewManager(&session.Deps{
		Backend: backend,
		AI:      ai.NewClient(cfg),
		Pages:   scraper.NewClient(backend),
		Match: match.Options{
			TickInterval: cfg.TickInterval(),
			SettleDelay:  cfg.SettleDelay(),
			FlavorChance: cfg.FlavorChance,
			FeedWindow:   cfg.FeedWindow,
			Cues:         synth,
		},
		Audio:            out,
		LiveURL:          cfg.LiveAPIURL,
		LiveKey:          cfg.LiveAPIKey,
		KeyPrefix:        cfg.KeyPrefix,
		DefaultLanguage:  cfg.DefaultLanguage,
		KnowledgePersist: cfg.KnowledgePersist,
	})

	discordBot, err := bot.New(cfg, sessions)
	if err != nil {
		logger.Log.Fatalf("Bot error: %v", err)
	}

	healthServer := healthcheck.New(cfg.HealthAddr,
		healthcheck.WithCheck(discordBot.Ready),
		healthcheck.WithMetrics(metrics.Handler()),
	)
	go func() {
		if err := healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Errorf("Health server error: %v", err)
		}
	}()

	if err := discordBot.Start(); err != nil {
		logger.Log.Fatalf("Start error: %v", err)
	}

	logger.Log.Info("Tactix running")

	// Wait for interrupt signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Log.Info("Shutting down...")

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := healthServer.Stop(ctx); err != nil {
		logger.Log.Warnf("Health server stop: %v", err)
	}
	if err := discordBot.Stop(); err != nil {
		logger.Log.Warnf("Bot stop: %v", err)
	}
	synth.Wait()
	if c, ok := backend.(interface{ Close() error }); ok {
		_ = c.Close()
	}

	logger.Log.Info("Stopped")
}

// openBackend selects the storage backend. Failures fall back to memory.
func openBackend(ctx context.Context, cfg *config.Config) storage.Backend {
	switch cfg.StorageBackend {
	case config.BackendRedis:
		return storage.NewRedisClient(ctx, cfg.RedisURL)
	case config.BackendFile:
		fs, err := storage.NewFile(cfg.StorageDir())
		if err != nil {
			logger.Log.Warnf("File storage unavailable, using memory only: %v", err)
			return storage.NewMemory()
		}
		return fs
	default:
		return storage.NewMemory()
	}
}

// runHealthCheck performs a quick health check
func runHealthCheck(addr string) error {
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://localhost%s/health", addr))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: %d", resp.StatusCode)
	}
	return nil
}
