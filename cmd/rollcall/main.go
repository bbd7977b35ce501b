package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rollcall.local/rollcall/internal/classify"
	"rollcall.local/rollcall/internal/config"
	"rollcall.local/rollcall/internal/model"
	"rollcall.local/rollcall/internal/schedule"
	"rollcall.local/rollcall/internal/standup"
	"rollcall.local/rollcall/internal/store"
	"rollcall.local/rollcall/internal/tracker"
	"rollcall.local/rollcall/internal/transport/discord"
)

const defaultConfigFile = "rollcall.yaml"

func main() {
	logger := log.New(os.Stdout, "rollcall ", log.Ldate|log.Ltime|log.Lmicroseconds|log.LUTC)

	cfg, err := config.Load(configPath())
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	archive, err := store.NewGormStore(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Fatalf("failed to initialize run archive: %v", err)
	}
	defer func() {
		if err := archive.Close(); err != nil {
			logger.Printf("archive close error: %v", err)
		}
	}()

	modelRegistry := model.NewRegistry()
	if cfg.AnthropicAPIKey != "" {
		modelRegistry.Register("anthropic", model.NewAnthropicProvider(cfg.AnthropicAPIKey))
	}
	if cfg.OpenAIAPIKey != "" {
		modelRegistry.Register("openai", model.NewOpenAIProvider(cfg.OpenAIAPIKey))
	}

	classifier := classify.NewLLMClassifier(modelRegistry, cfg.ClassifierProvider, cfg.ClassifierModel, logger)
	trackerClient := tracker.NewClient(cfg.TrackerBaseURL, cfg.TrackerToken, logger)

	engine := standup.NewEngine(standup.Deps{
		Tracker:    trackerClient,
		Classifier: classifier,
		Logger:     logger,
	}, archive)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adapter := discord.NewAdapter(cfg.DiscordToken, engine.HandleInbound, logger)
	if err := adapter.Start(ctx); err != nil {
		logger.Fatalf("failed to connect to discord: %v", err)
	}
	defer func() {
		if err := adapter.Stop(); err != nil {
			logger.Printf("discord close error: %v", err)
		}
	}()
	engine.SetTransport(adapter)

	runConfig := standup.Config{
		ThreadID:        cfg.ChannelID,
		ExchangeCap:     cfg.ExchangeCap,
		PhaseAItemCap:   cfg.PhaseAItemCap,
		InitialWindow:   cfg.ReplyWindow,
		FinalWindow:     cfg.FinalWindow,
		MinSummaryWords: cfg.MinSummaryWords,
	}
	startRun := func(ctx context.Context, scheduledFor time.Time) {
		run, err := engine.StartRun(ctx, runConfig, cfg.Participants)
		switch {
		case errors.Is(err, standup.ErrRunActive):
			logger.Printf("standup already in flight, skipping scheduled_for=%s", scheduledFor.Format(time.RFC3339))
		case err != nil:
			logger.Printf("failed to start standup: %v", err)
		default:
			logger.Printf("standup started run_id=%s", run.ID())
		}
	}

	scheduler, err := schedule.New(cfg.StandupTime, cfg.StandupDays, cfg.Timezone, startRun, logger)
	if err != nil {
		logger.Fatalf("invalid standup schedule: %v", err)
	}
	if err := scheduler.Start(ctx); err != nil {
		logger.Fatalf("failed to start scheduler: %v", err)
	}
	defer scheduler.Stop()

	if runOnBoot() {
		startRun(ctx, time.Now().UTC().Truncate(time.Minute))
	}

	logger.Printf("rollcall up channel_id=%s standup_time=%s", cfg.ChannelID, cfg.StandupTime)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Printf("shutting down")
}

func configPath() string {
	if path := strings.TrimSpace(os.Getenv("ROLLCALL_CONFIG")); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	}
	return ""
}

func runOnBoot() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("ROLLCALL_RUN_ON_BOOT"))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
