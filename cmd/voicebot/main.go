package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Dombearx/VoiceBot/internal/api"
	"github.com/Dombearx/VoiceBot/internal/config"
	"github.com/Dombearx/VoiceBot/internal/discord"
	"github.com/Dombearx/VoiceBot/internal/elevenlabs"
	"github.com/Dombearx/VoiceBot/internal/logging"
	"github.com/Dombearx/VoiceBot/internal/prompt"
	"github.com/Dombearx/VoiceBot/internal/storage"
	"github.com/Dombearx/VoiceBot/internal/voice"
	"github.com/Dombearx/VoiceBot/internal/voice/codec"
	"github.com/Dombearx/VoiceBot/internal/voices"
	"github.com/Dombearx/VoiceBot/pkg/throttle"
)

const opusBitrate = 64000

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("VoiceBot exited with error", zap.Error(err))
	}
	logger.Info("VoiceBot exited cleanly")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	go storage.RunRetentionCleaner(ctx, store, cfg.Retention, logger.Named("retention"))

	if cfg.ElevenLabsBaseURL != elevenlabs.DefaultBaseURL {
		logger.Warn("Custom ElevenLabs base URL does not apply to text to speech", zap.String("base_url", cfg.ElevenLabsBaseURL))
	}
	el := elevenlabs.New(elevenlabs.Config{
		APIKey:  cfg.ElevenLabsAPIKey,
		BaseURL: cfg.ElevenLabsBaseURL,
		ModelID: cfg.ElevenLabsModelID,
		Timeout: cfg.TTSTimeout,
		Limiter: throttle.NewAdaptiveLimiter(rate.Limit(5), rate.Limit(1), rate.Limit(10), rate.Limit(1), 0.5),
	})
	voiceSvc := voices.New(el, store, cfg.TTSTimeout, logger)
	promptSvc := prompt.New(prompt.Config{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	}, store, logger)

	player := voice.New(voice.FFmpeg{Path: cfg.FFmpegPath}, codec.NewOpus(opusBitrate), logger.Named("voice"))
	bot := discord.NewManager(discord.Dial, voiceSvc, player, logger.Named("discord"))
	if cfg.BotEnabled() {
		if _, err := bot.Initialize(cfg.DiscordToken); err != nil {
			logger.Error("Discord bot failed to start", zap.Error(err))
		}
	} else {
		logger.Warn("DISCORD_TOKEN not set, bot routes will answer 503")
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		bot.Shutdown(shutdownCtx)
	}()

	gin.SetMode(gin.ReleaseMode)
	srv := api.New(api.Deps{
		Voices:  voiceSvc,
		Prompts: promptSvc,
		Usage:   store,
		Bot:     bot,
	}, api.Options{
		CORSOrigins:        cfg.CORSOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx, fmt.Sprintf(":%d", cfg.Port))
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		logger.Info("Received signal, shutting down", zap.String("signal", s.String()))
		cancel()
		return <-errCh
	case err := <-errCh:
		return err
	}
}
