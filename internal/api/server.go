// Package api serves the VoiceBot REST interface.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"github.com/Dombearx/VoiceBot/internal/discord"
	"github.com/Dombearx/VoiceBot/internal/elevenlabs"
	"github.com/Dombearx/VoiceBot/internal/storage"
	"github.com/Dombearx/VoiceBot/internal/voices"
)

const serviceName = "voicebot-api"

type VoiceService interface {
	ListVoices(ctx context.Context) ([]elevenlabs.Voice, error)
	DesignVoice(ctx context.Context, req elevenlabs.DesignRequest) (elevenlabs.DesignResult, error)
	CreateVoice(ctx context.Context, req elevenlabs.CreateRequest) (elevenlabs.Voice, error)
	DeleteVoice(ctx context.Context, voiceID string) error
	Speak(ctx context.Context, req voices.SpeechRequest) ([]byte, error)
}

type PromptService interface {
	Improve(ctx context.Context, prompt string) (string, error)
	GenerateSampleText(ctx context.Context, voiceDescription string) (string, error)
	Translate(ctx context.Context, voiceDescription string) (string, error)
}

type UsageStore interface {
	ListMetrics(ctx context.Context, q storage.Query) (storage.Page[storage.Metric], error)
	ListErrors(ctx context.Context, q storage.Query) (storage.Page[storage.ErrorLog], error)
	Ping(ctx context.Context) error
}

// Bot is the voice-session manager as seen by the handlers.
type Bot interface {
	Status() (discord.Status, error)
	ListChannels() ([]discord.VoiceChannel, error)
	Connect(channelID string) (discord.Status, error)
	Disconnect() (discord.Status, error)
	UpdateConfig(upd discord.ConfigUpdate) (discord.BotConfig, error)
	PlayAudio(ctx context.Context, voiceID, text string) error
}

type Deps struct {
	Voices  VoiceService
	Prompts PromptService
	Usage   UsageStore
	Bot     Bot
}

type Options struct {
	CORSOrigins        []string
	RateLimitPerMinute int
}

type Server struct {
	deps    Deps
	log     *zap.Logger
	handler http.Handler
}

// New builds the router. Rate limiting is per client IP.
func New(deps Deps, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{deps: deps, log: logger.Named("api")}

	r := gin.New()
	r.Use(requestLogger(s.log), recovery(s.log))
	s.routes(r)

	var h http.Handler = r
	if opts.RateLimitPerMinute > 0 {
		h = httprate.Limit(opts.RateLimitPerMinute, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
				writeDetail(w, http.StatusTooManyRequests, "Too many requests")
			}),
		)(h)
	}

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.handler = cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	})(h)
	return s
}

func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes(r *gin.Engine) {
	r.GET("/", s.root)
	r.GET("/health", s.health)

	v := r.Group("/voices")
	v.GET("/", s.listVoices)
	v.POST("/design", s.designVoice)
	v.POST("/", s.createVoice)
	v.DELETE("/:id", s.deleteVoice)

	r.POST("/tts", s.textToSpeech)

	p := r.Group("/prompts")
	p.POST("/improve", s.improvePrompt)
	p.POST("/generate-sample-text", s.generateSampleText)
	p.POST("/translate", s.translate)

	r.GET("/generation-metrics", s.listMetrics)
	r.GET("/error-logs", s.listErrors)

	b := r.Group("/discord-bot")
	b.GET("/status", s.botStatus)
	b.GET("/channels", s.botChannels)
	b.POST("/connect", s.botConnect)
	b.POST("/disconnect", s.botDisconnect)
	b.PATCH("/config", s.botConfig)
	b.POST("/play", s.botPlay)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "VoiceBot API",
		"version":     "1.0.0",
		"description": "API for voice management and Discord bot operations",
	})
}

func (s *Server) health(c *gin.Context) {
	if s.deps.Usage != nil {
		if err := s.deps.Usage.Ping(c.Request.Context()); err != nil {
			s.log.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "service": serviceName})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": serviceName})
}
