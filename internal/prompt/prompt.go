// Package prompt asks an OpenAI chat model to polish, translate and
// illustrate voice descriptions.
package prompt

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/Dombearx/VoiceBot/internal/storage"
)

const (
	maxTokens   = 1000
	temperature = 0.7
)

var (
	ErrEmptyInput  = errors.New("prompt cannot be empty")
	ErrExternalAPI = errors.New("external API failure")
)

var (
	//go:embed instructions/improve-prompt.md
	improveInstruction string
	//go:embed instructions/generate-sample-text.md
	sampleTextInstruction string
	//go:embed instructions/translate-voice-description.md
	translateInstruction string
)

// Recorder persists usage and failures.
type Recorder interface {
	RecordMetric(ctx context.Context, m storage.Metric) error
	RecordError(ctx context.Context, e storage.ErrorLog) error
}

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
}

type Service struct {
	client *openai.Client
	model  string
	rec    Recorder
	log    *zap.Logger
}

func New(cfg Config, rec Recorder, logger *zap.Logger) *Service {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client: openai.NewClientWithConfig(oc),
		model:  model,
		rec:    rec,
		log:    logger.Named("prompt"),
	}
}

// Improve rewrites a voice description into a richer generator prompt.
func (s *Service) Improve(ctx context.Context, prompt string) (string, error) {
	return s.complete(ctx, "improve", improveInstruction, prompt)
}

// GenerateSampleText writes preview text that suits the described voice.
func (s *Service) GenerateSampleText(ctx context.Context, voiceDescription string) (string, error) {
	return s.complete(ctx, "generate sample text", sampleTextInstruction, voiceDescription)
}

// Translate renders a voice description in English.
func (s *Service) Translate(ctx context.Context, voiceDescription string) (string, error) {
	return s.complete(ctx, "translate", translateInstruction, voiceDescription)
}

func (s *Service) complete(ctx context.Context, op, instruction, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ErrEmptyInput
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: instruction},
			{Role: openai.ChatMessageRoleUser, Content: input},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err == nil && len(resp.Choices) == 0 {
		err = errors.New("no choices in response")
	}
	if err != nil {
		s.fail(ctx, op, err)
		return "", fmt.Errorf("%s: %w", op, ErrExternalAPI)
	}

	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if err := s.rec.RecordMetric(ctx, storage.Metric{
		TokenCount: resp.Usage.TotalTokens,
		TextLength: utf8.RuneCountInString(input),
		APIType:    storage.APIPromptImprovement,
	}); err != nil {
		s.log.Warn("Failed to record metric", zap.String("op", op), zap.Error(err))
	}
	return out, nil
}

func (s *Service) fail(ctx context.Context, op string, cause error) {
	msg := "OpenAI API call failed: " + cause.Error()
	s.log.Error("OpenAI call failed", zap.String("op", op), zap.Error(cause))
	if err := s.rec.RecordError(context.WithoutCancel(ctx), storage.ErrorLog{
		ErrorMessage: msg,
		APIType:      storage.APIPromptImprovement,
	}); err != nil {
		s.log.Warn("Failed to record error log", zap.String("op", op), zap.Error(err))
	}
}
