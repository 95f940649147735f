// Package voices manages the voice library and speech synthesis, recording
// usage and failures of every provider call.
package voices

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Dombearx/VoiceBot/internal/elevenlabs"
	"github.com/Dombearx/VoiceBot/internal/storage"
)

// MaxSpeechTimeout bounds a caller supplied synthesis timeout.
const MaxSpeechTimeout = 30 * time.Second

// ErrInvalidInput wraps every request validation failure.
var ErrInvalidInput = errors.New("invalid input")

// Provider is the voice API the service fronts.
type Provider interface {
	ListVoices(ctx context.Context) ([]elevenlabs.Voice, error)
	DesignVoice(ctx context.Context, req elevenlabs.DesignRequest) (elevenlabs.DesignResult, error)
	CreateVoice(ctx context.Context, req elevenlabs.CreateRequest) (elevenlabs.Voice, error)
	DeleteVoice(ctx context.Context, voiceID string) error
	Synthesize(ctx context.Context, voiceID, text string, timeout time.Duration) ([]byte, error)
}

// Recorder persists usage and failures.
type Recorder interface {
	RecordMetric(ctx context.Context, m storage.Metric) error
	RecordError(ctx context.Context, e storage.ErrorLog) error
}

// SpeechRequest asks for one synthesis. A zero Timeout uses the service
// default.
type SpeechRequest struct {
	VoiceID string        `json:"voiceId" validate:"required"`
	Text    string        `json:"text" validate:"required,max=5000"`
	Timeout time.Duration `json:"-"`
}

type Service struct {
	provider   Provider
	rec        Recorder
	validate   *validator.Validate
	ttsTimeout time.Duration
	log        *zap.Logger
}

func New(p Provider, rec Recorder, ttsTimeout time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		provider:   p,
		rec:        rec,
		validate:   newValidator(),
		ttsTimeout: ttsTimeout,
		log:        logger.Named("voices"),
	}
}

func (s *Service) ListVoices(ctx context.Context) ([]elevenlabs.Voice, error) {
	voices, err := s.provider.ListVoices(ctx)
	if err != nil {
		s.recordError(ctx, storage.APIVoiceGeneration, nil, err)
		return nil, err
	}
	return voices, nil
}

// DesignVoice generates previews for a description.
func (s *Service) DesignVoice(ctx context.Context, req elevenlabs.DesignRequest) (elevenlabs.DesignResult, error) {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if err := s.check(req); err != nil {
		return elevenlabs.DesignResult{}, err
	}

	res, err := s.provider.DesignVoice(ctx, req)
	if err != nil {
		s.recordError(ctx, storage.APIVoiceGeneration, nil, err)
		return elevenlabs.DesignResult{}, err
	}

	length := utf8.RuneCountInString(req.Prompt)
	if req.SampleText != nil {
		length += utf8.RuneCountInString(*req.SampleText)
	}
	s.recordMetric(ctx, storage.Metric{TextLength: length, APIType: storage.APIVoiceGeneration})
	return res, nil
}

// CreateVoice saves a generated preview into the library.
func (s *Service) CreateVoice(ctx context.Context, req elevenlabs.CreateRequest) (elevenlabs.Voice, error) {
	req.VoiceName = strings.TrimSpace(req.VoiceName)
	if err := s.check(req); err != nil {
		return elevenlabs.Voice{}, err
	}

	v, err := s.provider.CreateVoice(ctx, req)
	if err != nil {
		s.recordError(ctx, storage.APIVoiceGeneration, nil, err)
		return elevenlabs.Voice{}, err
	}
	s.log.Info("Voice created", zap.String("voice_id", v.ID), zap.String("name", v.Name))
	return v, nil
}

func (s *Service) DeleteVoice(ctx context.Context, voiceID string) error {
	if strings.TrimSpace(voiceID) == "" {
		return fmt.Errorf("%w: voice id is required", ErrInvalidInput)
	}
	if err := s.provider.DeleteVoice(ctx, voiceID); err != nil {
		s.recordError(ctx, storage.APIVoiceGeneration, &voiceID, err)
		return err
	}
	s.log.Info("Voice deleted", zap.String("voice_id", voiceID))
	return nil
}

// Synthesize speaks text with the default timeout. It is the bot's
// text-to-speech collaborator.
func (s *Service) Synthesize(ctx context.Context, voiceID, text string) ([]byte, error) {
	return s.Speak(ctx, SpeechRequest{VoiceID: voiceID, Text: text})
}

// Speak returns MP3 audio for req and records a tts metric.
func (s *Service) Speak(ctx context.Context, req SpeechRequest) ([]byte, error) {
	if err := s.check(req); err != nil {
		return nil, err
	}
	if req.Timeout < 0 || req.Timeout > MaxSpeechTimeout {
		return nil, fmt.Errorf("%w: timeout must be between 0 and %s", ErrInvalidInput, MaxSpeechTimeout)
	}
	timeout := req.Timeout
	if timeout == 0 {
		timeout = s.ttsTimeout
	}

	audio, err := s.provider.Synthesize(ctx, req.VoiceID, req.Text, timeout)
	if err != nil {
		s.recordError(ctx, storage.APITTS, &req.VoiceID, err)
		return nil, err
	}
	s.recordMetric(ctx, storage.Metric{
		VoiceID:    &req.VoiceID,
		TextLength: utf8.RuneCountInString(req.Text),
		APIType:    storage.APITTS,
	})
	return audio, nil
}

func (s *Service) check(v any) error {
	if err := s.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, describe(err))
	}
	return nil
}

func (s *Service) recordMetric(ctx context.Context, m storage.Metric) {
	if err := s.rec.RecordMetric(context.WithoutCancel(ctx), m); err != nil {
		s.log.Warn("Failed to record metric", zap.String("api_type", string(m.APIType)), zap.Error(err))
	}
}

func (s *Service) recordError(ctx context.Context, typ storage.APIType, voiceID *string, cause error) {
	s.log.Error("Provider call failed", zap.String("api_type", string(typ)), zap.Error(cause))
	if err := s.rec.RecordError(context.WithoutCancel(ctx), storage.ErrorLog{
		VoiceID:      voiceID,
		ErrorMessage: cause.Error(),
		APIType:      typ,
	}); err != nil {
		s.log.Warn("Failed to record error log", zap.String("api_type", string(typ)), zap.Error(err))
	}
}
