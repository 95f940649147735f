package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// APIType tags which provider call a record belongs to.
type APIType string

const (
	APIVoiceGeneration   APIType = "voice_generation"
	APITTS               APIType = "tts"
	APIPromptImprovement APIType = "prompt_improvement"
)

// ParseAPIType validates s.
func ParseAPIType(s string) (APIType, error) {
	switch t := APIType(s); t {
	case APIVoiceGeneration, APITTS, APIPromptImprovement:
		return t, nil
	}
	return "", fmt.Errorf("unknown api type %q", s)
}

// Metric is one successful provider call.
type Metric struct {
	ID         uuid.UUID `json:"id"`
	VoiceID    *string   `json:"voiceId"`
	TokenCount int       `json:"tokenCount"`
	TextLength int       `json:"textLength"`
	APIType    APIType   `json:"apiType"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ErrorLog is one failed provider call.
type ErrorLog struct {
	ID           uuid.UUID `json:"id"`
	VoiceID      *string   `json:"voiceId"`
	ErrorMessage string    `json:"errorMessage"`
	APIType      APIType   `json:"apiType"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Page is one page of a filtered listing.
type Page[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}
