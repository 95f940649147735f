package elevenlabs

import "time"

// Voice is a personal voice from the account library.
type Voice struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Prompt    string        `json:"prompt"`
	CreatedAt time.Time     `json:"createdAt"`
	Samples   []VoiceSample `json:"samples"`
}

type VoiceSample struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	AudioURL string `json:"audioUrl"`
}

// DesignRequest describes a voice to generate previews for.
type DesignRequest struct {
	Prompt     string   `json:"prompt" validate:"min=20,max=1000"`
	SampleText *string  `json:"sampleText,omitempty" validate:"omitempty,min=100,max=1000"`
	Loudness   *float64 `json:"loudness,omitempty" validate:"omitempty,min=-1,max=1"`
	Creativity *float64 `json:"creativity,omitempty" validate:"omitempty,min=0,max=100"`
}

// Preview is one generated candidate voice.
type Preview struct {
	GeneratedVoiceID string  `json:"generatedVoiceId"`
	AudioBase64      string  `json:"audioBase64"`
	MediaType        string  `json:"mediaType"`
	DurationSecs     float64 `json:"durationSecs"`
}

type DesignResult struct {
	Previews []Preview `json:"previews"`
	Text     string    `json:"text"`
}

// CreateRequest saves a generated preview as a library voice.
type CreateRequest struct {
	VoiceName        string `json:"voiceName" validate:"required,max=100"`
	VoiceDescription string `json:"voiceDescription" validate:"min=20,max=1000"`
	GeneratedVoiceID string `json:"generatedVoiceId" validate:"required"`
}

const (
	defaultLoudness   = 0.5
	defaultCreativity = 5.0
)

// wire formats

type apiSample struct {
	SampleID string `json:"sample_id"`
	FileName string `json:"file_name"`
}

type apiVoice struct {
	VoiceID       string      `json:"voice_id"`
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	CreatedAtUnix int64       `json:"created_at_unix"`
	Samples       []apiSample `json:"samples"`
}

type apiVoicesPage struct {
	Voices        []apiVoice `json:"voices"`
	HasMore       bool       `json:"has_more"`
	NextPageToken string     `json:"next_page_token"`
	TotalCount    int        `json:"total_count"`
}

type apiDesignRequest struct {
	VoiceDescription string  `json:"voice_description"`
	Loudness         float64 `json:"loudness"`
	GuidanceScale    float64 `json:"guidance_scale"`
	AutoGenerateText bool    `json:"auto_generate_text"`
	Text             string  `json:"text,omitempty"`
}

type apiPreview struct {
	AudioBase64      string  `json:"audio_base_64"`
	GeneratedVoiceID string  `json:"generated_voice_id"`
	MediaType        string  `json:"media_type"`
	DurationSecs     float64 `json:"duration_secs"`
}

type apiDesignResponse struct {
	Previews []apiPreview `json:"previews"`
	Text     string       `json:"text"`
}

type apiCreateRequest struct {
	VoiceName        string `json:"voice_name"`
	VoiceDescription string `json:"voice_description"`
	GeneratedVoiceID string `json:"generated_voice_id"`
}

type apiErrorBody struct {
	Detail any `json:"detail"`
}
