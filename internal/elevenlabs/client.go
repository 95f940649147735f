// Package elevenlabs talks to the ElevenLabs text-to-speech and voice
// design API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	el "github.com/haguro/elevenlabs-go"

	"github.com/Dombearx/VoiceBot/pkg/throttle"
)

const (
	DefaultBaseURL = "https://api.elevenlabs.io"
	DefaultModelID = "eleven_multilingual_v2"

	voicesPageSize = 100
	maxVoicePages  = 20
)

// Config configures a Client.
//
// BaseURL and HTTPClient apply to the voice library and design calls only.
// Synthesis goes through elevenlabs-go, which always targets
// https://api.elevenlabs.io/v1 with its own transport.
type Config struct {
	APIKey     string
	BaseURL    string
	ModelID    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Limiter    *throttle.AdaptiveLimiter
}

// ttsFunc performs one synthesis call.
type ttsFunc func(ctx context.Context, voiceID string, req el.TextToSpeechRequest, timeout time.Duration) ([]byte, error)

// Client is safe for concurrent use.
type Client struct {
	apiKey  string
	baseURL string
	modelID string
	timeout time.Duration
	http    *http.Client
	limiter *throttle.AdaptiveLimiter
	tts     ttsFunc
}

// New creates a Client.
func New(cfg Config) *Client {
	c := &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		modelID: cfg.ModelID,
		timeout: cfg.Timeout,
		http:    cfg.HTTPClient,
		limiter: cfg.Limiter,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.modelID == "" {
		c.modelID = DefaultModelID
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 60 * time.Second}
	}
	c.tts = c.sdkTextToSpeech
	return c
}

func (c *Client) sdkTextToSpeech(ctx context.Context, voiceID string, req el.TextToSpeechRequest, timeout time.Duration) ([]byte, error) {
	return el.NewClient(ctx, c.apiKey, timeout).TextToSpeech(voiceID, req)
}

// Synthesize returns MP3 audio of text spoken by voiceID. A zero timeout
// uses the client default.
func (c *Client) Synthesize(ctx context.Context, voiceID, text string, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = c.timeout
	}
	var audio []byte
	err := throttle.Do(ctx, c.limiter, func() error {
		var err error
		audio, err = c.tts(ctx, voiceID, el.TextToSpeechRequest{Text: text, ModelID: c.modelID}, timeout)
		if err != nil {
			return classifySDKError(err)
		}
		return nil
	})
	if err != nil {
		return nil, synthesisError(err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("text to speech: %w: empty audio", ErrUpstream)
	}
	return audio, nil
}

// ListVoices returns every personal voice in the account.
func (c *Client) ListVoices(ctx context.Context) ([]Voice, error) {
	voices := make([]Voice, 0)
	token := ""
	for page := 0; page < maxVoicePages; page++ {
		q := url.Values{}
		q.Set("voice_type", "personal")
		q.Set("page_size", fmt.Sprint(voicesPageSize))
		q.Set("include_total_count", "true")
		if token != "" {
			q.Set("next_page_token", token)
		}

		var resp apiVoicesPage
		if err := c.do(ctx, "list voices", http.MethodGet, "/v2/voices?"+q.Encode(), nil, &resp); err != nil {
			return nil, err
		}
		for _, v := range resp.Voices {
			voice, err := mapVoice(v)
			if err != nil {
				return nil, fmt.Errorf("list voices: %w", err)
			}
			voices = append(voices, voice)
		}
		if !resp.HasMore || resp.NextPageToken == "" {
			break
		}
		token = resp.NextPageToken
	}
	return voices, nil
}

// DesignVoice generates previews for a voice description.
func (c *Client) DesignVoice(ctx context.Context, req DesignRequest) (DesignResult, error) {
	body := apiDesignRequest{
		VoiceDescription: req.Prompt,
		Loudness:         defaultLoudness,
		GuidanceScale:    defaultCreativity,
		AutoGenerateText: req.SampleText == nil || *req.SampleText == "",
	}
	if req.Loudness != nil {
		body.Loudness = *req.Loudness
	}
	if req.Creativity != nil {
		body.GuidanceScale = *req.Creativity
	}
	if !body.AutoGenerateText {
		body.Text = *req.SampleText
	}

	var resp apiDesignResponse
	if err := c.do(ctx, "design voice", http.MethodPost, "/v1/text-to-voice/design", body, &resp); err != nil {
		return DesignResult{}, err
	}

	out := DesignResult{Text: resp.Text, Previews: make([]Preview, 0, len(resp.Previews))}
	for _, p := range resp.Previews {
		pv := Preview{
			GeneratedVoiceID: p.GeneratedVoiceID,
			AudioBase64:      p.AudioBase64,
			MediaType:        p.MediaType,
			DurationSecs:     p.DurationSecs,
		}
		if pv.MediaType == "" {
			pv.MediaType = "audio/mpeg"
		}
		if pv.DurationSecs == 0 {
			if d, err := Base64Duration(p.AudioBase64); err == nil {
				pv.DurationSecs = d.Seconds()
			}
		}
		out.Previews = append(out.Previews, pv)
	}
	return out, nil
}

// CreateVoice saves a preview into the voice library.
func (c *Client) CreateVoice(ctx context.Context, req CreateRequest) (Voice, error) {
	body := apiCreateRequest{
		VoiceName:        req.VoiceName,
		VoiceDescription: req.VoiceDescription,
		GeneratedVoiceID: req.GeneratedVoiceID,
	}
	var resp apiVoice
	if err := c.do(ctx, "create voice", http.MethodPost, "/v1/text-to-voice", body, &resp); err != nil {
		return Voice{}, err
	}
	if resp.Description == "" {
		resp.Description = req.VoiceDescription
	}
	v, err := mapVoice(resp)
	if err != nil {
		return Voice{}, fmt.Errorf("create voice: %w", err)
	}
	return v, nil
}

// DeleteVoice removes a voice from the library.
func (c *Client) DeleteVoice(ctx context.Context, voiceID string) error {
	return c.do(ctx, "delete voice", http.MethodDelete, "/v1/voices/"+url.PathEscape(voiceID), nil, nil)
}

// do sends one JSON request and decodes a JSON answer into out.
func (c *Client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	return throttle.Do(ctx, c.limiter, func() error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		req.Header.Set("xi-api-key", c.apiKey)
		req.Header.Set("Accept", "application/json")
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return transportError(op, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("%s: %w", op, readAPIError(resp))
		}
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s: %w: decode response: %w", op, ErrUpstream, err)
		}
		return nil
	})
}

func readAPIError(resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}

	var body apiErrorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Detail != nil {
		switch d := body.Detail.(type) {
		case string:
			apiErr.Message = d
		case map[string]any:
			if msg, ok := d["message"].(string); ok {
				apiErr.Message = msg
			}
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}

func mapVoice(v apiVoice) (Voice, error) {
	if v.VoiceID == "" {
		return Voice{}, errors.New("missing required field: voice_id")
	}
	if v.Name == "" {
		return Voice{}, errors.New("missing required field: name")
	}

	created := time.Now().UTC()
	if v.CreatedAtUnix > 0 {
		created = time.Unix(v.CreatedAtUnix, 0).UTC()
	}

	samples := make([]VoiceSample, 0, len(v.Samples))
	for _, s := range v.Samples {
		if s.SampleID == "" {
			continue
		}
		text := s.FileName
		if text == "" {
			text = "Sample " + s.SampleID
		}
		samples = append(samples, VoiceSample{
			ID:       s.SampleID,
			Text:     text,
			AudioURL: SampleAudioURL(v.VoiceID, s.SampleID),
		})
	}

	return Voice{
		ID:        v.VoiceID,
		Name:      v.Name,
		Prompt:    v.Description,
		CreatedAt: created,
		Samples:   samples,
	}, nil
}

// SampleAudioURL is the public URL of a voice sample's audio.
func SampleAudioURL(voiceID, sampleID string) string {
	return fmt.Sprintf("%s/v1/voices/%s/samples/%s/audio", DefaultBaseURL, voiceID, sampleID)
}
