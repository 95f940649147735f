package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	el "github.com/haguro/elevenlabs-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dombearx/VoiceBot/pkg/throttle"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{APIKey: "key", BaseURL: srv.URL, HTTPClient: srv.Client()})
}

func TestListVoicesMapsAndPaginates(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/v2/voices", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("xi-api-key"))
		assert.Equal(t, "personal", r.URL.Query().Get("voice_type"))
		assert.Equal(t, "100", r.URL.Query().Get("page_size"))

		if r.URL.Query().Get("next_page_token") == "" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"voices": []map[string]any{{
					"voice_id":        "v1",
					"name":            "Narrator",
					"description":     "deep and calm",
					"created_at_unix": 1700000000,
					"samples": []map[string]any{
						{"sample_id": "s1", "file_name": "intro.mp3"},
						{"sample_id": "", "file_name": "broken.mp3"},
						{"sample_id": "s2"},
					},
				}},
				"has_more":        true,
				"next_page_token": "p2",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"voices":   []map[string]any{{"voice_id": "v2", "name": "Second"}},
			"has_more": false,
		})
	})

	voices, err := c.ListVoices(context.Background())
	require.NoError(t, err)
	require.Len(t, voices, 2)
	assert.Equal(t, 2, calls)

	v := voices[0]
	assert.Equal(t, "v1", v.ID)
	assert.Equal(t, "deep and calm", v.Prompt)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), v.CreatedAt)
	assert.Equal(t, []VoiceSample{
		{ID: "s1", Text: "intro.mp3", AudioURL: "https://api.elevenlabs.io/v1/voices/v1/samples/s1/audio"},
		{ID: "s2", Text: "Sample s2", AudioURL: "https://api.elevenlabs.io/v1/voices/v1/samples/s2/audio"},
	}, v.Samples)
	assert.Empty(t, voices[1].Samples)
}

func TestListVoicesRejectsNamelessVoice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"voices":[{"voice_id":"v1"}]}`))
	})
	_, err := c.ListVoices(context.Background())
	assert.ErrorContains(t, err, "name")
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusUnprocessableEntity, ErrInvalidRequest},
		{http.StatusTooManyRequests, ErrRateLimited},
		{http.StatusBadGateway, ErrUpstream},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"detail":{"status":"x","message":"went wrong"}}`))
			})
			err := c.DeleteVoice(context.Background(), "v1")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorContains(t, err, "went wrong")

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode())
		})
	}
}

func TestDesignVoiceRequestAndDefaults(t *testing.T) {
	var got apiDesignRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/text-to-voice/design", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"previews":[{"generated_voice_id":"g1","audio_base_64":"AAAA","media_type":"audio/mpeg","duration_secs":3.5}],"text":"hello there"}`))
	})

	res, err := c.DesignVoice(context.Background(), DesignRequest{Prompt: "a warm narrator voice for audiobooks"})
	require.NoError(t, err)

	assert.Equal(t, "a warm narrator voice for audiobooks", got.VoiceDescription)
	assert.Equal(t, 0.5, got.Loudness)
	assert.Equal(t, 5.0, got.GuidanceScale)
	assert.True(t, got.AutoGenerateText)
	assert.Empty(t, got.Text)

	assert.Equal(t, "hello there", res.Text)
	require.Len(t, res.Previews, 1)
	assert.Equal(t, Preview{GeneratedVoiceID: "g1", AudioBase64: "AAAA", MediaType: "audio/mpeg", DurationSecs: 3.5}, res.Previews[0])
}

func TestDesignVoiceWithSampleText(t *testing.T) {
	var got apiDesignRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"previews":[],"text":"x"}`))
	})

	text := "custom sample"
	loud, creative := -0.2, 40.0
	_, err := c.DesignVoice(context.Background(), DesignRequest{
		Prompt: "p", SampleText: &text, Loudness: &loud, Creativity: &creative,
	})
	require.NoError(t, err)
	assert.False(t, got.AutoGenerateText)
	assert.Equal(t, "custom sample", got.Text)
	assert.Equal(t, -0.2, got.Loudness)
	assert.Equal(t, 40.0, got.GuidanceScale)
}

func TestCreateVoice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body apiCreateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "g1", body.GeneratedVoiceID)
		_, _ = w.Write([]byte(`{"voice_id":"v9","name":"Bard","created_at_unix":1700000100}`))
	})

	v, err := c.CreateVoice(context.Background(), CreateRequest{
		VoiceName: "Bard", VoiceDescription: "a bard with a lute and a story", GeneratedVoiceID: "g1",
	})
	require.NoError(t, err)
	assert.Equal(t, "v9", v.ID)
	assert.Equal(t, "a bard with a lute and a story", v.Prompt)
}

func TestSynthesize(t *testing.T) {
	c := New(Config{APIKey: "key", ModelID: "model-x", Limiter: throttle.NewAdaptiveLimiter(10, 1, 10, 1, 0.5)})

	var gotReq el.TextToSpeechRequest
	var gotTimeout time.Duration
	c.tts = func(ctx context.Context, voiceID string, req el.TextToSpeechRequest, timeout time.Duration) ([]byte, error) {
		gotReq, gotTimeout = req, timeout
		return []byte("mp3"), nil
	}

	audio, err := c.Synthesize(context.Background(), "v1", "hello", 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3"), audio)
	assert.Equal(t, "hello", gotReq.Text)
	assert.Equal(t, "model-x", gotReq.ModelID)
	assert.Equal(t, 30*time.Second, gotTimeout)

	c.tts = func(context.Context, string, el.TextToSpeechRequest, time.Duration) ([]byte, error) {
		return nil, context.DeadlineExceeded
	}
	_, err = c.Synthesize(context.Background(), "v1", "hello", 5*time.Second)
	assert.ErrorIs(t, err, ErrTimeout)

	c.tts = func(context.Context, string, el.TextToSpeechRequest, time.Duration) ([]byte, error) {
		return nil, errors.New("malformed body")
	}
	_, err = c.Synthesize(context.Background(), "v1", "hello", 0)
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestSynthesizeClassifiesSDKErrors(t *testing.T) {
	msgs := []el.ValidationErrorDetailItem{{Msg: "text too long"}}
	tests := []struct {
		name     string
		err      error
		want     error
		slowDown bool
	}{
		{"bad request", &el.APIError{Detail: el.APIErrorDetail{Status: "voice_not_found", Message: "no such voice"}}, ErrInvalidRequest, false},
		{"invalid key", &el.APIError{Detail: el.APIErrorDetail{Status: "invalid_api_key", Message: "bad key"}}, ErrUnauthorized, false},
		{"validation", &el.ValidationError{Detail: &msgs}, ErrInvalidRequest, false},
		{"rate limited", fmt.Errorf("unexpected HTTP status \"%d %s\" returned from server", 429, http.StatusText(429)), ErrRateLimited, true},
		{"not found", fmt.Errorf("unexpected HTTP status \"%d %s\" returned from server", 404, http.StatusText(404)), ErrNotFound, false},
		{"server error", fmt.Errorf("unexpected HTTP status \"%d %s\" returned from server", 503, http.StatusText(503)), ErrUpstream, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lim := throttle.NewAdaptiveLimiter(5, 1, 10, 1, 0.5)
			c := New(Config{APIKey: "key", Limiter: lim})
			c.tts = func(context.Context, string, el.TextToSpeechRequest, time.Duration) ([]byte, error) {
				return nil, tt.err
			}

			_, err := c.Synthesize(context.Background(), "v1", "hello", 0)
			assert.ErrorIs(t, err, tt.want)

			var apiErr *APIError
			assert.True(t, errors.As(err, &apiErr))
			if tt.slowDown {
				assert.Equal(t, 2.5, lim.CurrentLimit())
			} else {
				assert.Equal(t, 5.0, lim.CurrentLimit())
			}
		})
	}
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := New(Config{APIKey: "key", BaseURL: srv.URL})
	_, err := c.ListVoices(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDurationRejectsGarbage(t *testing.T) {
	_, err := Duration([]byte("not an mp3"))
	assert.Error(t, err)

	_, err = Base64Duration("%%%")
	assert.Error(t, err)
}
