package voices

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Dombearx/VoiceBot/internal/elevenlabs"
	"github.com/Dombearx/VoiceBot/internal/storage"
)

type fakeProvider struct {
	voices  []elevenlabs.Voice
	design  elevenlabs.DesignResult
	created elevenlabs.Voice
	audio   []byte
	err     error

	calls       int
	gotDesign   elevenlabs.DesignRequest
	gotTimeout  time.Duration
	gotDeleteID string
}

func (f *fakeProvider) ListVoices(context.Context) ([]elevenlabs.Voice, error) {
	f.calls++
	return f.voices, f.err
}

func (f *fakeProvider) DesignVoice(_ context.Context, req elevenlabs.DesignRequest) (elevenlabs.DesignResult, error) {
	f.calls++
	f.gotDesign = req
	return f.design, f.err
}

func (f *fakeProvider) CreateVoice(_ context.Context, req elevenlabs.CreateRequest) (elevenlabs.Voice, error) {
	f.calls++
	return f.created, f.err
}

func (f *fakeProvider) DeleteVoice(_ context.Context, id string) error {
	f.calls++
	f.gotDeleteID = id
	return f.err
}

func (f *fakeProvider) Synthesize(_ context.Context, _, _ string, timeout time.Duration) ([]byte, error) {
	f.calls++
	f.gotTimeout = timeout
	return f.audio, f.err
}

type memRecorder struct {
	metrics []storage.Metric
	errs    []storage.ErrorLog
	fail    error
}

func (r *memRecorder) RecordMetric(_ context.Context, m storage.Metric) error {
	r.metrics = append(r.metrics, m)
	return r.fail
}

func (r *memRecorder) RecordError(_ context.Context, e storage.ErrorLog) error {
	r.errs = append(r.errs, e)
	return r.fail
}

func newService(p *fakeProvider) (*Service, *memRecorder) {
	rec := &memRecorder{}
	return New(p, rec, 30*time.Second, zap.NewNop()), rec
}

const description = "a warm narrator voice for audiobooks"

func TestDesignVoiceRecordsMetric(t *testing.T) {
	p := &fakeProvider{design: elevenlabs.DesignResult{Text: "hello"}}
	svc, rec := newService(p)

	res, err := svc.DesignVoice(context.Background(), elevenlabs.DesignRequest{Prompt: "  " + description + " "})
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Text)
	assert.Equal(t, description, p.gotDesign.Prompt)

	require.Len(t, rec.metrics, 1)
	assert.Equal(t, storage.APIVoiceGeneration, rec.metrics[0].APIType)
	assert.Equal(t, len(description), rec.metrics[0].TextLength)
	assert.Nil(t, rec.metrics[0].VoiceID)
}

func TestDesignVoiceValidation(t *testing.T) {
	short := "too short"
	loud := 3.0
	tests := map[string]elevenlabs.DesignRequest{
		"short prompt":      {Prompt: "tiny"},
		"long prompt":       {Prompt: strings.Repeat("a", 1001)},
		"short sample text": {Prompt: description, SampleText: &short},
		"loudness range":    {Prompt: description, Loudness: &loud},
	}
	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			p := &fakeProvider{}
			svc, rec := newService(p)
			_, err := svc.DesignVoice(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Zero(t, p.calls)
			assert.Empty(t, rec.metrics)
			assert.Empty(t, rec.errs)
		})
	}
}

func TestValidationNamesJSONFields(t *testing.T) {
	svc, _ := newService(&fakeProvider{})
	_, err := svc.CreateVoice(context.Background(), elevenlabs.CreateRequest{VoiceDescription: description})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "voiceName is required")
	assert.Contains(t, err.Error(), "generatedVoiceId is required")
}

func TestProviderFailureIsRecorded(t *testing.T) {
	p := &fakeProvider{err: elevenlabs.ErrRateLimited}
	svc, rec := newService(p)

	_, err := svc.CreateVoice(context.Background(), elevenlabs.CreateRequest{
		VoiceName: "Bard", VoiceDescription: description, GeneratedVoiceID: "g1",
	})
	assert.ErrorIs(t, err, elevenlabs.ErrRateLimited)
	require.Len(t, rec.errs, 1)
	assert.Equal(t, storage.APIVoiceGeneration, rec.errs[0].APIType)
	assert.Equal(t, elevenlabs.ErrRateLimited.Error(), rec.errs[0].ErrorMessage)
}

func TestDeleteVoice(t *testing.T) {
	p := &fakeProvider{}
	svc, _ := newService(p)
	require.NoError(t, svc.DeleteVoice(context.Background(), "v1"))
	assert.Equal(t, "v1", p.gotDeleteID)

	assert.ErrorIs(t, svc.DeleteVoice(context.Background(), " "), ErrInvalidInput)

	p.err = elevenlabs.ErrNotFound
	svc, rec := newService(p)
	assert.ErrorIs(t, svc.DeleteVoice(context.Background(), "v2"), elevenlabs.ErrNotFound)
	require.Len(t, rec.errs, 1)
	require.NotNil(t, rec.errs[0].VoiceID)
	assert.Equal(t, "v2", *rec.errs[0].VoiceID)
}

func TestSynthesizeUsesDefaultTimeout(t *testing.T) {
	p := &fakeProvider{audio: []byte("mp3")}
	svc, rec := newService(p)

	audio, err := svc.Synthesize(context.Background(), "v1", "zażółć")
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3"), audio)
	assert.Equal(t, 30*time.Second, p.gotTimeout)

	require.Len(t, rec.metrics, 1)
	assert.Equal(t, storage.APITTS, rec.metrics[0].APIType)
	assert.Equal(t, 6, rec.metrics[0].TextLength)
	assert.Equal(t, "v1", *rec.metrics[0].VoiceID)
}

func TestSpeakTimeout(t *testing.T) {
	p := &fakeProvider{audio: []byte("mp3")}
	svc, _ := newService(p)

	_, err := svc.Speak(context.Background(), SpeechRequest{VoiceID: "v1", Text: "hi", Timeout: 5 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, p.gotTimeout)

	_, err = svc.Speak(context.Background(), SpeechRequest{VoiceID: "v1", Text: "hi", Timeout: time.Hour})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Speak(context.Background(), SpeechRequest{VoiceID: "v1"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSynthesizeFailureIsRecordedAsTTS(t *testing.T) {
	p := &fakeProvider{err: elevenlabs.ErrTimeout}
	svc, rec := newService(p)
	rec.fail = errors.New("db down")

	_, err := svc.Synthesize(context.Background(), "v1", "hi")
	assert.ErrorIs(t, err, elevenlabs.ErrTimeout)
	require.Len(t, rec.errs, 1)
	assert.Equal(t, storage.APITTS, rec.errs[0].APIType)
	assert.Empty(t, rec.metrics)
}

func TestListVoices(t *testing.T) {
	p := &fakeProvider{voices: []elevenlabs.Voice{{ID: "v1", Name: "Narrator"}}}
	svc, _ := newService(p)
	voices, err := svc.ListVoices(context.Background())
	require.NoError(t, err)
	assert.Len(t, voices, 1)
}
