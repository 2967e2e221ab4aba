// Package elevenlabs provides an STT provider backed by the ElevenLabs
// Speech-to-Text (Scribe) convert API. It implements the stt.Provider
// interface.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/callsight/callsight/pkg/provider/stt"
)

const (
	convertEndpoint = "https://api.elevenlabs.io/v1/speech-to-text"
	defaultModel    = "scribe_v1"
	defaultTimeout  = 120 * time.Second
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithModel sets the Scribe model id (e.g., "scribe_v1"). Defaults to scribe_v1.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithBaseURL overrides the convert endpoint. Useful for tests and proxies.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.endpoint = url
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 120 s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithAudioEventTags enables tagging of non-speech audio events (laughter,
// music) in the response. Tagged events carry no speaker and are dropped
// during token parsing, but they improve word timing around them.
func WithAudioEventTags(enabled bool) Option {
	return func(p *Provider) {
		p.tagAudioEvents = enabled
	}
}

// Provider implements stt.Provider backed by the ElevenLabs convert API.
type Provider struct {
	apiKey         string
	model          string
	endpoint       string
	tagAudioEvents bool
	httpClient     *http.Client
}

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:         apiKey,
		model:          defaultModel,
		endpoint:       convertEndpoint,
		tagAudioEvents: true,
		httpClient:     &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// convertResponse is the JSON structure returned by the convert API.
type convertResponse struct {
	LanguageCode string `json:"language_code"`
	Text         string `json:"text"`
	Words        []struct {
		Text      string  `json:"text"`
		Start     float64 `json:"start"`
		End       float64 `json:"end"`
		Type      string  `json:"type"`
		SpeakerID string  `json:"speaker_id"`
		LogProb   float64 `json:"logprob"`
	} `json:"words"`
}

// Transcribe submits the recording as multipart/form-data and parses the
// word-level response. Word-level timestamps are always requested; speaker
// diarization follows req.Diarize.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	if len(req.Audio) == 0 {
		return nil, errors.New("elevenlabs: audio must not be empty")
	}

	body, contentType, err := p.buildForm(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build form: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: create request: %w", err)
	}
	httpReq.Header.Set("xi-api-key", p.apiKey)
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &stt.ServiceError{Provider: "elevenlabs", Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &stt.ServiceError{Provider: "elevenlabs", StatusCode: resp.StatusCode, Message: "read response: " + err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &stt.ServiceError{Provider: "elevenlabs", StatusCode: resp.StatusCode, Message: truncate(string(data), 512)}
	}

	result, err := parseConvertResponse(data)
	if err != nil {
		return nil, &stt.ServiceError{Provider: "elevenlabs", StatusCode: resp.StatusCode, Message: err.Error()}
	}
	return result, nil
}

// buildForm encodes req as the multipart body expected by the convert API.
func (p *Provider) buildForm(req stt.Request) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	filename := req.Filename
	if filename == "" {
		filename = "audio_file"
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(req.Audio); err != nil {
		return nil, "", fmt.Errorf("write audio: %w", err)
	}

	fields := map[string]string{
		"model_id":               p.model,
		"diarize":                strconv.FormatBool(req.Diarize),
		"timestamps_granularity": "word",
		"tag_audio_events":       strconv.FormatBool(p.tagAudioEvents),
	}
	if req.NumSpeakers > 0 {
		fields["num_speakers"] = strconv.Itoa(req.NumSpeakers)
	}
	if req.Language != "" {
		fields["language_code"] = req.Language
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("write field %q: %w", name, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &body, mw.FormDataContentType(), nil
}

// parseConvertResponse converts the raw convert API JSON into an stt.Result.
// Non-word items (spacing, audio events) contribute to the duration but are
// excluded from the token sequence.
func parseConvertResponse(data []byte) (*stt.Result, error) {
	var resp convertResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse response JSON: %w", err)
	}

	result := &stt.Result{
		Text:  resp.Text,
		Words: make([]stt.WordToken, 0, len(resp.Words)),
	}

	for _, w := range resp.Words {
		endMS := int64(math.Round(w.End * 1000))
		if endMS > result.DurationMS {
			result.DurationMS = endMS
		}
		if w.Type != "" && w.Type != "word" {
			continue
		}
		speaker := w.SpeakerID
		if speaker == "" {
			speaker = stt.UnknownSpeaker
		}
		result.Words = append(result.Words, stt.WordToken{
			Text:       w.Text,
			StartMS:    int64(math.Round(w.Start * 1000)),
			EndMS:      endMS,
			SpeakerID:  speaker,
			Confidence: confidenceFromLogProb(w.LogProb),
		})
	}
	return result, nil
}

// confidenceFromLogProb maps a word log-probability onto [0, 1].
// A zero logprob (not reported) maps to 0 so callers can tell it apart.
func confidenceFromLogProb(logProb float64) float64 {
	if logProb == 0 {
		return 0
	}
	c := math.Exp(logProb)
	if c > 1 {
		return 1
	}
	return c
}

// truncate shortens s to at most n bytes for inclusion in error messages.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
