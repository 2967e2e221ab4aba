// Package deepgram provides a Deepgram-backed STT provider using the Deepgram
// pre-recorded audio API. It implements the stt.Provider interface.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/callsight/callsight/pkg/provider/stt"
)

const (
	listenEndpoint = "https://api.deepgram.com/v1/listen"
	defaultModel   = "nova-3"
	defaultTimeout = 120 * time.Second
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "base").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithBaseURL overrides the listen endpoint. Useful for tests and proxies.
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

// Provider implements stt.Provider backed by the Deepgram pre-recorded API.
type Provider struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		model:      defaultModel,
		endpoint:   listenEndpoint,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// listenResponse is the JSON structure returned by the pre-recorded API.
type listenResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
				Words      []struct {
					Word       string  `json:"word"`
					Start      float64 `json:"start"`
					End        float64 `json:"end"`
					Confidence float64 `json:"confidence"`
					Speaker    *int    `json:"speaker"`
				} `json:"words"`
			} `json:"alternatives"`
		} `json:"channels"`
	} `json:"results"`
}

// Transcribe posts the raw recording to the listen endpoint and parses the
// first alternative of the first channel into a word-level transcript.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	if len(req.Audio) == 0 {
		return nil, errors.New("deepgram: audio must not be empty")
	}

	reqURL, err := p.buildURL(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram: build URL: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(req.Audio))
	if err != nil {
		return nil, fmt.Errorf("deepgram: create request: %w", err)
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	httpReq.Header.Set("Authorization", "Token "+p.apiKey)
	httpReq.Header.Set("Content-Type", contentType)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, &stt.ServiceError{Provider: "deepgram", Message: err.Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &stt.ServiceError{Provider: "deepgram", StatusCode: resp.StatusCode, Message: "read response: " + err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &stt.ServiceError{Provider: "deepgram", StatusCode: resp.StatusCode, Message: string(data)}
	}

	result, err := parseListenResponse(data)
	if err != nil {
		return nil, &stt.ServiceError{Provider: "deepgram", StatusCode: resp.StatusCode, Message: err.Error()}
	}
	return result, nil
}

// buildURL constructs the pre-recorded endpoint URL for the given request.
func (p *Provider) buildURL(req stt.Request) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("punctuate", "true")
	q.Set("diarize", strconv.FormatBool(req.Diarize))
	if req.Language != "" {
		q.Set("language", req.Language)
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

// parseListenResponse converts the raw listen API JSON into an stt.Result.
func parseListenResponse(data []byte) (*stt.Result, error) {
	var resp listenResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse response JSON: %w", err)
	}
	if len(resp.Results.Channels) == 0 || len(resp.Results.Channels[0].Alternatives) == 0 {
		return nil, errors.New("response contains no transcription alternatives")
	}

	alt := resp.Results.Channels[0].Alternatives[0]
	result := &stt.Result{
		Text:       alt.Transcript,
		Words:      make([]stt.WordToken, 0, len(alt.Words)),
		DurationMS: int64(math.Round(resp.Metadata.Duration * 1000)),
	}

	for _, w := range alt.Words {
		speaker := stt.UnknownSpeaker
		if w.Speaker != nil {
			speaker = "speaker_" + strconv.Itoa(*w.Speaker)
		}
		result.Words = append(result.Words, stt.WordToken{
			Text:       w.Word,
			StartMS:    int64(math.Round(w.Start * 1000)),
			EndMS:      int64(math.Round(w.End * 1000)),
			SpeakerID:  speaker,
			Confidence: w.Confidence,
		})
	}
	return result, nil
}
