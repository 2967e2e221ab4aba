// Package whisper provides a local whisper.cpp-backed STT provider using the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a) and
// headers (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.
//
// The model is loaded once at construction and shared across all Transcribe
// calls; each call creates its own whisper context, so concurrent calls are
// safe. whisper.cpp performs no speaker diarization, so every word is tagged
// with a single speaker id. Only 16-bit PCM WAV input is accepted; anything
// else must be transcoded before upload or routed to a hosted provider.
package whisper

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"github.com/callsight/callsight/pkg/provider/stt"
	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

const (
	// modelSampleRate is the sample rate whisper.cpp models are trained on.
	modelSampleRate = 16000

	defaultLanguage = "en"
	defaultSpeaker  = "speaker_1"
)

// Compile-time assertion that Provider satisfies stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the default BCP-47 language code for transcription
// (e.g., "en", "de", "fr"). Defaults to "en". A per-request language in
// stt.Request takes precedence.
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// Provider implements stt.Provider using whisper.cpp Go bindings (CGO).
type Provider struct {
	model    whisperlib.Model
	language string
}

// New creates a Provider that loads the whisper.cpp model from the given file
// path. The model is loaded once and shared across all Transcribe calls. The
// caller must call Close when the provider is no longer needed.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &Provider{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model. Must be called when the provider is no
// longer needed.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe decodes the WAV payload, runs whisper.cpp inference in a fresh
// context, and returns word tokens. whisper.cpp reports timings per segment,
// not per word, so word boundaries are interpolated evenly across each
// segment's span weighted by word length.
func (p *Provider) Transcribe(ctx context.Context, req stt.Request) (*stt.Result, error) {
	if len(req.Audio) == 0 {
		return nil, errors.New("whisper: audio must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	samples, durationMS, err := decodeWAV(req.Audio)
	if err != nil {
		return nil, fmt.Errorf("whisper: decode %q: %w", req.Filename, err)
	}

	// Each context is NOT thread-safe, but the model can be shared across
	// goroutines.
	wctx, err := p.model.NewContext()
	if err != nil {
		return nil, fmt.Errorf("whisper: create context: %w", err)
	}

	lang := req.Language
	if lang == "" {
		lang = p.language
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return nil, fmt.Errorf("whisper: process audio: %w", err)
	}

	result := &stt.Result{DurationMS: durationMS}
	var parts []string
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("whisper: cancelled while reading segments: %w", err)
		}
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
		result.Words = append(result.Words, interpolateWords(text, segment.Start.Milliseconds(), segment.End.Milliseconds())...)
	}
	result.Text = strings.Join(parts, " ")

	return result, nil
}

// interpolateWords splits segment text on whitespace and distributes the
// segment's time span across the words in proportion to their rune length.
func interpolateWords(text string, startMS, endMS int64) []stt.WordToken {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}
	if endMS < startMS {
		endMS = startMS
	}

	total := 0
	for _, f := range fields {
		total += len([]rune(f))
	}

	words := make([]stt.WordToken, 0, len(fields))
	span := float64(endMS - startMS)
	cursor := float64(startMS)
	for _, f := range fields {
		width := span * float64(len([]rune(f))) / float64(total)
		words = append(words, stt.WordToken{
			Text:      f,
			StartMS:   int64(math.Round(cursor)),
			EndMS:     int64(math.Round(cursor + width)),
			SpeakerID: defaultSpeaker,
		})
		cursor += width
	}
	// Pin the last word to the segment end so rounding never loses time.
	words[len(words)-1].EndMS = endMS
	return words
}

// ---- WAV decoding -----------------------------------------------------------

// decodeWAV parses a 16-bit PCM RIFF/WAV payload into mono float32 samples at
// the model sample rate, resampling linearly when needed. It returns the
// samples and the audio duration in milliseconds.
func decodeWAV(data []byte) ([]float32, int64, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, errors.New("not a RIFF/WAVE file")
	}

	var (
		sampleRate int
		channels   int
		bits       int
		pcm        []byte
	)

	// Walk the chunk list; only "fmt " and "data" matter.
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			size = len(data) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, errors.New("malformed fmt chunk")
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			if format != 1 {
				return nil, 0, fmt.Errorf("unsupported WAV format code %d (only PCM is supported)", format)
			}
			channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
		case "data":
			pcm = data[body : body+size]
		}
		// Chunks are word-aligned.
		off = body + size + size%2
	}

	if sampleRate <= 0 || channels <= 0 {
		return nil, 0, errors.New("missing fmt chunk")
	}
	if bits != 16 {
		return nil, 0, fmt.Errorf("unsupported bit depth %d (only 16-bit PCM is supported)", bits)
	}
	if len(pcm) == 0 {
		return nil, 0, errors.New("missing data chunk")
	}

	mono := pcmToFloat32Mono(pcm, channels)
	durationMS := int64(len(mono)) * 1000 / int64(sampleRate)
	if sampleRate != modelSampleRate {
		mono = resampleLinear(mono, sampleRate, modelSampleRate)
	}
	return mono, durationMS, nil
}

// pcmToFloat32Mono converts 16-bit signed little-endian PCM to mono float32
// samples in [-1, 1], averaging channels when the input is multi-channel.
func pcmToFloat32Mono(pcm []byte, channels int) []float32 {
	if channels <= 0 {
		channels = 1
	}
	frames := len(pcm) / 2 / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			idx := (i*channels + c) * 2
			sample := int16(binary.LittleEndian.Uint16(pcm[idx : idx+2]))
			sum += float64(sample)
		}
		out[i] = float32(sum / float64(channels) / 32768.0)
	}
	return out
}

// resampleLinear converts samples from one rate to another using linear
// interpolation. Adequate for speech recognition input.
func resampleLinear(in []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(in) == 0 {
		return in
	}
	outLen := int(int64(len(in)) * int64(toRate) / int64(fromRate))
	if outLen == 0 {
		return nil
	}
	out := make([]float32, outLen)
	ratio := float64(fromRate) / float64(toRate)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = in[j]*(1-frac) + in[j+1]*frac
	}
	return out
}
