package elevenlabs_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/callsight/callsight/pkg/provider/stt"
	"github.com/callsight/callsight/pkg/provider/stt/elevenlabs"
)

const sampleResponse = `{
	"language_code": "en",
	"text": "Hello there friend",
	"words": [
		{"text": "Hello", "start": 0.1, "end": 0.5, "type": "word", "speaker_id": "speaker_0", "logprob": -0.1},
		{"text": " ", "start": 0.5, "end": 0.6, "type": "spacing", "speaker_id": "speaker_0"},
		{"text": "there", "start": 0.6, "end": 1.0, "type": "word", "speaker_id": "speaker_1", "logprob": -0.2},
		{"text": "(laughter)", "start": 1.0, "end": 2.0, "type": "audio_event"},
		{"text": "friend", "start": 2.0, "end": 2.4, "type": "word"}
	]
}`

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := elevenlabs.New(""); err == nil {
		t.Fatal("New(\"\") returned nil error, want non-nil")
	}
}

func TestTranscribeParsesWords(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("xi-api-key"); got != "test-key" {
			t.Errorf("xi-api-key header = %q, want %q", got, "test-key")
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("parse multipart form: %v", err)
		}
		if got := r.FormValue("model_id"); got != "scribe_v1" {
			t.Errorf("model_id field = %q, want %q", got, "scribe_v1")
		}
		if got := r.FormValue("diarize"); got != "true" {
			t.Errorf("diarize field = %q, want %q", got, "true")
		}
		if got := r.FormValue("timestamps_granularity"); got != "word" {
			t.Errorf("timestamps_granularity field = %q, want %q", got, "word")
		}
		if got := r.FormValue("num_speakers"); got != "2" {
			t.Errorf("num_speakers field = %q, want %q", got, "2")
		}
		if _, hdr, err := r.FormFile("file"); err != nil {
			t.Errorf("file field missing: %v", err)
		} else if hdr.Filename != "call.mp3" {
			t.Errorf("file name = %q, want %q", hdr.Filename, "call.mp3")
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(sampleResponse)); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	defer srv.Close()

	p, err := elevenlabs.New("test-key", elevenlabs.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	result, err := p.Transcribe(context.Background(), stt.Request{
		Audio:       []byte("fake-audio"),
		Filename:    "call.mp3",
		Diarize:     true,
		NumSpeakers: 2,
	})
	if err != nil {
		t.Fatalf("Transcribe returned error: %v", err)
	}

	if len(result.Words) != 3 {
		t.Fatalf("got %d words, want 3 (spacing and audio events must be dropped)", len(result.Words))
	}
	if result.Text != "Hello there friend" {
		t.Errorf("Text = %q, want %q", result.Text, "Hello there friend")
	}

	first := result.Words[0]
	if first.Text != "Hello" || first.StartMS != 100 || first.EndMS != 500 {
		t.Errorf("first word = %+v, want Hello @ 100–500 ms", first)
	}
	if first.SpeakerID != "speaker_0" {
		t.Errorf("first speaker = %q, want %q", first.SpeakerID, "speaker_0")
	}
	if first.Confidence <= 0 || first.Confidence > 1 {
		t.Errorf("first confidence = %v, want in (0, 1]", first.Confidence)
	}

	last := result.Words[2]
	if last.SpeakerID != stt.UnknownSpeaker {
		t.Errorf("word without speaker_id got %q, want %q", last.SpeakerID, stt.UnknownSpeaker)
	}

	// Duration covers the audio event tail even though its token is dropped.
	if result.DurationMS != 2400 {
		t.Errorf("DurationMS = %d, want 2400", result.DurationMS)
	}
}

func TestTranscribeUpstreamFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, err := elevenlabs.New("test-key", elevenlabs.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	_, err = p.Transcribe(context.Background(), stt.Request{Audio: []byte("x")})
	var svcErr *stt.ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("error = %v, want *stt.ServiceError", err)
	}
	if svcErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want %d", svcErr.StatusCode, http.StatusTooManyRequests)
	}
	if svcErr.Provider != "elevenlabs" {
		t.Errorf("Provider = %q, want %q", svcErr.Provider, "elevenlabs")
	}
}

func TestTranscribeMalformedResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("not json at all")); err != nil {
			t.Errorf("write response: %v", err)
		}
	}))
	defer srv.Close()

	p, err := elevenlabs.New("test-key", elevenlabs.WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	_, err = p.Transcribe(context.Background(), stt.Request{Audio: []byte("x")})
	var svcErr *stt.ServiceError
	if !errors.As(err, &svcErr) {
		t.Fatalf("error = %v, want *stt.ServiceError", err)
	}
}

func TestTranscribeEmptyAudio(t *testing.T) {
	t.Parallel()

	p, err := elevenlabs.New("test-key")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), stt.Request{}); err == nil {
		t.Fatal("Transcribe with empty audio returned nil error, want non-nil")
	}
}
