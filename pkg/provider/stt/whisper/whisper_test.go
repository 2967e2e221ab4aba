package whisper

import (
	"encoding/binary"
	"math"
	"testing"
)

// buildWAV assembles a minimal 16-bit PCM RIFF/WAV payload for tests.
func buildWAV(samples []int16, sampleRate, channels int) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}

	buf := make([]byte, 44+len(pcm))
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*channels*2))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(channels*2))
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(pcm)))
	copy(buf[44:], pcm)
	return buf
}

func TestDecodeWAVMono16k(t *testing.T) {
	t.Parallel()

	samples := make([]int16, 16000) // exactly 1 s at the model rate
	samples[0] = 16384
	data := buildWAV(samples, 16000, 1)

	out, durationMS, err := decodeWAV(data)
	if err != nil {
		t.Fatalf("decodeWAV returned error: %v", err)
	}
	if durationMS != 1000 {
		t.Errorf("durationMS = %d, want 1000", durationMS)
	}
	if len(out) != 16000 {
		t.Fatalf("got %d samples, want 16000", len(out))
	}
	if math.Abs(float64(out[0])-0.5) > 0.001 {
		t.Errorf("first sample = %v, want ~0.5", out[0])
	}
}

func TestDecodeWAVStereoDownmix(t *testing.T) {
	t.Parallel()

	// One frame: left 16384, right -16384. Downmix averages to 0.
	data := buildWAV([]int16{16384, -16384}, 16000, 2)

	out, _, err := decodeWAV(data)
	if err != nil {
		t.Fatalf("decodeWAV returned error: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d samples, want 1", len(out))
	}
	if math.Abs(float64(out[0])) > 0.001 {
		t.Errorf("downmixed sample = %v, want ~0", out[0])
	}
}

func TestDecodeWAVResamples(t *testing.T) {
	t.Parallel()

	data := buildWAV(make([]int16, 8000), 8000, 1) // 1 s at 8 kHz

	out, durationMS, err := decodeWAV(data)
	if err != nil {
		t.Fatalf("decodeWAV returned error: %v", err)
	}
	if durationMS != 1000 {
		t.Errorf("durationMS = %d, want 1000", durationMS)
	}
	if len(out) != 16000 {
		t.Errorf("got %d samples after resampling, want 16000", len(out))
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, _, err := decodeWAV([]byte("definitely not a wav file")); err == nil {
		t.Fatal("decodeWAV accepted garbage input, want error")
	}
}

func TestInterpolateWords(t *testing.T) {
	t.Parallel()

	words := interpolateWords("hi there", 1000, 2000)
	if len(words) != 2 {
		t.Fatalf("got %d words, want 2", len(words))
	}
	if words[0].StartMS != 1000 {
		t.Errorf("first StartMS = %d, want 1000", words[0].StartMS)
	}
	if words[1].EndMS != 2000 {
		t.Errorf("last EndMS = %d, want 2000", words[1].EndMS)
	}
	if words[0].EndMS != words[1].StartMS {
		t.Errorf("words are not contiguous: %d != %d", words[0].EndMS, words[1].StartMS)
	}
	// "there" (5 runes) gets more span than "hi" (2 runes).
	if span0, span1 := words[0].EndMS-words[0].StartMS, words[1].EndMS-words[1].StartMS; span0 >= span1 {
		t.Errorf("spans = %d, %d; want longer word to get the larger span", span0, span1)
	}
	for i, w := range words {
		if w.SpeakerID != defaultSpeaker {
			t.Errorf("word %d speaker = %q, want %q", i, w.SpeakerID, defaultSpeaker)
		}
	}
}

func TestInterpolateWordsEmpty(t *testing.T) {
	t.Parallel()

	if words := interpolateWords("   ", 0, 100); words != nil {
		t.Errorf("got %v for whitespace-only text, want nil", words)
	}
}
