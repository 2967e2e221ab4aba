package stt

// UnknownSpeaker is the speaker id assigned to words the provider could not
// attribute to anyone.
const UnknownSpeaker = "unknown"

// WordToken is the smallest transcribed unit: one word with timing, speaker
// attribution, and recognition confidence. Tokens are immutable once created.
type WordToken struct {
	// Text is the transcribed word.
	Text string

	// StartMS and EndMS bound the word in milliseconds from the start of the
	// recording. StartMS <= EndMS always holds for provider output.
	StartMS int64
	EndMS   int64

	// SpeakerID identifies the diarized speaker (provider-specific label,
	// e.g., "speaker_0"). Never empty; UnknownSpeaker when unattributed.
	SpeakerID string

	// Confidence is the recognition confidence (0.0–1.0). May be zero if the
	// provider does not report per-word confidence.
	Confidence float64
}

// Result is a complete word-level transcript for one recording.
type Result struct {
	// Words is the token sequence as returned by the provider. Order follows
	// the provider response and is not guaranteed to be sorted by time.
	Words []WordToken

	// Text is the provider's own plain-text rendition of the recording.
	// May be empty for providers that only return words.
	Text string

	// DurationMS is the total audio duration in milliseconds, as measured by
	// the provider. Zero when the provider does not report it; callers fall
	// back to the last word's end time.
	DurationMS int64
}
