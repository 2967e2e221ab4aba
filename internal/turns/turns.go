// Package turns groups word-level transcription tokens into speaker turns and
// renders them as a deterministic, human-readable transcript.
//
// Everything here is pure computation over its inputs: no I/O, no shared
// state. Build is the single entry point; the same token sequence and gap
// threshold always produce the same turns and the same rendered text.
package turns

import (
	"fmt"
	"sort"
	"strings"

	"github.com/callsight/callsight/pkg/provider/stt"
)

// DefaultGapThresholdMS is the pause length between same-speaker tokens that
// starts a new turn when the caller does not configure one.
const DefaultGapThresholdMS = 1500

// Speaker roles. Turns are built with RoleUnknown; the analysis step may
// resolve the agent afterwards via ApplyAgentLabel.
const (
	RoleAgent    = "agent"
	RoleCustomer = "customer"
	RoleOther    = "other"
	RoleUnknown  = "unknown"
)

// Turn is one contiguous run of same-speaker words.
type Turn struct {
	// SpeakerID is the provider-assigned speaker id (e.g., "speaker_0").
	SpeakerID string

	// Role is one of RoleAgent, RoleCustomer, RoleOther, RoleUnknown.
	Role string

	// StartMS is the start of the turn's first word; EndMS the end of its last.
	StartMS int64
	EndMS   int64

	// Text is the turn's words joined with single spaces, trimmed.
	Text string

	// WordCount is the number of tokens merged into this turn.
	WordCount int
}

// Transcript is the complete grouping result for one recording.
type Transcript struct {
	// Turns is ordered by StartMS, ties broken by original token order.
	Turns []Turn

	// Speakers lists distinct speaker ids in order of first appearance.
	Speakers []string

	// Labels maps each speaker id to its display label ("Speaker 1", ...),
	// numbered by first appearance.
	Labels map[string]string

	// RenderedText is the multi-line human-readable transcript, one line per
	// turn: "[HH:MM:SS.mmm - HH:MM:SS.mmm] Speaker N: text".
	RenderedText string

	// DurationMS is the largest end timestamp seen across all tokens,
	// including empty-text tokens that produced no turn.
	DurationMS int64
}

// Build groups tokens into speaker turns. Tokens are stably sorted by
// (StartMS, EndMS), preserving arrival order on ties. A new turn starts when
// the speaker changes or when the silence between two same-speaker tokens
// reaches gapThresholdMS; a pause of exactly the threshold already splits.
// Non-positive gapThresholdMS selects the default.
//
// Empty input yields an empty Transcript, not an error. Tokens with empty
// text contribute to DurationMS but never to a turn.
func Build(words []stt.WordToken, gapThresholdMS int64) Transcript {
	if gapThresholdMS <= 0 {
		gapThresholdMS = DefaultGapThresholdMS
	}

	sorted := make([]stt.WordToken, len(words))
	copy(sorted, words)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].StartMS != sorted[j].StartMS {
			return sorted[i].StartMS < sorted[j].StartMS
		}
		return sorted[i].EndMS < sorted[j].EndMS
	})

	result := Transcript{Labels: map[string]string{}}
	var (
		curr      *Turn
		currWords []string
	)

	flush := func() {
		if curr == nil {
			return
		}
		curr.Text = strings.Join(currWords, " ")
		curr.WordCount = len(currWords)
		result.Turns = append(result.Turns, *curr)
		curr = nil
		currWords = nil
	}

	for _, w := range sorted {
		speaker := w.SpeakerID
		if speaker == "" {
			speaker = stt.UnknownSpeaker
		}
		if _, seen := result.Labels[speaker]; !seen {
			result.Speakers = append(result.Speakers, speaker)
			result.Labels[speaker] = fmt.Sprintf("Speaker %d", len(result.Speakers))
		}

		if w.EndMS > result.DurationMS {
			result.DurationMS = w.EndMS
		}

		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}

		if curr != nil && (speaker != curr.SpeakerID || w.StartMS-curr.EndMS >= gapThresholdMS) {
			flush()
		}
		if curr == nil {
			curr = &Turn{SpeakerID: speaker, Role: RoleUnknown, StartMS: w.StartMS, EndMS: w.EndMS}
		}
		if w.EndMS > curr.EndMS {
			curr.EndMS = w.EndMS
		}
		currWords = append(currWords, text)
	}
	flush()

	result.RenderedText = Render(result.Turns, result.Labels)
	return result
}

// Render produces the multi-line transcript for the given turns. Speaker ids
// missing from labels render as the raw id.
func Render(ts []Turn, labels map[string]string) string {
	if len(ts) == 0 {
		return ""
	}
	lines := make([]string, 0, len(ts))
	for _, t := range ts {
		label, ok := labels[t.SpeakerID]
		if !ok {
			label = t.SpeakerID
		}
		lines = append(lines, fmt.Sprintf("[%s - %s] %s: %s", FormatMS(t.StartMS), FormatMS(t.EndMS), label, t.Text))
	}
	return strings.Join(lines, "\n")
}

// ApplyAgentLabel marks the turn speaker whose display label matches
// agentLabel as the agent and every other speaker as customer. An empty or
// unmatched label leaves all roles untouched.
func (tr *Transcript) ApplyAgentLabel(agentLabel string) {
	if agentLabel == "" {
		return
	}
	var agentID string
	for id, label := range tr.Labels {
		if label == agentLabel {
			agentID = id
			break
		}
	}
	if agentID == "" {
		return
	}
	for i := range tr.Turns {
		if tr.Turns[i].SpeakerID == agentID {
			tr.Turns[i].Role = RoleAgent
		} else {
			tr.Turns[i].Role = RoleCustomer
		}
	}
}

// FormatMS renders a millisecond offset as zero-padded HH:MM:SS.mmm.
func FormatMS(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	s := ms / 1000
	rem := ms % 1000
	h := s / 3600
	m := (s % 3600) / 60
	sec := s % 60
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, sec, rem)
}
