// Package batch runs the per-file call-analysis pipeline over a set of
// uploaded recordings: validate, transcribe, correct vocabulary, group into
// speaker turns, analyze, and assemble one result per file.
//
// Files are processed concurrently under a bounded worker pool. A failure in
// one file never aborts its siblings: every input file produces exactly one
// FileResult slot, in input order, carrying either the full analysis or an
// error descriptor.
package batch

import (
	"fmt"

	"github.com/callsight/callsight/pkg/provider/analysis"
)

// ErrorKind classifies a per-file failure so callers can map it onto an HTTP
// status without parsing the message.
type ErrorKind string

const (
	// ErrorKindValidation marks input that never reached the pipeline
	// (unsupported extension, empty payload, oversized file).
	ErrorKindValidation ErrorKind = "validation"

	// ErrorKindTranscription marks a speech-to-text provider failure.
	ErrorKindTranscription ErrorKind = "transcription"

	// ErrorKindAnalysis marks an analysis provider failure, including
	// unrecoverable JSON from the model.
	ErrorKindAnalysis ErrorKind = "analysis"
)

// CountPolicy selects how TotalProcessed is computed for a batch.
type CountPolicy string

const (
	// CountAttempted counts every file the batch accepted, failed or not.
	CountAttempted CountPolicy = "attempted"

	// CountSucceeded counts only files that produced an analysis.
	CountSucceeded CountPolicy = "succeeded"
)

// FileJob is one uploaded recording queued for processing.
type FileJob struct {
	// Filename is the name the client supplied for the upload.
	Filename string

	// Payload is the raw audio bytes.
	Payload []byte

	// Size is the declared upload size in bytes. Zero means "derive from
	// len(Payload)".
	Size int64

	// ContentType is the declared MIME type, if any.
	ContentType string
}

// FileResult is the complete outcome for one input file. Exactly one of
// Analysis and Error is populated.
type FileResult struct {
	Filename string `json:"filename"`

	// Date and Time record when processing of this file finished, not when it
	// was uploaded.
	Date string `json:"date,omitempty"`
	Time string `json:"time,omitempty"`

	// AudioLength is the recording duration as HH:MM:SS.mmm.
	AudioLength string `json:"audio_length,omitempty"`

	// FileSize is the upload size in bytes.
	FileSize int64 `json:"file_size,omitempty"`

	// Transcription is the rendered turn-structured transcript.
	Transcription string `json:"transcription,omitempty"`

	// Analysis is the structured report, present only on success.
	Analysis *analysis.Report `json:"analysis,omitempty"`

	// Error describes the failure, present only on failure.
	Error string `json:"error,omitempty"`

	// ErrorKind classifies Error when it is set.
	ErrorKind ErrorKind `json:"error_kind,omitempty"`
}

// Failed reports whether this file's pipeline ended in an error.
func (r *FileResult) Failed() bool {
	return r.Error != ""
}

// BatchResult aggregates the outcome of one batch request. Results holds one
// entry per input file, in input order.
type BatchResult struct {
	Results        []FileResult `json:"results"`
	TotalProcessed int          `json:"total_processed"`
	Statistics     *Statistics  `json:"statistics,omitempty"`
}

// ValidationError reports batch-level input problems that prevent the batch
// from starting at all. Per-file validation failures are captured in that
// file's FileResult instead.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("batch: invalid request: %s", e.Message)
}
