package batch

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultMaxFileSize caps individual uploads at 16 MiB unless configured
// otherwise.
const DefaultMaxFileSize = 16 << 20

// DefaultAllowedExtensions lists the audio container formats accepted when
// the caller does not configure their own set.
var DefaultAllowedExtensions = []string{".wav", ".mp3", ".m4a", ".flac", ".ogg"}

// validateJob checks one job against the orchestrator's limits. A non-nil
// error becomes that file's ErrorKindValidation result; it never aborts the
// batch.
func (o *Orchestrator) validateJob(job FileJob) error {
	if job.Filename == "" {
		return fmt.Errorf("missing filename")
	}
	ext := strings.ToLower(filepath.Ext(job.Filename))
	if _, ok := o.allowedExts[ext]; !ok {
		return fmt.Errorf("unsupported file type %q", ext)
	}
	if len(job.Payload) == 0 {
		return fmt.Errorf("empty file")
	}
	if size := job.size(); size > o.maxFileSize {
		return fmt.Errorf("file exceeds maximum size of %d bytes", o.maxFileSize)
	}
	return nil
}

// size returns the declared upload size, falling back to the payload length.
func (j FileJob) size() int64 {
	if j.Size > 0 {
		return j.Size
	}
	return int64(len(j.Payload))
}

// extensionSet normalises a list of extensions into a lookup set, lowering
// case and ensuring the leading dot.
func extensionSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = struct{}{}
	}
	return set
}
