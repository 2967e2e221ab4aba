package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/callsight/callsight/internal/batch"
	"github.com/callsight/callsight/internal/observe"
)

// uploadFieldName is the multipart form field carrying audio files. The field
// may repeat; each occurrence becomes one batch job.
const uploadFieldName = "files"

// analyzeResponse is the POST /analyze body: the batch outcome plus, when
// archiving is enabled, the archive record id per successfully processed
// filename.
type analyzeResponse struct {
	*batch.BatchResult
	ReportIDs map[string]string `json:"report_ids,omitempty"`
}

// handleAnalyze accepts a multipart upload, runs the batch pipeline, archives
// successful results, and returns one result per uploaded file.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := observe.Logger(ctx)

	if s.runner == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: "no STT or analysis provider configured",
		})
		return
	}

	jobs, err := parseUploads(r, s.maxRequestBytes)
	if err != nil {
		log.Warn("rejected upload", "err", err)
		writeError(w, err)
		return
	}

	res, err := s.runner.Run(ctx, jobs)
	if err != nil {
		log.Error("batch failed", "files", len(jobs), "err", err)
		writeError(w, err)
		return
	}

	resp := analyzeResponse{BatchResult: res}
	if s.archiver != nil {
		resp.ReportIDs = s.archiveResults(r, res.Results)
	}

	writeJSON(w, http.StatusOK, resp)
}

// archiveResults persists every successful result and returns filename→id.
// Archive failures degrade to a warning; the client still gets its analysis.
func (s *Server) archiveResults(r *http.Request, results []batch.FileResult) map[string]string {
	ctx := r.Context()
	log := observe.Logger(ctx)

	ids := make(map[string]string)
	for _, res := range results {
		if res.Failed() {
			continue
		}
		id, err := s.archiver.Archive(ctx, res)
		if err != nil {
			log.Warn("failed to archive result", "file", res.Filename, "err", err)
			continue
		}
		ids[res.Filename] = id
	}
	if len(ids) == 0 {
		return nil
	}
	return ids
}

// parseUploads streams the multipart body into one [batch.FileJob] per
// "files" part. Unknown fields are skipped. Returns a [batch.ValidationError]
// for malformed or empty requests.
func parseUploads(r *http.Request, maxBytes int64) ([]batch.FileJob, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, &batch.ValidationError{
			Message: fmt.Sprintf("expected multipart/form-data: %v", err),
		}
	}

	var jobs []batch.FileJob
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, &batch.ValidationError{
					Message: fmt.Sprintf("request body exceeds %d bytes", maxBytes),
				}
			}
			return nil, &batch.ValidationError{
				Message: fmt.Sprintf("malformed multipart body: %v", err),
			}
		}
		if part.FormName() != uploadFieldName {
			part.Close()
			continue
		}

		payload, err := io.ReadAll(part)
		part.Close()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, &batch.ValidationError{
					Message: fmt.Sprintf("request body exceeds %d bytes", maxBytes),
				}
			}
			return nil, &batch.ValidationError{
				Message: fmt.Sprintf("read part %q: %v", part.FileName(), err),
			}
		}

		jobs = append(jobs, batch.FileJob{
			Filename:    part.FileName(),
			Payload:     payload,
			Size:        int64(len(payload)),
			ContentType: partContentType(part.Header.Get("Content-Type")),
		})
	}

	if len(jobs) == 0 {
		return nil, &batch.ValidationError{Message: "no files supplied"}
	}
	return jobs, nil
}

// partContentType strips parameters from a part's Content-Type header.
// Returns "" for absent or unparseable values.
func partContentType(header string) string {
	if header == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return mediaType
}
