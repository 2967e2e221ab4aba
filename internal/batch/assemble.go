package batch

import (
	"github.com/callsight/callsight/internal/turns"
	"github.com/callsight/callsight/pkg/provider/analysis"
)

// assemble merges file metadata, the rendered transcript, and the analysis
// report into the final result record. Date and Time reflect the moment the
// file finished processing.
func (o *Orchestrator) assemble(job FileJob, tr turns.Transcript, durationMS int64, report *analysis.Report) FileResult {
	finished := o.now()
	return FileResult{
		Filename:      job.Filename,
		Date:          finished.Format("2006-01-02"),
		Time:          finished.Format("15:04:05"),
		AudioLength:   turns.FormatMS(durationMS),
		FileSize:      job.size(),
		Transcription: tr.RenderedText,
		Analysis:      report,
	}
}
