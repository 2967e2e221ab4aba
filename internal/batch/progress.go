package batch

// Stage identifies a point in one file's pipeline lifecycle.
type Stage string

const (
	StageQueued       Stage = "queued"
	StageTranscribing Stage = "transcribing"
	StageAnalyzing    Stage = "analyzing"
	StageDone         Stage = "done"
	StageFailed       Stage = "failed"
)

// Event is one per-file lifecycle notification published while a batch runs.
type Event struct {
	// Filename identifies the file the event refers to.
	Filename string `json:"filename"`

	// Index is the file's position in the batch (0-based).
	Index int `json:"index"`

	// Stage is the lifecycle stage the file just entered.
	Stage Stage `json:"stage"`

	// Error carries the failure message when Stage is StageFailed.
	Error string `json:"error,omitempty"`
}

// ProgressSink receives lifecycle events. Publish must be safe for concurrent
// use; events for different files arrive interleaved.
type ProgressSink interface {
	Publish(Event)
}

// SinkFunc adapts a function to the ProgressSink interface.
type SinkFunc func(Event)

// Publish calls f(ev).
func (f SinkFunc) Publish(ev Event) { f(ev) }

// publish forwards an event to the configured sink, if any.
func (o *Orchestrator) publish(ev Event) {
	if o.sink != nil {
		o.sink.Publish(ev)
	}
}
