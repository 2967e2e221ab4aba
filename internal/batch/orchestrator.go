package batch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/callsight/callsight/internal/observe"
	"github.com/callsight/callsight/internal/turns"
	"github.com/callsight/callsight/internal/vocab"
	"github.com/callsight/callsight/pkg/provider/analysis"
	"github.com/callsight/callsight/pkg/provider/stt"
)

const (
	// DefaultWorkers bounds concurrent per-file pipelines.
	DefaultWorkers = 4

	// DefaultCallTimeout bounds each transcription and each analysis call.
	DefaultCallTimeout = 120 * time.Second
)

// Option is a functional option for configuring the Orchestrator.
type Option func(*Orchestrator)

// WithWorkers sets the maximum number of files processed concurrently.
// Non-positive values select the default.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithGapThreshold sets the same-speaker silence (in milliseconds) that
// starts a new turn. Non-positive values select the turns package default.
func WithGapThreshold(ms int64) Option {
	return func(o *Orchestrator) {
		o.gapThresholdMS = ms
	}
}

// WithCallTimeout bounds each individual provider call. Zero disables the
// per-call timeout and leaves cancellation to the batch context.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.callTimeout = d
	}
}

// WithCountPolicy selects how TotalProcessed is computed.
func WithCountPolicy(p CountPolicy) Option {
	return func(o *Orchestrator) {
		if p == CountSucceeded {
			o.countPolicy = CountSucceeded
		} else {
			o.countPolicy = CountAttempted
		}
	}
}

// WithMaxFileSize caps individual uploads in bytes. Non-positive values
// select the default.
func WithMaxFileSize(n int64) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxFileSize = n
		}
	}
}

// WithAllowedExtensions replaces the accepted file extensions. Entries are
// case-insensitive; the leading dot is optional.
func WithAllowedExtensions(exts []string) Option {
	return func(o *Orchestrator) {
		if len(exts) > 0 {
			o.allowedExts = extensionSet(exts)
		}
	}
}

// WithCorrector applies a vocabulary corrector to word tokens before turn
// grouping.
func WithCorrector(c *vocab.Corrector) Option {
	return func(o *Orchestrator) {
		o.corrector = c
	}
}

// WithLanguage forwards a language hint to the transcription provider.
func WithLanguage(lang string) Option {
	return func(o *Orchestrator) {
		o.language = lang
	}
}

// WithMetrics enables instrument recording on the given Metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithProgressSink publishes per-file lifecycle events to the sink.
func WithProgressSink(s ProgressSink) Option {
	return func(o *Orchestrator) {
		o.sink = s
	}
}

// WithProviderNames sets the provider names used in metric attributes.
func WithProviderNames(sttName, analysisName string) Option {
	return func(o *Orchestrator) {
		if sttName != "" {
			o.sttName = sttName
		}
		if analysisName != "" {
			o.analysisName = analysisName
		}
	}
}

// WithClock overrides the time source used for result timestamps. Tests use
// this to pin Date and Time fields.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator fans the per-file pipeline out over a batch of uploads.
type Orchestrator struct {
	stt      stt.Provider
	analysis analysis.Provider

	corrector *vocab.Corrector
	metrics   *observe.Metrics
	sink      ProgressSink

	workers        int
	gapThresholdMS int64
	callTimeout    time.Duration
	countPolicy    CountPolicy
	maxFileSize    int64
	allowedExts    map[string]struct{}
	language       string
	sttName        string
	analysisName   string
	now            func() time.Time
}

// New creates an Orchestrator over the given providers.
func New(sttProvider stt.Provider, analysisProvider analysis.Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		stt:          sttProvider,
		analysis:     analysisProvider,
		workers:      DefaultWorkers,
		callTimeout:  DefaultCallTimeout,
		countPolicy:  CountAttempted,
		maxFileSize:  DefaultMaxFileSize,
		allowedExts:  extensionSet(DefaultAllowedExtensions),
		sttName:      "stt",
		analysisName: "analysis",
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run processes every job concurrently and returns one result per job, in
// input order. Per-file failures are recorded in their result slot; Run only
// returns an error for an invalid batch or a cancelled context.
func (o *Orchestrator) Run(ctx context.Context, jobs []FileJob) (*BatchResult, error) {
	if len(jobs) == 0 {
		return nil, &ValidationError{Message: "no files supplied"}
	}

	results := make([]FileResult, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = o.processFile(gctx, i, jobs[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch: %w", err)
	}

	total := 0
	for i := range results {
		if o.countPolicy == CountAttempted || !results[i].Failed() {
			total++
		}
	}

	return &BatchResult{
		Results:        results,
		TotalProcessed: total,
		Statistics:     computeStatistics(results),
	}, nil
}

// processFile runs the full pipeline for one job and always produces a
// result, successful or not.
func (o *Orchestrator) processFile(ctx context.Context, index int, job FileJob) FileResult {
	log := observe.Logger(ctx).With("filename", job.Filename)
	o.publish(Event{Filename: job.Filename, Index: index, Stage: StageQueued})

	if err := o.validateJob(job); err != nil {
		log.Warn("file rejected", "error", err)
		return o.fail(ctx, index, job, ErrorKindValidation, err)
	}

	if o.metrics != nil {
		o.metrics.ActiveJobs.Add(ctx, 1)
		defer o.metrics.ActiveJobs.Add(ctx, -1)
	}
	fileStart := o.now()

	o.publish(Event{Filename: job.Filename, Index: index, Stage: StageTranscribing})
	res, err := o.transcribe(ctx, job)
	if err != nil {
		log.Error("transcription failed", "error", err)
		return o.fail(ctx, index, job, ErrorKindTranscription, err)
	}

	words := res.Words
	if o.corrector != nil {
		var corrections []vocab.Correction
		words, corrections = o.corrector.Apply(words)
		for _, c := range corrections {
			log.Debug("vocabulary correction",
				"original", c.Original, "corrected", c.Corrected, "score", c.Score)
		}
	}

	tr := turns.Build(words, o.gapThresholdMS)
	durationMS := tr.DurationMS
	if res.DurationMS > durationMS {
		durationMS = res.DurationMS
	}

	o.publish(Event{Filename: job.Filename, Index: index, Stage: StageAnalyzing})
	report, err := o.analyze(ctx, job, tr, durationMS)
	if err != nil {
		log.Error("analysis failed", "error", err)
		return o.fail(ctx, index, job, ErrorKindAnalysis, err)
	}

	if report.AgentSpeakerLabel != nil {
		tr.ApplyAgentLabel(*report.AgentSpeakerLabel)
	}

	if o.metrics != nil {
		o.metrics.FileDuration.Record(ctx, o.now().Sub(fileStart).Seconds())
		o.metrics.RecordFileProcessed(ctx, "ok")
	}
	log.Info("file processed",
		"turns", len(tr.Turns), "speakers", len(tr.Speakers), "duration", turns.FormatMS(durationMS))

	o.publish(Event{Filename: job.Filename, Index: index, Stage: StageDone})
	return o.assemble(job, tr, durationMS, report)
}

// transcribe calls the STT provider under the per-call timeout and records
// provider metrics.
func (o *Orchestrator) transcribe(ctx context.Context, job FileJob) (*stt.Result, error) {
	callCtx, cancel := o.callContext(ctx)
	defer cancel()

	start := o.now()
	res, err := o.stt.Transcribe(callCtx, stt.Request{
		Audio:       job.Payload,
		Filename:    job.Filename,
		ContentType: job.ContentType,
		Language:    o.language,
		Diarize:     true,
	})
	if o.metrics != nil {
		o.metrics.STTDuration.Record(ctx, o.now().Sub(start).Seconds())
		o.metrics.RecordProviderRequest(ctx, o.sttName, "stt", statusOf(err))
		if err != nil {
			o.metrics.RecordProviderError(ctx, o.sttName, "stt")
		}
	}
	return res, err
}

// analyze calls the analysis provider under the per-call timeout and records
// provider metrics.
func (o *Orchestrator) analyze(ctx context.Context, job FileJob, tr turns.Transcript, durationMS int64) (*analysis.Report, error) {
	callCtx, cancel := o.callContext(ctx)
	defer cancel()

	start := o.now()
	report, err := o.analysis.Analyze(callCtx, analysis.Request{
		Transcript: tr.RenderedText,
		Filename:   job.Filename,
		Duration:   turns.FormatMS(durationMS),
	})
	if o.metrics != nil {
		o.metrics.AnalysisDuration.Record(ctx, o.now().Sub(start).Seconds())
		o.metrics.RecordProviderRequest(ctx, o.analysisName, "analysis", statusOf(err))
		if err != nil {
			o.metrics.RecordProviderError(ctx, o.analysisName, "analysis")
		}
	}
	return report, err
}

// fail records the per-file failure and builds the error result slot.
func (o *Orchestrator) fail(ctx context.Context, index int, job FileJob, kind ErrorKind, err error) FileResult {
	if o.metrics != nil {
		o.metrics.RecordFileProcessed(ctx, "error")
	}
	o.publish(Event{Filename: job.Filename, Index: index, Stage: StageFailed, Error: err.Error()})
	return FileResult{
		Filename:  job.Filename,
		Error:     err.Error(),
		ErrorKind: kind,
	}
}

// callContext derives a per-call context honouring the configured timeout.
func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, o.callTimeout)
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
