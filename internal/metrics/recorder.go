package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultWarning ResultLabel = "warning"
	ResultFatal   ResultLabel = "fatal"
)

// JobOutcomeLabel is the terminal status of one pipeline run.
type JobOutcomeLabel string

const (
	JobOutcomeSucceeded JobOutcomeLabel = "succeeded"
	JobOutcomeFailed    JobOutcomeLabel = "failed"
)

// ConverterResultLabel is the outcome of a single backend attempt.
type ConverterResultLabel string

const (
	ConverterSuccess ConverterResultLabel = "success"
	ConverterFailed  ConverterResultLabel = "failed"
	ConverterInvalid ConverterResultLabel = "invalid"
	ConverterTimeout ConverterResultLabel = "timeout"
)

// Recorder is the set of observability hooks used across the pipeline.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveJobDuration(d time.Duration)
	IncJobOutcome(outcome JobOutcomeLabel)
	IncJobRetry()
	ObserveConversion(backend string, d time.Duration, result ConverterResultLabel)
	AddEntities(kind string, n int)
	SetQueueDepth(n int)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration)                    {}
func (NoopRecorder) IncStageResult(string, ResultLabel)                            {}
func (NoopRecorder) ObserveJobDuration(time.Duration)                              {}
func (NoopRecorder) IncJobOutcome(JobOutcomeLabel)                                 {}
func (NoopRecorder) IncJobRetry()                                                  {}
func (NoopRecorder) ObserveConversion(string, time.Duration, ConverterResultLabel) {}
func (NoopRecorder) AddEntities(string, int)                                       {}
func (NoopRecorder) SetQueueDepth(int)                                             {}
