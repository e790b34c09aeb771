// Package pipeline runs one drawing through conversion, extraction,
// normalization, aggregation and reporting.
//
// A job moves one way through
//
//	queued → converting → extracting → normalizing → aggregating → reporting → succeeded
//
// and may enter failed from any non-terminal state. There is no retry within
// a run; the job queue decides whether a failed job is resubmitted.
package pipeline
