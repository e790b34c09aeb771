// Package metrics defines the Recorder used by the conversion pipeline and job queue.
//
// Components receive a Recorder by injection and default to NoopRecorder, so
// call sites never check for nil. PrometheusRecorder registers its collectors on
// a caller-supplied registry which HTTPHandler exposes for scraping.
package metrics
