// Package jobs queues drawings for the pipeline and runs them on a fixed
// worker pool.
//
// A job whose failure is transient (a conversion failure or an internal
// error) is run again on the same worker after a backoff delay, up to the
// configured retry budget. Every lifecycle transition is reported to the
// registered Emitters; the job store and the NATS publisher are the usual
// consumers.
package jobs
