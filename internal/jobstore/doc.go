// Package jobstore keeps the durable record of jobs.
//
// Queue lifecycle events are appended to an SQLite table and folded into an
// in-memory projection of per-job status records. On startup the projection
// is rebuilt from the stored events, so job status survives restarts.
package jobstore
