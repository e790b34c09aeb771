// Package workspace manages the per-job directory trees under a base directory.
//
// Every job owns <base>/<jobID>/{in,out,tmp}. Creation is idempotent so a
// resubmitted job reuses its tree, and nothing is removed on failure; the
// retention sweep is the only deletion path.
package workspace
