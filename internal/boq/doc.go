// Package boq validates normalized block rows and aggregates them into
// bill-of-quantities line items with a per-room rollup.
package boq
