// Package convert turns a proprietary binary drawing into an ASCII DXF
// interchange file by trying external converter backends in priority order.
//
// Each backend is probed independently and invoked with a bounded timeout.
// The first output that exists, has a plausible size relative to the input and
// parses with at least one model-space entity wins. Failures of earlier
// attempts are kept in Metadata even when a later backend succeeds.
package convert
