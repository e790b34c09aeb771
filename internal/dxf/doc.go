// Package dxf reads ASCII DXF interchange files into a generic document of
// tagged entities.
//
// The reader works in recover mode: malformed group codes, truncated pairs,
// orphaned sequence markers, unknown sections and a missing EOF are recorded
// in Document.Warnings instead of failing the read. Only input that is not an
// ASCII DXF at all is rejected.
package dxf
