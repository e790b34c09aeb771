// Package cad holds the canonical in-memory model of one drawing: metadata,
// layer and block tables, entities grouped by kind, aggregate measurements and
// the heuristic spatial analysis.
//
// Entities are a closed set of struct variants implementing EntityRecord.
// Consumers switch on the concrete type rather than probing fields.
package cad
