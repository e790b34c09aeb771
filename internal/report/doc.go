// Package report writes a job's artifacts: the BOQ workbook, the JSON and
// markdown summaries, and the failure record.
package report

// Artifact file names inside a job's out/ directory.
const (
	WorkbookFile    = "BOQ_Output.xlsx"
	SummaryJSONFile = "summary.json"
	SummaryMDFile   = "summary.md"
	FailureFile     = "error.json"
	DrawingFile     = "drawing.json" // extraction dump, kept in tmp/
)

// Sheet names in the workbook, in order.
const (
	SheetMaster     = "BOQ_Master"
	SheetRooms      = "Room_Wise"
	SheetExceptions = "Unmapped_Exceptions"
	SheetSummary    = "Summary"
)
