package pipeline

import (
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/boqbuilder/internal/cad"
	"git.home.luguber.info/inful/boqbuilder/internal/convert"
)

// Status is the terminal outcome of a run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Artifact names used as keys in Result.Artifacts.
const (
	ArtifactWorkbook    = "workbook"
	ArtifactSummaryJSON = "summary_json"
	ArtifactSummaryMD   = "summary_md"
	ArtifactError       = "error"
	ArtifactDrawing     = "drawing_json"
)

// Job is one request to process a drawing.
type Job struct {
	ID          string
	Input       string
	CatalogPath string // overrides the orchestrator default when set
	Attempt     int
}

// FailureInfo describes why a run ended in StateFailed.
type FailureInfo struct {
	Stage   State     `json:"stage"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// Result is the durable record of one run.
type Result struct {
	JobID   string `json:"job_id"`
	Status  Status `json:"status"`
	State   State  `json:"state"`
	Attempt int    `json:"attempt,omitempty"`
	Input   string `json:"input"`

	ConverterUsed string            `json:"converter_used,omitempty"`
	SizeRatio     float64           `json:"size_ratio,omitempty"`
	Conversion    *convert.Metadata `json:"conversion,omitempty"`

	DrawingVersion string                 `json:"drawing_version,omitempty"`
	Units          string                 `json:"units,omitempty"`
	EntityCount    int                    `json:"entity_count"`
	EntityCounts   map[cad.EntityKind]int `json:"entity_counts,omitempty"`
	Measurements   map[string]float64     `json:"measurements,omitempty"`
	RoomCount      int                    `json:"room_count"`
	WallCount      int                    `json:"wall_count"`
	OpeningCount   int                    `json:"opening_count"`

	CatalogEntries      int `json:"catalog_entries"`
	RowCount            int `json:"row_count"`
	LineItemCount       int `json:"line_item_count"`
	CategoryCount       int `json:"category_count"`
	HighConfidenceCount int `json:"high_confidence_count"`
	ExceptionCount      int `json:"exception_count"`

	Warnings       []string          `json:"warnings,omitempty"`
	Artifacts      map[string]string `json:"artifacts,omitempty"`
	StageDurations map[State]int64   `json:"stage_durations_ms,omitempty"`
	Failure        *FailureInfo      `json:"failure,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Succeeded reports whether the run completed.
func (r *Result) Succeeded() bool { return r != nil && r.Status == StatusSuccess }

// NewJobID returns a fresh random job identifier.
func NewJobID() string { return uuid.NewString() }
