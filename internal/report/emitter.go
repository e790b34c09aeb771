package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/boqbuilder/internal/boq"
	dberrors "git.home.luguber.info/inful/boqbuilder/internal/foundation/errors"
)

// Data is everything the workbook and markdown summary render.
type Data struct {
	JobID         string
	Source        string
	ConverterUsed string
	SizeRatio     float64
	EntityCount   int
	Items         []boq.LineItem
	Rooms         []boq.RoomTotal
	Exceptions    []boq.ExceptionRecord
	Stats         boq.Statistics
	Warnings      []string
	GeneratedAt   time.Time
}

// Failure is the content of error.json.
type Failure struct {
	JobID   string    `json:"job_id"`
	Stage   string    `json:"stage"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

var (
	masterHeader    = []string{"Sl No", "Item Code", "Description", "Size/Spec", "Material", "UOM", "Qty", "Layers", "Category", "Confidence", "Source"}
	roomHeader      = []string{"Room/Zone", "Item", "Description", "Qty"}
	exceptionHeader = []string{"Issue", "Handle", "Block", "Layer", "Item Code", "Description", "Size/Spec", "Material", "Room/Zone"}
)

// WriteWorkbook renders d into sink and saves it at path.
func WriteWorkbook(sink Sink, path string, d Data) error {
	master := make([][]any, 0, len(d.Items))
	for _, li := range d.Items {
		master = append(master, []any{
			li.SeqNo, li.ItemCode, li.Description, li.Size, li.Material, li.UOM, li.Quantity,
			strings.Join(li.Layers, ", "), li.Category, string(li.Confidence), li.Source,
		})
	}
	rooms := make([][]any, 0, len(d.Rooms))
	for _, r := range d.Rooms {
		rooms = append(rooms, []any{r.Room, r.Identity, r.Description, r.Quantity})
	}
	exceptions := make([][]any, 0, len(d.Exceptions))
	for _, e := range d.Exceptions {
		exceptions = append(exceptions, []any{
			string(e.Issue), e.Handle, e.BlockName, e.Layer, e.ItemCode, e.Description, e.Size, e.Material, e.Room,
		})
	}
	summary := [][]any{
		{"Job ID", d.JobID},
		{"Source Drawing", d.Source},
		{"Converter", d.ConverterUsed},
		{"Size Ratio", d.SizeRatio},
		{"Entities", d.EntityCount},
		{"Total BOQ Items", d.Stats.TotalItems},
		{"Distinct Categories", d.Stats.Categories},
		{"High Confidence Items", d.Stats.HighConfidence},
		{"Exceptions", len(d.Exceptions)},
		{"Generated", d.GeneratedAt.UTC().Format(time.RFC3339)},
	}

	for _, s := range []struct {
		name   string
		header []string
		rows   [][]any
	}{
		{SheetMaster, masterHeader, master},
		{SheetRooms, roomHeader, rooms},
		{SheetExceptions, exceptionHeader, exceptions},
		{SheetSummary, []string{"Field", "Value"}, summary},
	} {
		if err := sink.WriteSheet(s.name, s.header, s.rows); err != nil {
			return reportError(err, path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return reportError(err, path)
	}
	if err := sink.Save(path); err != nil {
		return reportError(err, path)
	}
	return nil
}

// WriteJSON writes v as indented JSON, replacing path atomically.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return reportError(err, path)
	}
	return writeFile(path, append(data, '\n'))
}

// WriteFailure records why a job failed.
func WriteFailure(path string, f Failure) error {
	if f.Time.IsZero() {
		f.Time = time.Now().UTC()
	}
	return WriteJSON(path, f)
}

// ReadFailure loads a previously written error.json.
func ReadFailure(path string) (*Failure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f Failure
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &f, nil
}

// WriteMarkdown writes the markdown overview.
func WriteMarkdown(path string, d Data) error {
	return writeFile(path, Markdown(d))
}

// Markdown renders a human-readable job overview.
func Markdown(d Data) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# Bill of Quantities\n\n")
	fmt.Fprintf(&b, "- **Job:** `%s`\n", d.JobID)
	if d.Source != "" {
		fmt.Fprintf(&b, "- **Drawing:** %s\n", mdEscape(filepath.Base(d.Source)))
	}
	if d.ConverterUsed != "" {
		fmt.Fprintf(&b, "- **Converter:** %s (size ratio %.2f)\n", d.ConverterUsed, d.SizeRatio)
	}
	fmt.Fprintf(&b, "- **Entities:** %d\n", d.EntityCount)
	fmt.Fprintf(&b, "- **Items:** %d in %d categories, %d high confidence\n", d.Stats.TotalItems, d.Stats.Categories, d.Stats.HighConfidence)
	fmt.Fprintf(&b, "- **Exceptions:** %d\n\n", len(d.Exceptions))

	b.WriteString("## Line items\n\n")
	if len(d.Items) == 0 {
		b.WriteString("No block instances were found.\n\n")
	} else {
		b.WriteString("| # | Item | Description | Qty | UOM | Category | Confidence |\n")
		b.WriteString("|---|---|---|---:|---|---|---|\n")
		for _, li := range d.Items {
			item := li.ItemCode
			if item == "" {
				item = strings.TrimPrefix(li.Source, "BLOCK:")
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %g | %s | %s | %s |\n",
				li.SeqNo, mdEscape(item), mdEscape(li.Description), li.Quantity, mdEscape(li.UOM), mdEscape(li.Category), li.Confidence)
		}
		b.WriteString("\n")
	}

	if len(d.Exceptions) > 0 {
		b.WriteString("## Exceptions\n\n")
		for _, e := range d.Exceptions {
			fmt.Fprintf(&b, "- %s: handle `%s` on layer %s\n", e.Issue, e.Handle, mdEscape(e.Layer))
		}
		b.WriteString("\n")
	}
	if len(d.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range d.Warnings {
			fmt.Fprintf(&b, "- %s\n", mdEscape(w))
		}
		b.WriteString("\n")
	}
	return b.Bytes()
}

var mdReplacer = strings.NewReplacer("|", `\|`, "*", `\*`, "_", `\_`, "`", "'", "<", "&lt;", "\n", " ")

func mdEscape(s string) string { return mdReplacer.Replace(s) }

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return reportError(err, path)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return reportError(err, path)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return reportError(err, path)
	}
	return nil
}

func reportError(err error, path string) error {
	return dberrors.WrapError(err, dberrors.CategoryReport, "cannot write report artifact").
		Retryable().
		WithContext("path", path).
		Build()
}
