package report

import (
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Sink accepts ordered rows per named sheet and persists them to one file.
type Sink interface {
	WriteSheet(name string, header []string, rows [][]any) error
	Save(path string) error
	Close() error
}

// XLSXSink writes an .xlsx workbook through excelize stream writers.
type XLSXSink struct {
	f      *excelize.File
	sheets int
	bold   int
}

func NewXLSXSink() (*XLSXSink, error) {
	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}
	return &XLSXSink{f: f, bold: bold}, nil
}

func (s *XLSXSink) WriteSheet(name string, header []string, rows [][]any) error {
	idx, err := s.f.NewSheet(name)
	if err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	if s.sheets == 0 {
		// Drop the default sheet once a real one exists.
		if err := s.f.DeleteSheet("Sheet1"); err != nil {
			return fmt.Errorf("remove default sheet: %w", err)
		}
		if idx, err = s.f.GetSheetIndex(name); err == nil {
			s.f.SetActiveSheet(idx)
		}
	}
	s.sheets++

	sw, err := s.f.NewStreamWriter(name)
	if err != nil {
		return fmt.Errorf("open sheet %s: %w", name, err)
	}
	if len(header) > 0 {
		widths := columnWidths(header, rows)
		for i, w := range widths {
			if err := sw.SetColWidth(i+1, i+1, w); err != nil {
				return err
			}
		}
		hdr := make([]any, len(header))
		for i, h := range header {
			hdr[i] = h
		}
		if err := sw.SetRow("A1", hdr, excelize.RowOpts{StyleID: s.bold}); err != nil {
			return err
		}
	}
	start := 1
	if len(header) > 0 {
		start = 2
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, start+i)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write %s row %d: %w", name, i+1, err)
		}
	}
	return sw.Flush()
}

func (s *XLSXSink) Save(path string) error {
	if s.sheets == 0 {
		return errors.New("workbook has no sheets")
	}
	return s.f.SaveAs(path)
}

func (s *XLSXSink) Close() error { return s.f.Close() }

// columnWidths sizes columns to their longest value, clamped to [10, 50].
func columnWidths(header []string, rows [][]any) []float64 {
	widths := make([]float64, len(header))
	grow := func(i int, v any) {
		if i >= len(widths) {
			return
		}
		if n := float64(len([]rune(fmt.Sprint(v))) + 2); n > widths[i] {
			widths[i] = n
		}
	}
	for i, h := range header {
		grow(i, h)
	}
	for _, r := range rows {
		for i, v := range r {
			grow(i, v)
		}
	}
	for i := range widths {
		widths[i] = min(max(widths[i], 10), 50)
	}
	return widths
}
