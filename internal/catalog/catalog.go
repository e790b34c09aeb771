// Package catalog maps raw block names to standardized item records and
// normalizes block instances into BOQ rows.
package catalog

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/boqbuilder/internal/cad"
	dberrors "git.home.luguber.info/inful/boqbuilder/internal/foundation/errors"
)

// Entry is one standardized item keyed by raw block name.
type Entry struct {
	RawBlockName string `yaml:"raw_block_name" json:"raw_block_name"`
	ItemCode     string `yaml:"std_item_code" json:"std_item_code"`
	Description  string `yaml:"std_desc" json:"std_desc"`
	Size         string `yaml:"std_size" json:"std_size"`
	Material     string `yaml:"std_material" json:"std_material"`
	Category     string `yaml:"std_category" json:"std_category"`
	UOM          string `yaml:"std_uom" json:"std_uom"`
}

// Catalog is an immutable snapshot built once per job.
type Catalog struct {
	source  string
	entries map[string]Entry
}

// Empty returns a catalog with no entries.
func Empty() *Catalog {
	return &Catalog{entries: map[string]Entry{}}
}

// New indexes entries by upper-cased raw block name. Later duplicates replace earlier ones.
func New(entries []Entry) *Catalog {
	c := Empty()
	for _, e := range entries {
		key := cad.UpperName(e.RawBlockName)
		if key == "" {
			continue
		}
		c.entries[key] = trimEntry(e)
	}
	return c
}

// Load reads a .csv or .yaml/.yml catalog. A missing file yields an empty
// catalog; an unreadable or malformed one is a catalog error.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Empty(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			c := Empty()
			c.source = path
			return c, nil
		}
		return nil, dberrors.WrapError(err, dberrors.CategoryCatalog, "cannot read catalog").
			WithContext("path", path).
			Build()
	}

	var entries []Entry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		entries, err = parseCSV(bytes.NewReader(data))
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &entries)
	default:
		err = fmt.Errorf("unsupported catalog format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, dberrors.WrapError(err, dberrors.CategoryCatalog, "malformed catalog").
			WithContext("path", path).
			Build()
	}
	c := New(entries)
	c.source = path
	return c, nil
}

var csvColumns = map[string]func(*Entry, string){
	"raw_block_name": func(e *Entry, v string) { e.RawBlockName = v },
	"std_item_code":  func(e *Entry, v string) { e.ItemCode = v },
	"std_desc":       func(e *Entry, v string) { e.Description = v },
	"std_size":       func(e *Entry, v string) { e.Size = v },
	"std_material":   func(e *Entry, v string) { e.Material = v },
	"std_category":   func(e *Entry, v string) { e.Category = v },
	"std_uom":        func(e *Entry, v string) { e.UOM = v },
}

func parseCSV(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	setters := make([]func(*Entry, string), len(header))
	found := false
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
		setters[i] = csvColumns[h]
		if h == "raw_block_name" {
			found = true
		}
	}
	if !found {
		return nil, errors.New("missing raw_block_name column")
	}

	var out []Entry
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		var e Entry
		for i, v := range rec {
			if i < len(setters) && setters[i] != nil {
				setters[i](&e, v)
			}
		}
		out = append(out, e)
	}
}

func trimEntry(e Entry) Entry {
	e.RawBlockName = strings.TrimSpace(e.RawBlockName)
	e.ItemCode = strings.TrimSpace(e.ItemCode)
	e.Description = strings.TrimSpace(e.Description)
	e.Size = strings.TrimSpace(e.Size)
	e.Material = strings.TrimSpace(e.Material)
	e.Category = strings.TrimSpace(e.Category)
	e.UOM = strings.TrimSpace(e.UOM)
	return e
}

// Lookup finds the entry for a raw block name, ignoring case.
func (c *Catalog) Lookup(blockName string) (Entry, bool) {
	if c == nil {
		return Entry{}, false
	}
	e, ok := c.entries[cad.UpperName(blockName)]
	return e, ok
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.entries)
}

// Source is the path the catalog was loaded from, if any.
func (c *Catalog) Source() string {
	if c == nil {
		return ""
	}
	return c.source
}

// Entries returns all entries ordered by key.
func (c *Catalog) Entries() []Entry {
	if c == nil {
		return nil
	}
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]Entry, len(keys))
	for i, k := range keys {
		out[i] = c.entries[k]
	}
	return out
}
