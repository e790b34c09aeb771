package dxf

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Tag is one group-code/value pair.
type Tag struct {
	Code  int
	Value string
}

// Point is a raw coordinate triple.
type Point [3]float64

// Entity is one graphical object with its tags in file order. INSERT entities
// own their trailing ATTRIBs and POLYLINE entities their VERTEX records.
type Entity struct {
	Type     string
	Tags     []Tag
	Attribs  []*Entity
	Vertices []*Entity
}

// Layer is a LAYER table entry.
type Layer struct {
	Name       string
	Color      int
	Linetype   string
	Lineweight int
	Flags      int
	Plot       bool
}

func (l Layer) Frozen() bool { return l.Flags&1 != 0 }
func (l Layer) Locked() bool { return l.Flags&4 != 0 }

// Off reports a layer switched off, which DXF encodes as a negative color.
func (l Layer) Off() bool { return l.Color < 0 }

// Block is a block definition and the entities it contains.
type Block struct {
	Name      string
	Flags     int
	BasePoint Point
	Entities  []*Entity
}

// Anonymous reports generated blocks (*Model_Space, *D12, hatch patterns...).
func (b Block) Anonymous() bool { return strings.HasPrefix(b.Name, "*") }

// Document is the parsed file.
type Document struct {
	Header   map[string][]Tag
	Layers   []Layer
	Blocks   []Block
	Entities []*Entity
	Warnings []string
}

// Version returns $ACADVER, or "" when absent.
func (d *Document) Version() string { return d.HeaderString("$ACADVER") }

// HeaderString returns the first value of a header variable.
func (d *Document) HeaderString(name string) string {
	tags := d.Header[name]
	if len(tags) == 0 {
		return ""
	}
	return tags[0].Value
}

// HeaderInt returns an integer header variable.
func (d *Document) HeaderInt(name string) (int, bool) {
	tags := d.Header[name]
	if len(tags) == 0 {
		return 0, false
	}
	v, err := strconv.Atoi(tags[0].Value)
	return v, err == nil
}

// HeaderPoint returns a point-valued header variable such as $EXTMIN.
func (d *Document) HeaderPoint(name string) (Point, bool) {
	tags, ok := d.Header[name]
	if !ok {
		return Point{}, false
	}
	e := &Entity{Tags: tags}
	if !e.Has(10) {
		return Point{}, false
	}
	return e.Point(10), true
}

// ModelSpace returns the entities not placed in paper space.
func (d *Document) ModelSpace() []*Entity {
	out := make([]*Entity, 0, len(d.Entities))
	for _, e := range d.Entities {
		if !e.InPaperSpace() {
			out = append(out, e)
		}
	}
	return out
}

// Query returns model-space entities of the given types (case-insensitive).
func (d *Document) Query(types ...string) []*Entity {
	want := make([]string, len(types))
	for i, t := range types {
		want[i] = strings.ToUpper(t)
	}
	var out []*Entity
	for _, e := range d.ModelSpace() {
		if slices.Contains(want, e.Type) {
			out = append(out, e)
		}
	}
	return out
}

func (d *Document) warnf(format string, args ...any) {
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, args...))
}

func (e *Entity) Handle() string     { return e.String(5) }
func (e *Entity) Layer() string      { return e.String(8) }
func (e *Entity) InPaperSpace() bool { return e.Int(67) == 1 }

// XData groups the extended-data tags by registered application. Each group
// 1001 tag opens a run that lasts until the next one; XDATA always trails the
// entity's own tags. Returns nil when the entity carries none.
func (e *Entity) XData() map[string][]Tag {
	var (
		out map[string][]Tag
		app string
	)
	for _, t := range e.Tags {
		switch {
		case t.Code == 1001:
			app = t.Value
			if out == nil {
				out = make(map[string][]Tag)
			}
			if _, ok := out[app]; !ok {
				out[app] = []Tag{}
			}
		case app != "" && t.Code > 1001 && t.Code <= 1071:
			out[app] = append(out[app], t)
		}
	}
	return out
}

// Has reports whether code occurs at least once.
func (e *Entity) Has(code int) bool {
	for _, t := range e.Tags {
		if t.Code == code {
			return true
		}
	}
	return false
}

// String returns the first value for code, or "".
func (e *Entity) String(code int) string {
	for _, t := range e.Tags {
		if t.Code == code {
			return t.Value
		}
	}
	return ""
}

// Strings returns every value for code in order.
func (e *Entity) Strings(code int) []string {
	var out []string
	for _, t := range e.Tags {
		if t.Code == code {
			out = append(out, t.Value)
		}
	}
	return out
}

// Float returns the first value for code as a float, or 0 when absent or malformed.
func (e *Entity) Float(code int) float64 {
	return e.FloatOr(code, 0)
}

// FloatOr is Float with an explicit fallback.
func (e *Entity) FloatOr(code int, fallback float64) float64 {
	for _, t := range e.Tags {
		if t.Code == code {
			if v, err := strconv.ParseFloat(t.Value, 64); err == nil {
				return v
			}
			return fallback
		}
	}
	return fallback
}

// Int returns the first value for code as an int, or 0.
func (e *Entity) Int(code int) int {
	for _, t := range e.Tags {
		if t.Code == code {
			v, _ := strconv.Atoi(t.Value)
			return v
		}
	}
	return 0
}

// Point reads the coordinate triple starting at group code xcode (10, 11, ...).
func (e *Entity) Point(xcode int) Point {
	return Point{e.Float(xcode), e.Float(xcode + 10), e.Float(xcode + 20)}
}

// Points reads a repeated coordinate list: every xcode tag starts a new point
// and the following xcode+10 / xcode+20 tags fill its y and z.
func (e *Entity) Points(xcode int) []Point {
	var out []Point
	for _, t := range e.Tags {
		switch t.Code {
		case xcode:
			out = append(out, Point{parseFloat(t.Value)})
		case xcode + 10:
			if len(out) > 0 {
				out[len(out)-1][1] = parseFloat(t.Value)
			}
		case xcode + 20:
			if len(out) > 0 {
				out[len(out)-1][2] = parseFloat(t.Value)
			}
		}
	}
	return out
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
