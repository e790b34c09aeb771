// Package dxfgen builds small ASCII DXF drawings for tests.
package dxfgen

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// Builder accumulates header, tables, blocks and entities and renders them as DXF.
type Builder struct {
	version  string
	units    int
	extents  *[2][3]float64
	layers   []string
	blocks   []string
	entities []string
	handle   int
}

// New returns a builder for an AutoCAD 2018 drawing in millimeters.
func New() *Builder {
	return &Builder{version: "AC1032", units: 4, handle: 0x100}
}

func (b *Builder) nextHandle() string {
	b.handle++
	return fmt.Sprintf("%X", b.handle)
}

func pairs(kv ...any) string {
	var sb strings.Builder
	for i := 0; i+1 < len(kv); i += 2 {
		fmt.Fprintf(&sb, "%v\n%v\n", kv[i], kv[i+1])
	}
	return sb.String()
}

func (b *Builder) Version(acadver string) *Builder { b.version = acadver; return b }
func (b *Builder) Units(code int) *Builder         { b.units = code; return b }

func (b *Builder) Extents(minX, minY, maxX, maxY float64) *Builder {
	b.extents = &[2][3]float64{{minX, minY, 0}, {maxX, maxY, 0}}
	return b
}

// Layer adds a LAYER table entry; a negative color marks it off.
func (b *Builder) Layer(name string, color int) *Builder {
	b.layers = append(b.layers, pairs(0, "LAYER", 2, name, 70, 0, 62, color, 6, "CONTINUOUS"))
	return b
}

// Block adds a block definition with one ATTDEF per tag.
func (b *Builder) Block(name string, attdefTags ...string) *Builder {
	var sb strings.Builder
	sb.WriteString(pairs(0, "BLOCK", 5, b.nextHandle(), 8, "0", 2, name, 70, 2, 10, 0.0, 20, 0.0, 30, 0.0))
	sb.WriteString(pairs(0, "LINE", 5, b.nextHandle(), 8, "0", 10, 0.0, 20, 0.0, 30, 0.0, 11, 1.0, 21, 0.0, 31, 0.0))
	for _, tag := range attdefTags {
		sb.WriteString(pairs(0, "ATTDEF", 5, b.nextHandle(), 8, "0", 10, 0.0, 20, 0.0, 1, "", 3, tag+"?", 2, tag, 70, 0))
	}
	sb.WriteString(pairs(0, "ENDBLK", 5, b.nextHandle(), 8, "0"))
	b.blocks = append(b.blocks, sb.String())
	return b
}

// Insert places block on layer with optional attributes, emitted in sorted tag order.
func (b *Builder) Insert(layer, block string, x, y float64, attrs map[string]string) *Builder {
	var sb strings.Builder
	head := []any{0, "INSERT", 5, b.nextHandle(), 8, layer}
	if len(attrs) > 0 {
		head = append(head, 66, 1)
	}
	head = append(head, 2, block, 10, x, 20, y, 30, 0.0, 41, 1.0, 42, 1.0, 43, 1.0, 50, 0.0)
	sb.WriteString(pairs(head...))
	if len(attrs) > 0 {
		tags := make([]string, 0, len(attrs))
		for tag := range attrs {
			tags = append(tags, tag)
		}
		sort.Strings(tags)
		for _, tag := range tags {
			sb.WriteString(pairs(0, "ATTRIB", 5, b.nextHandle(), 8, layer, 10, x, 20, y, 30, 0.0, 1, attrs[tag], 2, tag, 70, 0))
		}
		sb.WriteString(pairs(0, "SEQEND", 5, b.nextHandle(), 8, layer))
	}
	b.entities = append(b.entities, sb.String())
	return b
}

func (b *Builder) Line(layer string, x1, y1, x2, y2 float64) *Builder {
	b.entities = append(b.entities, pairs(0, "LINE", 5, b.nextHandle(), 8, layer, 10, x1, 20, y1, 30, 0.0, 11, x2, 21, y2, 31, 0.0))
	return b
}

// LWPolyline adds a 2D lightweight polyline.
func (b *Builder) LWPolyline(layer string, closed bool, pts ...[2]float64) *Builder {
	flags := 0
	if closed {
		flags = 1
	}
	kv := []any{0, "LWPOLYLINE", 5, b.nextHandle(), 8, layer, 90, len(pts), 70, flags, 43, 0.0}
	for _, p := range pts {
		kv = append(kv, 10, p[0], 20, p[1])
	}
	b.entities = append(b.entities, pairs(kv...))
	return b
}

// Polyline adds a heavy 3D polyline with VERTEX records.
func (b *Builder) Polyline(layer string, closed bool, pts ...[3]float64) *Builder {
	flags := 8
	if closed {
		flags |= 1
	}
	var sb strings.Builder
	sb.WriteString(pairs(0, "POLYLINE", 5, b.nextHandle(), 8, layer, 66, 1, 10, 0.0, 20, 0.0, 30, 0.0, 70, flags))
	for _, p := range pts {
		sb.WriteString(pairs(0, "VERTEX", 5, b.nextHandle(), 8, layer, 10, p[0], 20, p[1], 30, p[2], 70, 32))
	}
	sb.WriteString(pairs(0, "SEQEND", 5, b.nextHandle(), 8, layer))
	b.entities = append(b.entities, sb.String())
	return b
}

func (b *Builder) Arc(layer string, cx, cy, r, start, end float64) *Builder {
	b.entities = append(b.entities, pairs(0, "ARC", 5, b.nextHandle(), 8, layer, 10, cx, 20, cy, 30, 0.0, 40, r, 50, start, 51, end))
	return b
}

func (b *Builder) Circle(layer string, cx, cy, r float64) *Builder {
	b.entities = append(b.entities, pairs(0, "CIRCLE", 5, b.nextHandle(), 8, layer, 10, cx, 20, cy, 30, 0.0, 40, r))
	return b
}

func (b *Builder) Text(layer, value string) *Builder {
	b.entities = append(b.entities, pairs(0, "TEXT", 5, b.nextHandle(), 8, layer, 10, 0.0, 20, 0.0, 30, 0.0, 40, 2.5, 1, value, 7, "STANDARD"))
	return b
}

func (b *Builder) MText(layer, value string) *Builder {
	b.entities = append(b.entities, pairs(0, "MTEXT", 5, b.nextHandle(), 8, layer, 10, 0.0, 20, 0.0, 30, 0.0, 40, 2.5, 41, 50.0, 1, value))
	return b
}

func (b *Builder) Dimension(layer string, measurement float64) *Builder {
	b.entities = append(b.entities, pairs(0, "DIMENSION", 5, b.nextHandle(), 8, layer, 10, 0.0, 20, 0.0, 30, 0.0,
		11, measurement/2, 21, 1.0, 31, 0.0, 70, 32, 1, "", 42, measurement))
	return b
}

// Hatch adds a solid hatch with one polyline boundary path.
func (b *Builder) Hatch(layer string, pts ...[2]float64) *Builder {
	kv := []any{0, "HATCH", 5, b.nextHandle(), 8, layer, 10, 0.0, 20, 0.0, 30, 0.0, 210, 0.0, 220, 0.0, 230, 1.0,
		2, "SOLID", 70, 1, 71, 0, 91, 1, 92, 2, 72, 0, 73, 1, 93, len(pts)}
	for _, p := range pts {
		kv = append(kv, 10, p[0], 20, p[1])
	}
	kv = append(kv, 97, 0, 75, 0, 76, 1, 98, 1, 10, 0.5, 20, 0.5)
	b.entities = append(b.entities, pairs(kv...))
	return b
}

// Raw appends literal group-code/value lines to the ENTITIES section.
func (b *Builder) Raw(lines ...string) *Builder {
	b.entities = append(b.entities, strings.Join(lines, "\n")+"\n")
	return b
}

// String renders the complete document.
func (b *Builder) String() string {
	var sb strings.Builder
	sb.WriteString(pairs(0, "SECTION", 2, "HEADER", 9, "$ACADVER", 1, b.version, 9, "$INSUNITS", 70, b.units, 9, "$MEASUREMENT", 70, 1))
	if b.extents != nil {
		sb.WriteString(pairs(9, "$EXTMIN", 10, b.extents[0][0], 20, b.extents[0][1], 30, 0.0,
			9, "$EXTMAX", 10, b.extents[1][0], 20, b.extents[1][1], 30, 0.0))
	}
	sb.WriteString(pairs(0, "ENDSEC"))

	sb.WriteString(pairs(0, "SECTION", 2, "TABLES", 0, "TABLE", 2, "LAYER", 70, len(b.layers)+1))
	sb.WriteString(pairs(0, "LAYER", 2, "0", 70, 0, 62, 7, 6, "CONTINUOUS"))
	for _, l := range b.layers {
		sb.WriteString(l)
	}
	sb.WriteString(pairs(0, "ENDTAB", 0, "ENDSEC"))

	sb.WriteString(pairs(0, "SECTION", 2, "BLOCKS"))
	for _, blk := range b.blocks {
		sb.WriteString(blk)
	}
	sb.WriteString(pairs(0, "ENDSEC"))

	sb.WriteString(pairs(0, "SECTION", 2, "ENTITIES"))
	for _, e := range b.entities {
		sb.WriteString(e)
	}
	sb.WriteString(pairs(0, "ENDSEC", 0, "EOF"))
	return sb.String()
}

// WriteFile renders the document into dir/name and returns the path.
func (b *Builder) WriteFile(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		t.Fatalf("write dxf fixture: %v", err)
	}
	return path
}
