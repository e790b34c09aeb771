package dxf

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/boqbuilder/internal/testutil/dxfgen"
)

func TestReadDocument(t *testing.T) {
	src := dxfgen.New().
		Units(6).
		Extents(0, 0, 10, 5).
		Layer("A-DOOR", 3).
		Layer("A-HIDDEN", -1).
		Block("DOOR-900", "ITEM_CODE", "DESC").
		Insert("A-DOOR", "DOOR-900", 1, 2, map[string]string{"ITEM_CODE": "D-01", "DESC": "Flush door"}).
		Polyline("A-WALL", true, [3]float64{0, 0, 0}, [3]float64{4, 0, 0}, [3]float64{4, 3, 0}).
		Line("A-WALL", 0, 0, 3, 4).
		String()

	doc, err := Read(strings.NewReader(src))
	require.NoError(t, err)
	assert.Empty(t, doc.Warnings)

	assert.Equal(t, "AC1032", doc.Version())
	units, ok := doc.HeaderInt("$INSUNITS")
	require.True(t, ok)
	assert.Equal(t, 6, units)
	ext, ok := doc.HeaderPoint("$EXTMAX")
	require.True(t, ok)
	assert.Equal(t, Point{10, 5, 0}, ext)

	require.Len(t, doc.Layers, 3)
	assert.Equal(t, "A-DOOR", doc.Layers[1].Name)
	assert.True(t, doc.Layers[2].Off())

	require.Len(t, doc.Blocks, 1)
	assert.Equal(t, "DOOR-900", doc.Blocks[0].Name)
	assert.Len(t, doc.Blocks[0].Entities, 3) // line + two ATTDEFs

	require.Len(t, doc.Entities, 3)
	ins := doc.Entities[0]
	assert.Equal(t, "INSERT", ins.Type)
	assert.Equal(t, "A-DOOR", ins.Layer())
	assert.Equal(t, Point{1, 2, 0}, ins.Point(10))
	require.Len(t, ins.Attribs, 2)
	assert.Equal(t, "DESC", ins.Attribs[0].String(2))
	assert.Equal(t, "Flush door", ins.Attribs[0].String(1))

	poly := doc.Entities[1]
	assert.Equal(t, "POLYLINE", poly.Type)
	assert.Len(t, poly.Vertices, 3)

	assert.Len(t, doc.Query("line"), 1)
}

func TestPointsRepeated(t *testing.T) {
	e := &Entity{Tags: []Tag{{10, "0"}, {20, "0"}, {10, "1"}, {20, "0"}, {10, "1"}, {20, "1"}, {30, "2"}}}
	assert.Equal(t, []Point{{0, 0, 0}, {1, 0, 0}, {1, 1, 2}}, e.Points(10))
}

func TestRecoverMode(t *testing.T) {
	src := strings.Join([]string{
		"999", "comment before sections",
		"0", "SECTION", "2", "ENTITIES",
		"0", "LINE", "5", "A1", "8", "0", "10", "0", "20", "0", "11", "1", "21", "1",
		"garbage", // not a group code
		"0", "SEQEND",
		"0", "CIRCLE", "5", "A2", "8", "0", "10", "0", "20", "0", "40", "2",
		"0", "ENDSEC",
		"0", "SECTION", "2", "MYSTERY", "0", "ENDSEC",
		"0", "SECTION", "2", "OBJECTS", "0", "DICTIONARY", "0", "ENDSEC",
	}, "\n")

	doc, err := Read(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, doc.Entities, 2)
	assert.Equal(t, 2.0, doc.Entities[1].Float(40))

	joined := strings.Join(doc.Warnings, "\n")
	assert.Contains(t, joined, "invalid group code")
	assert.Contains(t, joined, "orphan SEQEND")
	assert.Contains(t, joined, `unknown section "MYSTERY"`)
	assert.Contains(t, joined, "missing EOF")
	assert.Contains(t, joined, "before the first record")
}

func TestTruncatedSection(t *testing.T) {
	src := "0\nSECTION\n2\nENTITIES\n0\nCIRCLE\n8\n0\n40\n"
	doc, err := Read(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, doc.Entities, 1)
	joined := strings.Join(doc.Warnings, "\n")
	assert.Contains(t, joined, "no value")
	assert.Contains(t, joined, "not terminated by ENDSEC")
}

func TestPaperSpaceExcluded(t *testing.T) {
	src := dxfgen.New().
		Line("0", 0, 0, 1, 0).
		Raw("0", "LINE", "5", "FF1", "67", "1", "8", "0", "10", "0", "20", "0", "11", "1", "21", "0").
		String()
	doc, err := Read(strings.NewReader(src))
	require.NoError(t, err)
	assert.Len(t, doc.Entities, 2)
	assert.Len(t, doc.ModelSpace(), 1)
}

func TestRejectsNonDXF(t *testing.T) {
	_, err := Read(strings.NewReader(""))
	assert.True(t, errors.Is(err, ErrNotDXF))

	_, err = Read(strings.NewReader("hello\nworld\n"))
	assert.True(t, errors.Is(err, ErrNotDXF))

	_, err = Read(strings.NewReader("AutoCAD Binary DXF\r\n\x1a\x00..."))
	assert.True(t, errors.Is(err, ErrBinaryDXF))

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.dxf"))
	assert.Error(t, err)
}

func TestReadFileWrapsPath(t *testing.T) {
	dir := t.TempDir()
	path := dxfgen.New().Circle("0", 0, 0, 1).WriteFile(t, dir, "c.dxf")
	doc, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, doc.Query("CIRCLE"), 1)
}

func TestEntityXData(t *testing.T) {
	e := &Entity{Type: "LINE", Tags: []Tag{
		{8, "0"}, {10, "1"},
		{1001, "ACAD"}, {1000, "note"},
		{1001, "BOQ"}, {1002, "{"}, {1040, "2.5"}, {1071, "7"}, {1002, "}"},
	}}
	x := e.XData()
	require.Len(t, x, 2)
	assert.Equal(t, []Tag{{1000, "note"}}, x["ACAD"])
	assert.Equal(t, []Tag{{1002, "{"}, {1040, "2.5"}, {1071, "7"}, {1002, "}"}}, x["BOQ"])
	assert.Equal(t, 1.0, e.Float(10), "xdata does not shadow entity codes")

	assert.Nil(t, (&Entity{Type: "LINE", Tags: []Tag{{8, "0"}}}).XData())
}
