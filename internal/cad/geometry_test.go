package cad

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

const eps = 1e-9

func TestToVec3(t *testing.T) {
	assert.Equal(t, Vec3{1, 2, 0}, ToVec3(1, 2))
	assert.Equal(t, Vec3{1, 2, 3}, ToVec3(1, 2, 3, 4))
	assert.Equal(t, Vec3{}, ToVec3())
}

func TestPolygonArea(t *testing.T) {
	square := []Vec3{ToVec3(0, 0), ToVec3(1, 0), ToVec3(1, 1), ToVec3(0, 1)}
	assert.InDelta(t, 1.0, PolygonArea(square), eps)

	clockwise := []Vec3{ToVec3(0, 0), ToVec3(0, 2), ToVec3(3, 2), ToVec3(3, 0)}
	assert.InDelta(t, 6.0, PolygonArea(clockwise), eps)

	assert.Zero(t, PolygonArea(square[:2]))
}

func TestPolylineLength(t *testing.T) {
	square := []Vec3{ToVec3(0, 0), ToVec3(1, 0), ToVec3(1, 1), ToVec3(0, 1)}
	assert.InDelta(t, 3.0, PolylineLength(square, false), eps)
	assert.InDelta(t, 4.0, PolylineLength(square, true), eps)

	// Two-vertex shapes never get a closing segment.
	seg := []Vec3{ToVec3(0, 0), ToVec3(3, 4)}
	assert.InDelta(t, 5.0, PolylineLength(seg, true), eps)

	assert.InDelta(t, 1.0, PolylineLength([]Vec3{ToVec3(0, 0, 0), ToVec3(0, 0, 1)}, false), eps)
	assert.Zero(t, PolylineLength(nil, true))
}

func TestArcLength(t *testing.T) {
	r := 2.5
	assert.InDelta(t, r*3*math.Pi/2, ArcLength(r, 0, 270), eps)
	assert.InDelta(t, r*math.Pi/2, ArcLength(r, 270, 0), eps)
	assert.InDelta(t, 0, ArcLength(r, 45, 45), eps)
}

func TestCircleAndAngle(t *testing.T) {
	assert.InDelta(t, 2*math.Pi, CircleCircumference(1), eps)
	assert.InDelta(t, 4*math.Pi, CircleArea(2), eps)
	assert.InDelta(t, 90, Angle2D(ToVec3(0, 0), ToVec3(0, 5)), eps)
	assert.InDelta(t, -45, Angle2D(ToVec3(0, 0), ToVec3(1, -1)), eps)
}

func TestUnits(t *testing.T) {
	assert.Equal(t, Units("Millimeters"), UnitsFromCode(4))
	assert.Equal(t, Units("Decimeters"), UnitsFromCode(14))
	assert.Equal(t, UnitsUnknown, UnitsFromCode(99))
	assert.Equal(t, "AutoCAD 2018", ReleaseName("AC1032"))
}

func TestDrawingContainer(t *testing.T) {
	d := NewDrawing()
	d.Add(&Insert{Common: Common{Handle: "1", Layer: "0"}, BlockName: "DOOR"})
	d.Add(&Polyline{Common: Common{Handle: "2", Layer: "0"}, Lightweight: true})
	d.Add(&Polyline{Common: Common{Handle: "3", Layer: "0"}})
	d.Add(&Text{Common: Common{Handle: "4", Layer: "0"}, Multiline: true})

	assert.Equal(t, 4, d.EntityCount())
	assert.Equal(t, 1, d.Count(KindLWPolyline))
	assert.Equal(t, 1, d.Count(KindPolyline))
	assert.Equal(t, 1, d.Count(KindMText))
	assert.Len(t, d.Inserts(), 1)
	assert.Equal(t, "1", d.Entities[KindInsert][0].Base().Handle)
	assert.NotContains(t, d.Counts(), KindLine)
}
