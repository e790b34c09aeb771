package extract

import (
	"strconv"
	"strings"

	"git.home.luguber.info/inful/boqbuilder/internal/cad"
	"git.home.luguber.info/inful/boqbuilder/internal/dxf"
)

// project converts one parsed entity into its canonical variant, or nil for unsupported types.
func project(e *dxf.Entity) cad.EntityRecord {
	common := cad.Common{
		Handle:   e.Handle(),
		Layer:    e.Layer(),
		Color:    e.Int(62),
		Linetype: e.String(6),
		XData:    xdata(e),
	}
	switch e.Type {
	case "INSERT":
		return insert(common, e)
	case "LINE":
		start, end := vec(e.Point(10)), vec(e.Point(11))
		return &cad.Line{
			Common: common,
			Start:  start,
			End:    end,
			Length: cad.Distance(start, end),
			Angle:  cad.Angle2D(start, end),
		}
	case "LWPOLYLINE":
		elev := e.Float(38)
		pts := e.Points(10)
		verts := make([]cad.Vec3, len(pts))
		for i, p := range pts {
			verts[i] = cad.ToVec3(p[0], p[1], elev)
		}
		return polyline(common, true, e.Int(70)&1 != 0, verts, elev, e.Float(43))
	case "POLYLINE":
		var verts []cad.Vec3
		for _, v := range e.Vertices {
			if v.Int(70)&16 != 0 { // spline frame control point
				continue
			}
			verts = append(verts, vec(v.Point(10)))
		}
		return polyline(common, false, e.Int(70)&1 != 0, verts, e.Float(30), e.Float(40))
	case "ARC":
		r, start, end := e.Float(40), e.Float(50), e.Float(51)
		return &cad.Arc{
			Common:     common,
			Center:     vec(e.Point(10)),
			Radius:     r,
			StartAngle: start,
			EndAngle:   end,
			Length:     cad.ArcLength(r, start, end),
		}
	case "CIRCLE":
		r := e.Float(40)
		return &cad.Circle{
			Common:        common,
			Center:        vec(e.Point(10)),
			Radius:        r,
			Circumference: cad.CircleCircumference(r),
			Area:          cad.CircleArea(r),
		}
	case "TEXT":
		return &cad.Text{
			Common:   common,
			Value:    e.String(1),
			Point:    vec(e.Point(10)),
			Height:   e.Float(40),
			Rotation: e.Float(50),
			Style:    e.String(7),
			Width:    e.FloatOr(41, 1),
		}
	case "MTEXT":
		// Long MTEXT values are split across code 3 chunks followed by a final code 1.
		value := strings.Join(e.Strings(3), "") + e.String(1)
		return &cad.Text{
			Common:    common,
			Multiline: true,
			Value:     strings.ReplaceAll(value, `\P`, "\n"),
			Point:     vec(e.Point(10)),
			Height:    e.Float(40),
			Rotation:  e.Float(50),
			Style:     e.String(7),
			Width:     e.Float(41),
		}
	case "DIMENSION":
		return &cad.Dimension{
			Common:       common,
			DimType:      e.Int(70) & 0x07,
			Text:         e.String(1),
			Measurement:  e.Float(42),
			DefPoint:     vec(e.Point(10)),
			TextMidpoint: vec(e.Point(11)),
		}
	case "HATCH":
		area, paths := hatchArea(e)
		return &cad.Hatch{
			Common:  common,
			Pattern: e.String(2),
			Solid:   e.Int(70) == 1,
			Paths:   paths,
			Area:    area,
		}
	case "SPLINE":
		return &cad.Spline{
			Common:        common,
			Degree:        e.Int(71),
			Closed:        e.Int(70)&1 != 0,
			ControlPoints: vecs(e.Points(10)),
			FitPoints:     vecs(e.Points(11)),
		}
	case "3DFACE":
		return &cad.Face3D{
			Common:  common,
			Corners: [4]cad.Vec3{vec(e.Point(10)), vec(e.Point(11)), vec(e.Point(12)), vec(e.Point(13))},
		}
	case "SOLID", "TRACE":
		// Corners are stored in zig-zag order; the outline runs 1, 2, 4, 3.
		p := [4]cad.Vec3{vec(e.Point(10)), vec(e.Point(11)), vec(e.Point(12)), vec(e.Point(13))}
		if !e.Has(13) {
			p[3] = p[2]
		}
		outline := []cad.Vec3{p[0], p[1], p[3], p[2]}
		return &cad.Solid{Common: common, Type: e.Type, Corners: outline, Area: cad.PolygonArea(outline)}
	case "3DSOLID", "BODY", "REGION":
		return &cad.Solid{Common: common, Type: e.Type}
	}
	return nil
}

func xdata(e *dxf.Entity) map[string][]cad.XDataTag {
	groups := e.XData()
	if len(groups) == 0 {
		return nil
	}
	out := make(map[string][]cad.XDataTag, len(groups))
	for app, tags := range groups {
		conv := make([]cad.XDataTag, len(tags))
		for i, t := range tags {
			conv[i] = cad.XDataTag{Code: t.Code, Value: t.Value}
		}
		out[app] = conv
	}
	return out
}

func insert(common cad.Common, e *dxf.Entity) *cad.Insert {
	ins := &cad.Insert{
		Common:     common,
		BlockName:  strings.TrimSpace(e.String(2)),
		Point:      vec(e.Point(10)),
		Rotation:   e.Float(50),
		Scale:      cad.ToVec3(e.FloatOr(41, 1), e.FloatOr(42, 1), e.FloatOr(43, 1)),
		Attributes: make(map[string]string, len(e.Attribs)),
	}
	for _, a := range e.Attribs {
		tag := cad.UpperName(a.String(2))
		if tag == "" {
			continue
		}
		ins.Attributes[tag] = strings.TrimSpace(a.String(1))
	}
	return ins
}

func polyline(common cad.Common, light, closed bool, verts []cad.Vec3, elevation, width float64) *cad.Polyline {
	p := &cad.Polyline{
		Common:      common,
		Lightweight: light,
		Closed:      closed,
		Vertices:    verts,
		Elevation:   elevation,
		ConstWidth:  width,
		Length:      cad.PolylineLength(verts, closed),
	}
	if closed {
		p.Area = cad.PolygonArea(verts)
	}
	return p
}

// hatchArea sums the shoelace areas of polyline-type boundary paths. Edge-type
// paths are counted but contribute no area.
func hatchArea(e *dxf.Entity) (float64, int) {
	var area float64
	paths := 0
	tags := e.Tags
	for i := 0; i < len(tags); i++ {
		if tags[i].Code != 92 {
			continue
		}
		paths++
		if atoi(tags[i].Value)&2 == 0 {
			continue
		}
		// Polyline path: 72 bulge flag, 73 closed flag, 93 vertex count, then 10/20[/42] per vertex.
		j := i + 1
		for j < len(tags) && tags[j].Code != 93 {
			j++
		}
		if j == len(tags) {
			break
		}
		n := atoi(tags[j].Value)
		var pts []cad.Vec3
		j++
	vertices:
		for ; j < len(tags); j++ {
			switch tags[j].Code {
			case 10:
				if len(pts) == n {
					break vertices
				}
				pts = append(pts, cad.ToVec3(atof(tags[j].Value)))
			case 20:
				if len(pts) > 0 {
					pts[len(pts)-1][1] = atof(tags[j].Value)
				}
			case 42:
			default:
				break vertices
			}
		}
		area += cad.PolygonArea(pts)
		i = j - 1
	}
	return area, paths
}

func atoi(s string) int {
	v, _ := strconv.Atoi(strings.TrimSpace(s))
	return v
}

func atof(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}

func vec(p dxf.Point) cad.Vec3 { return cad.ToVec3(p[:]...) }

func vecs(ps []dxf.Point) []cad.Vec3 {
	if len(ps) == 0 {
		return nil
	}
	out := make([]cad.Vec3, len(ps))
	for i, p := range ps {
		out[i] = vec(p)
	}
	return out
}
