package extract

import "git.home.luguber.info/inful/boqbuilder/internal/cad"

// Measurement keys written into Drawing.Measurements.
const (
	TotalLineLength          = "total_line_length"
	TotalPolylineLength      = "total_polyline_length"
	TotalLWPolylineLength    = "total_lwpolyline_length"
	TotalArcLength           = "total_arc_length"
	TotalCircleCircumference = "total_circle_circumference"
	TotalEnclosedArea        = "total_enclosed_area"
	TotalHatchArea           = "total_hatch_area"
	BlockCount               = "block_count"
	TextCount                = "text_count"
	DimensionCount           = "dimension_count"
	EntityCount              = "entity_count"
)

func measure(d *cad.Drawing) map[string]float64 {
	m := map[string]float64{
		TotalLineLength:          0,
		TotalPolylineLength:      0,
		TotalLWPolylineLength:    0,
		TotalArcLength:           0,
		TotalCircleCircumference: 0,
		TotalEnclosedArea:        0,
		TotalHatchArea:           0,
	}
	for _, recs := range d.Entities {
		for _, rec := range recs {
			switch e := rec.(type) {
			case *cad.Line:
				m[TotalLineLength] += e.Length
			case *cad.Polyline:
				if e.Lightweight {
					m[TotalLWPolylineLength] += e.Length
				} else {
					m[TotalPolylineLength] += e.Length
				}
				m[TotalEnclosedArea] += e.Area
			case *cad.Arc:
				m[TotalArcLength] += e.Length
			case *cad.Circle:
				m[TotalCircleCircumference] += e.Circumference
			case *cad.Hatch:
				m[TotalHatchArea] += e.Area
			}
		}
	}
	m[BlockCount] = float64(d.Count(cad.KindInsert))
	m[TextCount] = float64(d.Count(cad.KindText) + d.Count(cad.KindMText))
	m[DimensionCount] = float64(d.Count(cad.KindDimension))
	m[EntityCount] = float64(d.EntityCount())
	return m
}
