package extract

import (
	"maps"

	"git.home.luguber.info/inful/boqbuilder/internal/cad"
)

// analyze runs the room, wall and opening heuristics. They are conservative:
// a missed room is acceptable, a false one is not.
func (x *Extractor) analyze(d *cad.Drawing) cad.SpatialAnalysis {
	var sa cad.SpatialAnalysis

	for _, kind := range []cad.EntityKind{cad.KindLWPolyline, cad.KindPolyline} {
		for _, rec := range d.Entities[kind] {
			p, ok := rec.(*cad.Polyline)
			if !ok || !p.Closed || p.Area <= x.opts.MinRoomArea {
				continue
			}
			sa.Rooms = append(sa.Rooms, cad.Room{
				Handle:    p.Handle,
				Layer:     p.Layer,
				Boundary:  p.Vertices,
				Area:      p.Area,
				Perimeter: p.Length,
			})
		}
	}

	wallLayers := map[string]bool{}
	for _, rec := range d.Entities[cad.KindLine] {
		l, ok := rec.(*cad.Line)
		if !ok {
			continue
		}
		isWall, seen := wallLayers[l.Layer]
		if !seen {
			_, isWall = cad.ContainsAny(cad.UpperName(l.Layer), x.opts.WallKeywords)
			wallLayers[l.Layer] = isWall
		}
		if !isWall {
			continue
		}
		sa.Walls = append(sa.Walls, cad.Wall{
			Handle: l.Handle,
			Layer:  l.Layer,
			Start:  l.Start,
			End:    l.End,
			Length: l.Length,
			Angle:  l.Angle,
		})
	}

	for _, ins := range d.Inserts() {
		typ, ok := x.openingType(ins.BlockName)
		if !ok {
			continue
		}
		sa.Openings = append(sa.Openings, cad.Opening{
			Type:       typ,
			Handle:     ins.Handle,
			BlockName:  ins.BlockName,
			Layer:      ins.Layer,
			Location:   ins.Point,
			Rotation:   ins.Rotation,
			Attributes: maps.Clone(ins.Attributes),
		})
	}
	return sa
}

func (x *Extractor) openingType(blockName string) (cad.OpeningType, bool) {
	name := cad.UpperName(blockName)
	if name == "" {
		return "", false
	}
	switch {
	case hit(name, x.opts.DoorKeywords):
		return cad.OpeningDoor, true
	case hit(name, x.opts.WindowKeywords):
		return cad.OpeningWindow, true
	case hit(name, x.opts.OpeningKeywords):
		return cad.OpeningGeneric, true
	}
	return "", false
}

func hit(name string, keywords []string) bool {
	_, ok := cad.ContainsAny(name, keywords)
	return ok
}
