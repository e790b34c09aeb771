package extract

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"git.home.luguber.info/inful/boqbuilder/internal/cad"
	"git.home.luguber.info/inful/boqbuilder/internal/config"
	"git.home.luguber.info/inful/boqbuilder/internal/dxf"
	dberrors "git.home.luguber.info/inful/boqbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/boqbuilder/internal/logfields"
)

// ErrUnreadableDrawing means the interchange file could not be opened as a drawing at all.
var ErrUnreadableDrawing = errors.New("unreadable drawing")

// Options tunes the spatial heuristics. Keywords are matched against upper-cased names.
type Options struct {
	MinRoomArea     float64
	WallKeywords    []string
	DoorKeywords    []string
	WindowKeywords  []string
	OpeningKeywords []string
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default().Extraction)
}

// OptionsFromConfig converts the extraction config section.
func OptionsFromConfig(c config.ExtractionConfig) Options {
	up := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, s := range in {
			if s = cad.UpperName(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return Options{
		MinRoomArea:     c.MinRoomArea,
		WallKeywords:    up(c.WallKeywords),
		DoorKeywords:    up(c.DoorKeywords),
		WindowKeywords:  up(c.WindowKeywords),
		OpeningKeywords: up(c.OpeningKeywords),
	}
}

// Extractor turns an interchange file into a cad.Drawing.
type Extractor struct {
	opts Options
}

func New(opts Options) *Extractor {
	return &Extractor{opts: opts}
}

// Extract reads path and builds the drawing. Parser audit warnings end up in
// Metadata.Warnings; only a file that cannot be read at all is an error.
func (x *Extractor) Extract(path string) (*cad.Drawing, error) {
	doc, err := dxf.ReadFile(path)
	if err != nil {
		return nil, dberrors.WrapError(fmt.Errorf("%w: %w", ErrUnreadableDrawing, err), dberrors.CategoryParse, "cannot open interchange file").
			Fatal().
			WithContext("path", path).
			Build()
	}
	d := x.FromDocument(doc)
	if n := len(d.Metadata.Warnings); n > 0 {
		slog.Warn("Drawing parsed with audit warnings", logfields.Path(path), logfields.Count(n))
	}
	return d, nil
}

// FromDocument projects a parsed document into the canonical model.
func (x *Extractor) FromDocument(doc *dxf.Document) *cad.Drawing {
	d := cad.NewDrawing()
	d.Metadata = metadata(doc)
	d.Metadata.Warnings = append(d.Metadata.Warnings, doc.Warnings...)

	for _, l := range doc.Layers {
		d.Layers[l.Name] = cad.LayerProps{
			Name:       l.Name,
			Color:      l.Color,
			Linetype:   l.Linetype,
			Lineweight: l.Lineweight,
			On:         !l.Off(),
			Frozen:     l.Frozen(),
			Locked:     l.Locked(),
			Plot:       l.Plot,
		}
	}
	for _, b := range doc.Blocks {
		if b.Anonymous() || b.Name == "" {
			continue
		}
		d.Blocks[b.Name] = blockDef(b)
	}

	hs := handles{seen: make(map[string]bool)}
	skipped := map[string]int{}
	for _, e := range doc.ModelSpace() {
		rec := project(e)
		if rec == nil {
			skipped[e.Type]++
			continue
		}
		base := rec.Base()
		base.Handle = hs.assign(base.Handle, &d.Metadata)
		if base.Layer == "" {
			base.Layer = "0"
		}
		d.Add(rec)
	}
	if len(skipped) > 0 {
		types := make([]string, 0, len(skipped))
		for t, n := range skipped {
			types = append(types, fmt.Sprintf("%s(%d)", t, n))
		}
		slices.Sort(types)
		d.Metadata.Warnings = append(d.Metadata.Warnings, "unsupported entity types skipped: "+strings.Join(types, ", "))
	}

	d.Measurements = measure(d)
	d.Spatial = x.analyze(d)
	return d
}

func metadata(doc *dxf.Document) cad.Metadata {
	m := cad.Metadata{Version: doc.Version()}
	m.Release = cad.ReleaseName(m.Version)
	m.UnitsCode, _ = doc.HeaderInt("$INSUNITS")
	m.Units = cad.UnitsFromCode(m.UnitsCode)
	if ms, ok := doc.HeaderInt("$MEASUREMENT"); ok {
		m.Measurement = "Imperial"
		if ms == 1 {
			m.Measurement = "Metric"
		}
	}
	minP, okMin := doc.HeaderPoint("$EXTMIN")
	maxP, okMax := doc.HeaderPoint("$EXTMAX")
	if okMin && okMax {
		m.ExtMin = cad.ToVec3(minP[:]...)
		m.ExtMax = cad.ToVec3(maxP[:]...)
		w, h := maxP[0]-minP[0], maxP[1]-minP[1]
		// Empty drawings carry inverted sentinel extents (1e20 / -1e20).
		if w >= 0 && h >= 0 {
			m.Bounds = cad.Bounds{Width: w, Height: h, Area: w * h}
		}
	}
	return m
}

func blockDef(b dxf.Block) cad.BlockDef {
	def := cad.BlockDef{
		Name:        b.Name,
		BasePoint:   cad.ToVec3(b.BasePoint[:]...),
		EntityCount: len(b.Entities),
	}
	for _, e := range b.Entities {
		if e.Type != "ATTDEF" {
			continue
		}
		flags := e.Int(70)
		def.AttributeDefs = append(def.AttributeDefs, cad.AttributeDef{
			Tag:      cad.UpperName(e.String(2)),
			Prompt:   e.String(3),
			Default:  e.String(1),
			Hidden:   flags&1 != 0,
			Constant: flags&2 != 0,
			Preset:   flags&8 != 0,
		})
	}
	return def
}

// handles guarantees a unique handle per entity.
type handles struct {
	seen map[string]bool
	next int
}

func (h *handles) assign(handle string, m *cad.Metadata) string {
	orig := handle
	for handle == "" || h.seen[handle] {
		h.next++
		handle = fmt.Sprintf("~%d", h.next)
	}
	if orig != "" && orig != handle {
		m.Warnings = append(m.Warnings, fmt.Sprintf("duplicate handle %s re-keyed to %s", orig, handle))
	}
	h.seen[handle] = true
	return handle
}
