package cad

// Drawing is the canonical model for one job. It is owned by a single
// pipeline run and never shared.
type Drawing struct {
	Metadata     Metadata                      `json:"metadata"`
	Layers       map[string]LayerProps         `json:"layers"`
	Blocks       map[string]BlockDef           `json:"blocks"`
	Entities     map[EntityKind][]EntityRecord `json:"entities"`
	Measurements map[string]float64            `json:"measurements"`

	// Spatial is heuristic and may be empty; nothing downstream depends on it.
	Spatial SpatialAnalysis `json:"spatial"`
}

// Metadata describes the drawing file.
type Metadata struct {
	Version     string   `json:"version"` // $ACADVER
	Release     string   `json:"release,omitempty"`
	Units       Units    `json:"units"`
	UnitsCode   int      `json:"units_code"`
	Measurement string   `json:"measurement,omitempty"` // Imperial or Metric
	ExtMin      Vec3     `json:"ext_min"`
	ExtMax      Vec3     `json:"ext_max"`
	Bounds      Bounds   `json:"bounds"`
	Warnings    []string `json:"warnings,omitempty"` // audit/recover notes from parsing
}

// Bounds is derived from the header extents.
type Bounds struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Area   float64 `json:"area"`
}

type LayerProps struct {
	Name       string `json:"name"`
	Color      int    `json:"color"`
	Linetype   string `json:"linetype,omitempty"`
	Lineweight int    `json:"lineweight"`
	On         bool   `json:"on"`
	Frozen     bool   `json:"frozen"`
	Locked     bool   `json:"locked"`
	Plot       bool   `json:"plot"`
}

type BlockDef struct {
	Name          string         `json:"name"`
	BasePoint     Vec3           `json:"base_point"`
	EntityCount   int            `json:"entity_count"`
	AttributeDefs []AttributeDef `json:"attribute_defs,omitempty"`
}

// AttributeDef is an ATTDEF inside a block definition.
type AttributeDef struct {
	Tag      string `json:"tag"`
	Prompt   string `json:"prompt,omitempty"`
	Default  string `json:"default,omitempty"`
	Constant bool   `json:"constant"`
	Hidden   bool   `json:"hidden"`
	Preset   bool   `json:"preset"`
}

// SpatialAnalysis collects best-effort room, wall and opening detection.
type SpatialAnalysis struct {
	Rooms    []Room    `json:"rooms"`
	Walls    []Wall    `json:"walls"`
	Openings []Opening `json:"openings"`
}

type Room struct {
	Handle    string  `json:"handle"`
	Layer     string  `json:"layer"`
	Boundary  []Vec3  `json:"boundary"`
	Area      float64 `json:"area"`
	Perimeter float64 `json:"perimeter"`
}

type Wall struct {
	Handle string  `json:"handle"`
	Layer  string  `json:"layer"`
	Start  Vec3    `json:"start"`
	End    Vec3    `json:"end"`
	Length float64 `json:"length"`
	Angle  float64 `json:"angle"`
}

// OpeningType names which keyword family matched.
type OpeningType string

const (
	OpeningDoor    OpeningType = "door"
	OpeningWindow  OpeningType = "window"
	OpeningGeneric OpeningType = "opening"
)

type Opening struct {
	Type       OpeningType       `json:"type"`
	Handle     string            `json:"handle"`
	BlockName  string            `json:"block_name"`
	Layer      string            `json:"layer"`
	Location   Vec3              `json:"location"`
	Rotation   float64           `json:"rotation"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// NewDrawing returns an empty drawing with all maps allocated.
func NewDrawing() *Drawing {
	return &Drawing{
		Layers:       make(map[string]LayerProps),
		Blocks:       make(map[string]BlockDef),
		Entities:     make(map[EntityKind][]EntityRecord),
		Measurements: make(map[string]float64),
	}
}

// Add appends rec under its kind.
func (d *Drawing) Add(rec EntityRecord) {
	d.Entities[rec.Kind()] = append(d.Entities[rec.Kind()], rec)
}

// Count returns the number of entities of kind.
func (d *Drawing) Count(kind EntityKind) int {
	return len(d.Entities[kind])
}

// EntityCount is the total number of entities of every kind.
func (d *Drawing) EntityCount() int {
	n := 0
	for _, recs := range d.Entities {
		n += len(recs)
	}
	return n
}

// Counts returns per-kind totals, omitting empty kinds.
func (d *Drawing) Counts() map[EntityKind]int {
	out := make(map[EntityKind]int, len(d.Entities))
	for k, recs := range d.Entities {
		if len(recs) > 0 {
			out[k] = len(recs)
		}
	}
	return out
}

// Inserts returns the block instances in model-space order.
func (d *Drawing) Inserts() []*Insert {
	recs := d.Entities[KindInsert]
	out := make([]*Insert, 0, len(recs))
	for _, r := range recs {
		if ins, ok := r.(*Insert); ok {
			out = append(out, ins)
		}
	}
	return out
}
