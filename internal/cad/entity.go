package cad

// EntityKind tags the variant held by an EntityRecord.
type EntityKind string

const (
	KindInsert     EntityKind = "insert"
	KindLine       EntityKind = "line"
	KindPolyline   EntityKind = "polyline"
	KindLWPolyline EntityKind = "lwpolyline"
	KindArc        EntityKind = "arc"
	KindCircle     EntityKind = "circle"
	KindText       EntityKind = "text"
	KindMText      EntityKind = "mtext"
	KindDimension  EntityKind = "dimension"
	KindHatch      EntityKind = "hatch"
	KindSpline     EntityKind = "spline"
	Kind3DFace     EntityKind = "3dface"
	KindSolid      EntityKind = "solid"
)

// Kinds lists every supported kind in extraction order.
var Kinds = []EntityKind{
	KindInsert, KindLine, KindPolyline, KindLWPolyline, KindArc, KindCircle,
	KindText, KindMText, KindDimension, KindHatch, KindSpline, Kind3DFace, KindSolid,
}

// Common holds the fields shared by every entity.
type Common struct {
	Handle   string                `json:"handle"`
	Layer    string                `json:"layer"`
	Color    int                   `json:"color,omitempty"`
	Linetype string                `json:"linetype,omitempty"`
	XData    map[string][]XDataTag `json:"xdata,omitempty"` // application name -> tags
}

// XDataTag is one extended-data value attached by an application.
type XDataTag struct {
	Code  int    `json:"code"`
	Value string `json:"value"`
}

// EntityRecord is implemented by every entity variant.
type EntityRecord interface {
	Kind() EntityKind
	Base() *Common
}

// Insert is a placed block instance.
type Insert struct {
	Common
	BlockName  string            `json:"block_name"`
	Point      Vec3              `json:"point"`
	Rotation   float64           `json:"rotation"`
	Scale      Vec3              `json:"scale"`
	Attributes map[string]string `json:"attributes,omitempty"` // upper-cased tag -> trimmed value
}

type Line struct {
	Common
	Start  Vec3    `json:"start"`
	End    Vec3    `json:"end"`
	Length float64 `json:"length"`
	Angle  float64 `json:"angle"`
}

// Polyline covers both heavy POLYLINE and LWPOLYLINE entities.
type Polyline struct {
	Common
	Lightweight bool    `json:"lightweight"`
	Closed      bool    `json:"closed"`
	Vertices    []Vec3  `json:"vertices"`
	Elevation   float64 `json:"elevation,omitempty"`
	ConstWidth  float64 `json:"const_width,omitempty"`
	Length      float64 `json:"length"`
	Area        float64 `json:"area,omitempty"` // only for closed shapes
}

type Arc struct {
	Common
	Center     Vec3    `json:"center"`
	Radius     float64 `json:"radius"`
	StartAngle float64 `json:"start_angle"`
	EndAngle   float64 `json:"end_angle"`
	Length     float64 `json:"length"`
}

type Circle struct {
	Common
	Center        Vec3    `json:"center"`
	Radius        float64 `json:"radius"`
	Circumference float64 `json:"circumference"`
	Area          float64 `json:"area"`
}

// Text covers TEXT and MTEXT.
type Text struct {
	Common
	Multiline bool    `json:"multiline"`
	Value     string  `json:"value"`
	Point     Vec3    `json:"point"`
	Height    float64 `json:"height"`
	Rotation  float64 `json:"rotation"`
	Style     string  `json:"style,omitempty"`
	Width     float64 `json:"width,omitempty"`
}

type Dimension struct {
	Common
	DimType      int     `json:"dim_type"`
	Text         string  `json:"text,omitempty"`
	Measurement  float64 `json:"measurement"`
	DefPoint     Vec3    `json:"def_point"`
	TextMidpoint Vec3    `json:"text_midpoint"`
}

type Hatch struct {
	Common
	Pattern string  `json:"pattern"`
	Solid   bool    `json:"solid"`
	Paths   int     `json:"paths"`
	Area    float64 `json:"area"`
}

type Spline struct {
	Common
	Degree        int    `json:"degree"`
	Closed        bool   `json:"closed"`
	ControlPoints []Vec3 `json:"control_points,omitempty"`
	FitPoints     []Vec3 `json:"fit_points,omitempty"`
}

type Face3D struct {
	Common
	Corners [4]Vec3 `json:"corners"`
}

// Solid is either a filled 2D SOLID or TRACE, which keeps its outline, or an ACIS
// body (3DSOLID, BODY, REGION), of which only the identity is kept.
type Solid struct {
	Common
	Type    string  `json:"type"`
	Corners []Vec3  `json:"corners,omitempty"`
	Area    float64 `json:"area,omitempty"`
}

func (e *Insert) Kind() EntityKind    { return KindInsert }
func (e *Line) Kind() EntityKind      { return KindLine }
func (e *Arc) Kind() EntityKind       { return KindArc }
func (e *Circle) Kind() EntityKind    { return KindCircle }
func (e *Dimension) Kind() EntityKind { return KindDimension }
func (e *Hatch) Kind() EntityKind     { return KindHatch }
func (e *Spline) Kind() EntityKind    { return KindSpline }
func (e *Face3D) Kind() EntityKind    { return Kind3DFace }
func (e *Solid) Kind() EntityKind     { return KindSolid }

func (e *Polyline) Kind() EntityKind {
	if e.Lightweight {
		return KindLWPolyline
	}
	return KindPolyline
}

func (e *Text) Kind() EntityKind {
	if e.Multiline {
		return KindMText
	}
	return KindText
}

func (e *Common) Base() *Common { return e }
