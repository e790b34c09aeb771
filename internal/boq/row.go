package boq

// DefaultUOM is the count unit used when no catalog entry names one.
const DefaultUOM = "each"

// Row is one block instance after catalog normalization.
type Row struct {
	Handle      string `json:"handle,omitempty"`
	BlockName   string `json:"block_name"`
	Layer       string `json:"layer"`
	ItemCode    string `json:"item_code"`
	Description string `json:"description"`
	Size        string `json:"size"`
	Material    string `json:"material"`
	Room        string `json:"room"`
	Category    string `json:"category"` // from the catalog; empty means infer from the block name
	UOM         string `json:"uom"`
}

// Identity is the item code, or the block name when no code is known.
func (r Row) Identity() string {
	if r.ItemCode != "" {
		return r.ItemCode
	}
	return r.BlockName
}

// HasIdentity reports whether the row can be counted at all.
func (r Row) HasIdentity() bool { return r.Identity() != "" }

// Source tags where a line item's identity came from.
func (r Row) Source() string {
	if r.ItemCode != "" {
		return "CODE:" + r.ItemCode
	}
	return "BLOCK:" + r.BlockName
}

// Issue names a validation rule a row failed.
type Issue string

const (
	IssueMissingIdentity    Issue = "missing identity"
	IssueMissingDescription Issue = "missing description"
)

// ExceptionRecord is a row that failed one validation rule.
type ExceptionRecord struct {
	Row
	Issue Issue `json:"issue"`
}

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// LineItem is one aggregated BOQ entry.
type LineItem struct {
	SeqNo       int        `json:"sl_no"`
	ItemCode    string     `json:"item_code"`
	Description string     `json:"description"`
	Size        string     `json:"size"`
	Material    string     `json:"material"`
	UOM         string     `json:"uom"`
	Quantity    float64    `json:"quantity"`
	Layers      []string   `json:"layers"`
	Category    string     `json:"category"`
	Confidence  Confidence `json:"confidence"`
	Source      string     `json:"source"`
}

// RoomTotal is one row of the room rollup.
type RoomTotal struct {
	Room        string  `json:"room"`
	Identity    string  `json:"identity"`
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
}

// Statistics summarizes a set of line items.
type Statistics struct {
	TotalItems     int `json:"total_items"`
	Categories     int `json:"categories"`
	HighConfidence int `json:"high_confidence"`
}
