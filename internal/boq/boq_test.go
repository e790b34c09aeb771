package boq

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func row(block, layer string) Row {
	return Row{BlockName: block, Layer: layer, Description: block, UOM: DefaultUOM}
}

func TestAggregateZeroRows(t *testing.T) {
	items, rooms := Aggregate(nil)
	assert.Empty(t, items)
	assert.Empty(t, rooms)
	assert.Equal(t, Statistics{}, Summarize(items))
	assert.Empty(t, Validate(nil))
}

func TestAggregateMergesAcrossLayers(t *testing.T) {
	rows := []Row{
		row("DOOR-900", "A-DOOR"),
		row("DOOR-900", "A-DOOR-EXT"),
		row("DOOR-900", "A-DOOR"),
		{BlockName: "DOOR-900", Layer: "A-DOOR", Description: "DOOR-900", Size: "900x2100", UOM: DefaultUOM},
	}
	items, _ := Aggregate(rows)
	require.Len(t, items, 2, "differing size is a different key")

	var plain LineItem
	for _, li := range items {
		if li.Size == "" {
			plain = li
		}
	}
	assert.Equal(t, 3.0, plain.Quantity)
	assert.Equal(t, []string{"A-DOOR", "A-DOOR-EXT"}, plain.Layers)
	assert.Equal(t, "BLOCK:DOOR-900", plain.Source)
}

func TestAggregateDoorsAndChairs(t *testing.T) {
	rows := []Row{
		row("DOOR-900", "A-DOOR"),
		row("DOOR-900", "A-DOOR"),
		row("DOOR-900", "A-DOOR"),
		row("CHAIR-01", "A-FURN"),
	}
	items, _ := Aggregate(rows)
	require.Len(t, items, 2)

	assert.Equal(t, 1, items[0].SeqNo)
	assert.Equal(t, "CHAIR-01", items[0].Description)
	assert.Equal(t, 1.0, items[0].Quantity)
	assert.Equal(t, "Chairs", items[0].Category)
	assert.Equal(t, ConfidenceHigh, items[0].Confidence)

	assert.Equal(t, 2, items[1].SeqNo)
	assert.Equal(t, "DOOR-900", items[1].Description)
	assert.Equal(t, 3.0, items[1].Quantity)
	assert.Equal(t, "Doors", items[1].Category)
	assert.Equal(t, ConfidenceHigh, items[1].Confidence)

	assert.Empty(t, Validate(rows))
	assert.Equal(t, Statistics{TotalItems: 2, Categories: 2, HighConfidence: 2}, Summarize(items))
}

func TestAggregateSortsCaseInsensitively(t *testing.T) {
	rows := []Row{row("beta", "0"), row("Alpha", "0"), row("alpha2", "0"), row("Gamma", "0")}
	items, _ := Aggregate(rows)
	var got []string
	for _, li := range items {
		got = append(got, li.Description)
	}
	assert.Equal(t, []string{"Alpha", "alpha2", "beta", "Gamma"}, got)
}

func TestAggregateUsesItemCodeAsIdentity(t *testing.T) {
	rows := []Row{
		{BlockName: "D1", ItemCode: "DR-01", Description: "Door", Layer: "A", UOM: "Nos"},
		{BlockName: "D2", ItemCode: "DR-01", Description: "Door", Layer: "B", UOM: "Nos"},
		{BlockName: "D3", Description: "Door", Layer: "C"},
	}
	items, _ := Aggregate(rows)
	require.Len(t, items, 2)
	assert.Equal(t, "CODE:DR-01", items[1].Source)
	assert.Equal(t, 2.0, items[1].Quantity)
	assert.Equal(t, DefaultUOM, items[0].UOM, "empty unit defaults to the count unit")
}

func TestRoomRollup(t *testing.T) {
	rows := []Row{
		{BlockName: "CHAIR", Description: "Chair", Room: "Kitchen"},
		{BlockName: "CHAIR", Description: "Chair", Room: "Kitchen"},
		{BlockName: "CHAIR", Description: "Chair", Room: "bedroom"},
		{BlockName: "CHAIR", Description: "Chair"},
		{BlockName: "TABLE", Description: "Table", Room: "Kitchen"},
		{Description: "ghost", Room: "Kitchen"},
	}
	items, rooms := Aggregate(rows)
	require.Len(t, items, 2)
	assert.Equal(t, 4.0, items[0].Quantity, "unroomed rows still count in the master list")

	assert.Equal(t, []RoomTotal{
		{Room: "bedroom", Identity: "CHAIR", Description: "Chair", Quantity: 1},
		{Room: "Kitchen", Identity: "CHAIR", Description: "Chair", Quantity: 2},
		{Room: "Kitchen", Identity: "TABLE", Description: "Table", Quantity: 1},
	}, rooms)
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name       string
		category   string
		confidence Confidence
	}{
		{"DOOR-900", "Doors", ConfidenceHigh},
		{"porte-simple", "Doors", ConfidenceHigh},
		{"WINDOW-DOOR", "Doors", ConfidenceHigh},
		{"Fenetre 1200", "Windows", ConfidenceHigh},
		{"DESK-CHAIR", "Chairs", ConfidenceHigh},
		{"BEDSIDE", "Beds", ConfidenceHigh},
		{"COUCH-3", "Sofas", ConfidenceHigh},
		{"WARDROBE", "Storage", ConfidenceHigh},
		{"WALL-PANEL", "Walls", ConfidenceMedium},
		{"COLUMN-TABLE", "Tables", ConfidenceHigh},
		{"COL-300", "Columns", ConfidenceMedium},
		{"LAMP", CategoryMiscellaneous, ConfidenceLow},
		{"", CategoryMiscellaneous, ConfidenceLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, conf := Categorize(tt.name)
			assert.Equal(t, tt.category, c)
			assert.Equal(t, tt.confidence, conf)
		})
	}
}

func TestCatalogCategoryOverridesInference(t *testing.T) {
	c, conf := CategoryFor(Row{BlockName: "LAMP", Category: "Lighting"})
	assert.Equal(t, "Lighting", c)
	assert.Equal(t, ConfidenceHigh, conf)
}

func TestValidateDoesNotDeduplicate(t *testing.T) {
	rows := []Row{
		{Layer: "0"},
		{BlockName: "X", Description: ""},
		{ItemCode: "C1", Description: "ok"},
	}
	ex := Validate(rows)
	require.Len(t, ex, 3)
	assert.Equal(t, IssueMissingIdentity, ex[0].Issue)
	assert.Equal(t, IssueMissingDescription, ex[1].Issue)
	assert.Equal(t, ex[0].Row, ex[1].Row)
	assert.Equal(t, "X", ex[2].BlockName)

	items, rooms := Aggregate(rows)
	assert.Len(t, items, 2)
	assert.Empty(t, rooms)
}

func TestAggregateCategoryIndependentOfRowOrder(t *testing.T) {
	rows := []Row{
		{BlockName: "DOOR-A", ItemCode: "X-1", Description: "Fixture", Layer: "L1"},
		{BlockName: "CHAIR-B", ItemCode: "X-1", Description: "Fixture", Layer: "L2"},
		{BlockName: "WALL-C", ItemCode: "X-1", Description: "Fixture", Layer: "L3"},
		{BlockName: "ZZZ", ItemCode: "X-1", Description: "Fixture", Layer: "L4"},
	}
	reversed := slices.Clone(rows)
	slices.Reverse(reversed)

	for _, in := range [][]Row{rows, reversed} {
		items, _ := Aggregate(in)
		require.Len(t, items, 1)
		assert.Equal(t, "Chairs", items[0].Category, "equal confidence breaks on block name")
		assert.Equal(t, ConfidenceHigh, items[0].Confidence)
		assert.Equal(t, 4.0, items[0].Quantity)
	}

	items, _ := Aggregate([]Row{
		{BlockName: "ZZZ", ItemCode: "X-2", Description: "Post"},
		{BlockName: "COLUMN-1", ItemCode: "X-2", Description: "Post"},
	})
	require.Len(t, items, 1)
	assert.Equal(t, "Columns", items[0].Category, "higher confidence wins over name order")
	assert.Equal(t, ConfidenceMedium, items[0].Confidence)
}
