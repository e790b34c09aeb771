package boq

import (
	"cmp"
	"maps"
	"slices"

	"git.home.luguber.info/inful/boqbuilder/internal/cad"
)

type itemKey struct {
	identity    string
	description string
	size        string
	material    string
	uom         string
}

type roomKey struct {
	room        string
	identity    string
	description string
}

// Aggregate merges rows with identical (identity, description, size,
// material, unit) into line items and builds the room rollup. Rows without
// identity are skipped; rows without a room are left out of the rollup.
//
// Rows merged into one item may categorize differently (same item code on
// different blocks). The item takes the most confident category; equal
// confidence goes to the row whose block name sorts first.
func Aggregate(rows []Row) ([]LineItem, []RoomTotal) {
	items := map[itemKey]*LineItem{}
	chosen := map[itemKey]string{}
	layers := map[itemKey]map[string]struct{}{}
	rooms := map[roomKey]float64{}

	for _, r := range rows {
		if !r.HasIdentity() {
			continue
		}
		uom := r.UOM
		if uom == "" {
			uom = DefaultUOM
		}
		k := itemKey{r.Identity(), r.Description, r.Size, r.Material, uom}
		category, confidence := CategoryFor(r)
		li, ok := items[k]
		if !ok {
			li = &LineItem{
				ItemCode:    r.ItemCode,
				Description: r.Description,
				Size:        r.Size,
				Material:    r.Material,
				UOM:         uom,
				Category:    category,
				Confidence:  confidence,
				Source:      r.Source(),
			}
			items[k] = li
			chosen[k] = r.BlockName
			layers[k] = map[string]struct{}{}
		} else if outranks(confidence, r.BlockName, li.Confidence, chosen[k]) {
			li.Category, li.Confidence = category, confidence
			chosen[k] = r.BlockName
		}
		li.Quantity++
		if r.Layer != "" {
			layers[k][r.Layer] = struct{}{}
		}

		if r.Room != "" {
			rooms[roomKey{r.Room, r.Identity(), r.Description}]++
		}
	}

	keys := slices.SortedFunc(maps.Keys(items), func(a, b itemKey) int {
		return cmp.Or(
			cmp.Compare(cad.FoldName(a.description), cad.FoldName(b.description)),
			cmp.Compare(cad.FoldName(a.identity), cad.FoldName(b.identity)),
			cmp.Compare(a.description, b.description),
			cmp.Compare(a.identity, b.identity),
			cmp.Compare(a.size, b.size),
			cmp.Compare(a.material, b.material),
			cmp.Compare(a.uom, b.uom),
		)
	})
	lineItems := make([]LineItem, 0, len(keys))
	for i, k := range keys {
		li := items[k]
		li.SeqNo = i + 1
		li.Layers = slices.Sorted(maps.Keys(layers[k]))
		lineItems = append(lineItems, *li)
	}

	rollup := make([]RoomTotal, 0, len(rooms))
	for k, q := range rooms {
		rollup = append(rollup, RoomTotal{Room: k.room, Identity: k.identity, Description: k.description, Quantity: q})
	}
	slices.SortFunc(rollup, func(a, b RoomTotal) int {
		return cmp.Or(
			cmp.Compare(cad.FoldName(a.Room), cad.FoldName(b.Room)),
			cmp.Compare(cad.FoldName(a.Description), cad.FoldName(b.Description)),
			cmp.Compare(a.Room, b.Room),
			cmp.Compare(a.Description, b.Description),
			cmp.Compare(a.Identity, b.Identity),
		)
	})
	return lineItems, rollup
}

func confidenceRank(c Confidence) int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	}
	return 0
}

func outranks(c Confidence, block string, curC Confidence, curBlock string) bool {
	if r, cur := confidenceRank(c), confidenceRank(curC); r != cur {
		return r > cur
	}
	return block < curBlock
}

// Summarize computes statistics over aggregated line items.
func Summarize(items []LineItem) Statistics {
	cats := map[string]struct{}{}
	var s Statistics
	for _, li := range items {
		s.TotalItems++
		cats[li.Category] = struct{}{}
		if li.Confidence == ConfidenceHigh {
			s.HighConfidence++
		}
	}
	s.Categories = len(cats)
	return s
}
