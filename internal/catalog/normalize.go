package catalog

import (
	"git.home.luguber.info/inful/boqbuilder/internal/boq"
	"git.home.luguber.info/inful/boqbuilder/internal/cad"
)

// Normalize derives a BOQ row from a block instance. Attribute values are the
// base; non-empty catalog fields override them. It never fails.
func Normalize(ins *cad.Insert, c *Catalog) boq.Row {
	attr := func(tags ...string) string {
		for _, t := range tags {
			if v := ins.Attributes[t]; v != "" {
				return v
			}
		}
		return ""
	}

	row := boq.Row{
		Handle:      ins.Handle,
		BlockName:   ins.BlockName,
		Layer:       ins.Layer,
		ItemCode:    attr("ITEM_CODE", "CODE"),
		Description: attr("DESC", "DESCRIPTION"),
		Size:        attr("SIZE"),
		Material:    attr("MATERIAL"),
		Room:        attr("ROOM", "ZONE"),
		UOM:         boq.DefaultUOM,
	}
	if row.Description == "" {
		row.Description = ins.BlockName
	}

	if e, ok := c.Lookup(ins.BlockName); ok {
		row.ItemCode = or(e.ItemCode, row.ItemCode)
		row.Description = or(e.Description, row.Description)
		row.Size = or(e.Size, row.Size)
		row.Material = or(e.Material, row.Material)
		row.Category = e.Category
		row.UOM = or(e.UOM, row.UOM)
	}
	return row
}

// NormalizeAll normalizes every insert in order.
func NormalizeAll(inserts []*cad.Insert, c *Catalog) []boq.Row {
	rows := make([]boq.Row, 0, len(inserts))
	for _, ins := range inserts {
		rows = append(rows, Normalize(ins, c))
	}
	return rows
}

func or(preferred, fallback string) string {
	if preferred != "" {
		return preferred
	}
	return fallback
}
