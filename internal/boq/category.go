package boq

import (
	"git.home.luguber.info/inful/boqbuilder/internal/cad"
)

// CategoryMiscellaneous is assigned when no keyword matches.
const CategoryMiscellaneous = "Miscellaneous"

type categoryRule struct {
	category   string
	confidence Confidence
	keywords   []string
}

// categoryRules is ordered; the first rule with a keyword contained in the
// upper-cased block name wins.
var categoryRules = []categoryRule{
	{"Doors", ConfidenceHigh, []string{"DOOR", "DOR", "PORTE"}},
	{"Windows", ConfidenceHigh, []string{"WINDOW", "WIN", "FENETRE"}},
	{"Chairs", ConfidenceHigh, []string{"CHAIR", "SEAT"}},
	{"Tables", ConfidenceHigh, []string{"TABLE", "DESK"}},
	{"Beds", ConfidenceHigh, []string{"BED"}},
	{"Sofas", ConfidenceHigh, []string{"SOFA", "COUCH"}},
	{"Storage", ConfidenceHigh, []string{"WARDROBE", "CUPBOARD"}},
	{"Walls", ConfidenceMedium, []string{"WALL"}},
	{"Columns", ConfidenceMedium, []string{"COLUMN", "COL"}},
}

// Categorize infers a category from a block name.
func Categorize(blockName string) (string, Confidence) {
	name := cad.UpperName(blockName)
	if name == "" {
		return CategoryMiscellaneous, ConfidenceLow
	}
	for _, r := range categoryRules {
		if _, ok := cad.ContainsAny(name, r.keywords); ok {
			return r.category, r.confidence
		}
	}
	return CategoryMiscellaneous, ConfidenceLow
}

// CategoryFor prefers a catalog-assigned category over inference.
func CategoryFor(r Row) (string, Confidence) {
	if r.Category != "" {
		return r.Category, ConfidenceHigh
	}
	return Categorize(r.BlockName)
}
