package cad

// Units is the drawing unit named by the $INSUNITS header code.
type Units string

const UnitsUnknown Units = "Unknown"

var insUnits = map[int]Units{
	0:  "Unitless",
	1:  "Inches",
	2:  "Feet",
	3:  "Miles",
	4:  "Millimeters",
	5:  "Centimeters",
	6:  "Meters",
	7:  "Kilometers",
	8:  "Microinches",
	9:  "Mils",
	10: "Yards",
	11: "Angstroms",
	12: "Nanometers",
	13: "Microns",
	14: "Decimeters",
	15: "Decameters",
	16: "Hectometers",
	17: "Gigameters",
	18: "Astronomical units",
	19: "Light years",
	20: "Parsecs",
}

// UnitsFromCode maps an $INSUNITS value to its name.
func UnitsFromCode(code int) Units {
	if u, ok := insUnits[code]; ok {
		return u
	}
	return UnitsUnknown
}

var releases = map[string]string{
	"AC1009": "R12",
	"AC1012": "R13",
	"AC1014": "R14",
	"AC1015": "AutoCAD 2000",
	"AC1018": "AutoCAD 2004",
	"AC1021": "AutoCAD 2007",
	"AC1024": "AutoCAD 2010",
	"AC1027": "AutoCAD 2013",
	"AC1032": "AutoCAD 2018",
}

// ReleaseName translates an $ACADVER string such as AC1032.
func ReleaseName(acadver string) string {
	if r, ok := releases[acadver]; ok {
		return r
	}
	return ""
}
