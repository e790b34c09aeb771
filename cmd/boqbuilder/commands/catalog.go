package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"git.home.luguber.info/inful/boqbuilder/internal/catalog"
	derrors "git.home.luguber.info/inful/boqbuilder/internal/foundation/errors"
)

// CatalogCmd implements the 'catalog' command.
type CatalogCmd struct {
	Path string `arg:"" optional:"" help:"Catalog file; defaults to the configured catalog"`
	List bool   `short:"l" help:"Print every entry"`
}

func (c *CatalogCmd) Run(g *Global, root *CLI) error {
	path := c.Path
	if path == "" {
		cfg, err := root.LoadConfig(g)
		if err != nil {
			return err
		}
		path = cfg.Catalog.Path
	}
	return c.report(g.out(), path)
}

func (c *CatalogCmd) report(w io.Writer, path string) error {
	if path == "" {
		return derrors.ValidationError("no catalog path given or configured").Build()
	}
	if _, err := os.Stat(path); err != nil {
		// Load treats a missing file as an empty catalog; asking about one is a mistake.
		return derrors.NotFoundError("catalog file not found").WithContext("path", path).Build()
	}
	cat, err := catalog.Load(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %d entries\n", path, cat.Len())
	if !c.List {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BLOCK\tITEM\tCATEGORY\tDESCRIPTION\tUOM")
	for _, e := range cat.Entries() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.RawBlockName, e.ItemCode, e.Category, e.Description, e.UOM)
	}
	return tw.Flush()
}
