package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"git.home.luguber.info/inful/boqbuilder/internal/convert"
	"git.home.luguber.info/inful/boqbuilder/internal/metrics"
)

// ConvertersCmd implements the 'converters' command.
type ConvertersCmd struct{}

func (c *ConvertersCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(g)
	if err != nil {
		return err
	}
	conv := convert.FromConfig(cfg.Conversion, convert.ExecRunner{}, metrics.NoopRecorder{})
	return printBackends(g.out(), conv.Available())
}

func printBackends(w io.Writer, backends []convert.BackendStatus) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPRIORITY\tAVAILABLE\tBINARY")
	for _, b := range backends {
		avail := "no"
		if b.Available {
			avail = "yes"
		}
		bin := b.Binary
		if bin == "" {
			bin = "-"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", b.Name, b.Priority, avail, bin)
	}
	return tw.Flush()
}
