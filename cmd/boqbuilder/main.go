package main

import (
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/boqbuilder/cmd/boqbuilder/commands"
	derrors "git.home.luguber.info/inful/boqbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/boqbuilder/internal/version"
)

func main() {
	var cli commands.CLI
	globals := &commands.Global{Out: os.Stdout, Err: os.Stderr}

	ctx := kong.Parse(&cli,
		kong.Name("boqbuilder"),
		kong.Description("Turn CAD drawings into bill-of-quantities spreadsheets."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(globals),
	)

	err := ctx.Run(globals, &cli)
	derrors.NewCLIErrorAdapter(cli.Verbose, globals.Logger).HandleError(err)
}
