package commands

import (
	"fmt"

	"git.home.luguber.info/inful/boqbuilder/internal/config"
	derrors "git.home.luguber.info/inful/boqbuilder/internal/foundation/errors"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite existing configuration file"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	path := root.Config
	if path == "" {
		path = DefaultConfigFile
	}
	fmt.Fprintf(g.out(), "Writing configuration to %s\n", path)
	if err := config.Init(path, i.Force); err != nil {
		return derrors.WrapError(err, derrors.CategoryConfig, "initialization failed").
			WithContext("path", path).Build()
	}
	fmt.Fprintln(g.out(), "initialized successfully")
	return nil
}
