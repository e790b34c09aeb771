package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/boqbuilder/internal/daemon"
)

// ServeCmd implements the 'serve' command.
type ServeCmd struct {
	Addr            string        `help:"HTTP listen address, overrides configuration"`
	Inbox           string        `help:"Inbox directory to watch, overrides configuration"`
	ShutdownTimeout time.Duration `name:"shutdown-timeout" help:"Grace period for in-flight work on shutdown" default:"30s"`
}

func (s *ServeCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.LoadConfig(g)
	if err != nil {
		return err
	}
	if s.Addr != "" {
		cfg.Daemon.HTTPAddr = s.Addr
	}
	if s.Inbox != "" {
		cfg.Daemon.InboxDir = s.Inbox
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := daemon.New(ctx, cfg)
	if err != nil {
		return err
	}
	slog.Info("Service starting; send SIGINT or SIGTERM to stop")
	return d.Run(ctx, s.ShutdownTimeout)
}
