package commands

import (
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/boqbuilder/internal/config"
	derrors "git.home.luguber.info/inful/boqbuilder/internal/foundation/errors"
)

// DefaultConfigFile is where init writes when no --config is given.
const DefaultConfigFile = "boqbuilder.yaml"

// Global carries process-wide collaborators into every command.
type Global struct {
	Logger *slog.Logger
	Out    io.Writer
	Err    io.Writer
}

// CLI definition & global flags.
type CLI struct {
	Config    string           `short:"c" help:"Configuration file path (built-in defaults when empty)" env:"BOQ_CONFIG"`
	Verbose   bool             `short:"v" help:"Enable verbose logging"`
	LogFormat string           `name:"log-format" help:"Log format override: text or json"`
	Version   kong.VersionFlag `name:"version" help:"Show version and exit"`

	Run        RunCmd        `cmd:"" help:"Process one drawing into a bill of quantities"`
	Serve      ServeCmd      `cmd:"" help:"Start the job service (HTTP API, inbox watcher, scheduler)"`
	Converters ConvertersCmd `cmd:"" help:"List DWG conversion backends and whether they are installed"`
	Catalog    CatalogCmd    `cmd:"" help:"Load a block catalog and report its entries"`
	Init       InitCmd       `cmd:"" help:"Write a default configuration file"`
}

// AfterApply runs after flag parsing and installs the startup logger. The
// configured level and format take over once a command loads configuration.
func (c *CLI) AfterApply(g *Global) error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	g.Logger = NewLogger(g.errWriter(), level, config.NormalizeLogFormat(c.LogFormat))
	slog.SetDefault(g.Logger)
	return nil
}

// LoadConfig reads the configuration and reconfigures logging from it.
func (c *CLI) LoadConfig(g *Global) (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return nil, derrors.WrapError(err, derrors.CategoryConfig, "failed to load configuration").
			WithContext("path", c.Config).Build()
	}
	level := cfg.Logging.Level.SlogLevel()
	if c.Verbose {
		level = slog.LevelDebug
	}
	format := cfg.Logging.Format
	if c.LogFormat != "" {
		format = config.NormalizeLogFormat(c.LogFormat)
	}
	g.Logger = NewLogger(g.errWriter(), level, format)
	slog.SetDefault(g.Logger)
	return cfg, nil
}

// NewLogger builds the process logger. Logs go to stderr so stdout stays
// free for command output.
func NewLogger(w io.Writer, level slog.Level, format config.LogFormat) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (g *Global) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

func (g *Global) errWriter() io.Writer {
	if g.Err == nil {
		return os.Stderr
	}
	return g.Err
}
