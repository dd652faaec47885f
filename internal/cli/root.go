package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"RuntimeLink/internal/config"
	"RuntimeLink/internal/logging"

	"github.com/alecthomas/kong"
)

// Version is set with -ldflags "-X RuntimeLink/internal/cli.Version=...".
var Version = "(local)"

// Streams carries the process I/O a command may touch.
type Streams struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Environ []string
}

// Globals are the flags shared by every command.
type Globals struct {
	Quiet   bool   `short:"q" help:"Only log errors."`
	Verbose bool   `short:"v" help:"Log informational messages."`
	Debug   bool   `short:"d" help:"Log debug messages."`
	Config  string `short:"c" type:"path" placeholder:"FILE" help:"Configuration file."`
}

// errReported means the command already wrote its diagnostics and only the exit code remains.
var errReported = errors.New("diagnostics reported")

// failure is a user-facing error. Only msg is shown; the cause is logged at debug level.
type failure struct {
	msg string
	err error
}

func (f *failure) Error() string { return f.msg }
func (f *failure) Unwrap() error { return f.err }

func fail(err error, format string, args ...any) error {
	return &failure{msg: fmt.Sprintf(format, args...), err: err}
}

// setup loads the configuration and installs the process logger.
func (g *Globals) setup(s *Streams) (config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		slog.SetDefault(logging.New("text", logging.Level(g.Quiet, g.Verbose, g.Debug, "warn"), s.Stderr))
		var pe *config.ParseError
		if errors.As(err, &pe) {
			return config.Config{}, fail(pe.Err, "%s", pe.Error())
		}
		if errors.Is(err, config.ErrInvalid) {
			return config.Config{}, fail(err, "%s", err.Error())
		}
		return config.Config{}, fail(err, "cannot read the configuration file")
	}
	slog.SetDefault(logging.New(cfg.LogFormat, logging.Level(g.Quiet, g.Verbose, g.Debug, cfg.LogLevel), s.Stderr))
	return cfg, nil
}

func execute(ctx context.Context, root any, g *Globals, name, description string, args []string, s Streams) int {
	parser, err := kong.New(root,
		kong.Name(name),
		kong.Description(description),
		kong.UsageOnError(),
		kong.Writers(s.Stdout, s.Stderr),
		kong.Vars{"version": Version},
		kong.BindTo(ctx, (*context.Context)(nil)),
		kong.Bind(g, &s),
	)
	if err != nil {
		fmt.Fprintf(s.Stderr, "Error: %s\n", err)
		return 1
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintf(s.Stderr, "Error: %s\n", err)
		return 1
	}

	if err := kctx.Run(); err != nil {
		return report(s.Stderr, err)
	}
	return 0
}

func report(w io.Writer, err error) int {
	if errors.Is(err, errReported) {
		return 1
	}
	var f *failure
	if errors.As(err, &f) {
		if f.err != nil {
			slog.Debug("command failed", "error", f.err)
		}
		fmt.Fprintf(w, "Error: %s\n", f.msg)
		return 1
	}
	slog.Debug("command failed", "error", err)
	fmt.Fprintln(w, "Error: the command failed; rerun with --debug for details")
	return 1
}

// Represents the 'version' command of both tools.
type VersionCmd struct{}

func (c *VersionCmd) Run(s *Streams) error {
	fmt.Fprintln(s.Stdout, Version)
	return nil
}
