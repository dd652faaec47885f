package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"RuntimeLink/internal/config"
	"RuntimeLink/internal/image"
	"RuntimeLink/internal/index"
	"RuntimeLink/internal/layout"
	"RuntimeLink/internal/metrics"
	"RuntimeLink/internal/override"
	"RuntimeLink/internal/policy"
	"RuntimeLink/internal/progress"
	"RuntimeLink/internal/verify"
)

// Represents the root command of relinkcheck.
type RelinkRoot struct {
	Globals

	Verify  VerifyCmd  `cmd:"" help:"Check that the run-time image may be relinked."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// Relinkcheck parses args and runs the selected relinkcheck command, returning the exit code.
func Relinkcheck(ctx context.Context, args []string, s Streams) int {
	root := &RelinkRoot{}
	return execute(ctx, root, &root.Globals, "relinkcheck",
		"Verifies an installed run-time image against its link baseline before relinking.",
		args, s)
}

// Represents the 'relinkcheck verify' command.
type VerifyCmd struct {
	Root                  string   `short:"r" required:"" type:"existingdir" env:"RUNTIMELINK_ROOT" placeholder:"DIR" help:"Installation root of the run-time image."`
	Override              []string `sep:"none" placeholder:"MODULE|PATH|DIGEST" help:"Accept a modified file with this SHA-512 digest. Repeatable; several triples may be comma separated; @FILE reads a file."`
	OverrideFile          []string `sep:"none" placeholder:"FILE" help:"Read override triples from FILE, one per line. The install root token in FILE is replaced with --root."`
	IgnoreModifiedRuntime bool     `help:"Warn about modified files instead of failing."`
	AddModules            []string `placeholder:"MODULE,..." help:"Modules requested for the new image."`
	KeepPackagedModules   bool     `help:"Request that packaged modules be kept in the new image."`
	Patching              bool     `help:"Module patching is active in the running installation."`
	Workers               int      `short:"w" placeholder:"N" help:"Number of hashing workers."`
	Progress              string   `placeholder:"auto|always|never" help:"Draw a progress bar while hashing."`
	Stats                 bool     `help:"Print verification statistics after the decision."`
}

// Executes the verify command.
//
// Restrictions are checked before any file is hashed. Every offending file is reported on
// stderr; the command exits non-zero unless the decision accepts the image.
func (c *VerifyCmd) Run(ctx context.Context, g *Globals, s *Streams) error {
	cfg, err := g.setup(s)
	if err != nil {
		return err
	}

	root, err := filepath.Abs(c.Root)
	if err != nil {
		return fail(err, "cannot resolve the installation root %s", c.Root)
	}

	var files []string
	if cfg.OverrideFile != "" {
		files = append(files, cfg.OverrideFile)
	}
	files = append(files, c.OverrideFile...)
	inline := append(append([]string(nil), cfg.Overrides...), c.Override...)
	overrides, err := override.Build(inline, files, root)
	if err != nil {
		return fail(err, "%s", err.Error())
	}
	slog.Debug("overrides loaded", "count", overrides.Len())

	workers := cfg.Workers
	if c.Workers > 0 {
		workers = c.Workers
	}
	mode := cfg.Progress
	if c.Progress != "" {
		mode = strings.ToLower(c.Progress)
	}
	switch mode {
	case "auto", "always", "never":
	default:
		return fail(nil, "--progress must be one of auto, always or never")
	}

	req := policy.Request{
		Modules:      c.AddModules,
		KeepPackaged: c.KeepPackagedModules,
		Lenient:      c.IgnoreModifiedRuntime || cfg.Lenient,
	}
	src := policy.Source{
		HasPackagedModules: layout.HasPackagedModules(root),
		Patched:            c.Patching || layout.PatchingActive(s.Environ, cfg.PatchEnv),
	}

	stats := &metrics.Stats{}
	v := &imageVerifier{
		root:      root,
		cfg:       cfg,
		overrides: overrides,
		workers:   workers,
		progress:  mode,
		stats:     stats,
		streams:   s,
	}

	d := policy.Policy{LinkTool: cfg.LinkToolModule}.Evaluate(ctx, req, src, v)
	slog.Info("link decision", "outcome", d.Outcome.String(), "state", d.State.String(), "files", len(d.Results))

	printDecision(s, d)
	if c.Stats {
		metrics.Print(s.Stdout, stats)
	}
	if !d.Accepted() {
		return errReported
	}
	return nil
}

func printDecision(s *Streams, d policy.Decision) {
	if d.Outcome == policy.Fail && d.State != policy.Decide {
		var f *failure
		if errors.As(d.Err, &f) {
			slog.Debug("verification failed", "error", f.err)
			fmt.Fprintf(s.Stderr, "Error: %s\n", f.msg)
			return
		}
		for _, line := range d.Diagnostics {
			fmt.Fprintf(s.Stderr, "Error: %s\n", line)
		}
		return
	}
	for _, r := range d.Results {
		if r.Err != nil {
			slog.Debug("file could not be read", "path", r.Path, "error", r.Err)
		}
	}
	for _, line := range d.Diagnostics {
		fmt.Fprintln(s.Stderr, line)
	}
}

// imageVerifier opens the module container and loads its baseline only once the
// restriction checks have passed.
type imageVerifier struct {
	root      string
	cfg       config.Config
	overrides override.Registry
	workers   int
	progress  string
	stats     *metrics.Stats
	streams   *Streams
}

func (v *imageVerifier) Verify(ctx context.Context) ([]verify.Result, error) {
	img, err := image.OpenContainer(layout.Layout{Root: v.root}.ModulesPath())
	if err != nil {
		return nil, fail(err, "cannot open the module container of the run-time image at %s", v.root)
	}
	defer func() {
		_ = img.Close()
	}()

	baseline, err := index.Load(img, v.cfg.LinkToolModule)
	if err != nil {
		if errors.Is(err, index.ErrNoBaseline) {
			return nil, fail(err, "the run-time image at %s does not support linking from itself", v.root)
		}
		return nil, fail(err, "the link baseline of the run-time image is damaged")
	}
	slog.Debug("baseline loaded", "modules", len(baseline.Modules()), "files", len(baseline.Files), "diffs", len(baseline.Diffs))

	var bar *progress.Bar
	if v.showProgress() {
		bar = progress.New(v.streams.Stderr, baseline.TotalBytes(), v.stats)
	}

	vv := &verify.Verifier{
		Root:      v.root,
		Baseline:  baseline,
		Overrides: v.overrides,
		Options:   verify.Options{Workers: v.workers},
		Stats:     v.stats,
		Bar:       bar,
	}
	v.stats.Start()
	res, err := vv.Verify(ctx)
	v.stats.Stop()
	bar.Close()
	return res, err
}

func (v *imageVerifier) showProgress() bool {
	switch v.progress {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := v.streams.Stderr.(*os.File)
	return ok && progress.Enabled(f)
}
