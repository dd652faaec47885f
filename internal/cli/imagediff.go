package cli

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"RuntimeLink/internal/config"
	"RuntimeLink/internal/diff"
	"RuntimeLink/internal/image"
	"RuntimeLink/internal/index"
	"RuntimeLink/internal/layout"
	"RuntimeLink/internal/packaged"

	"github.com/dustin/go-humanize"
)

// Represents the root command of imagediff.
type ImageRoot struct {
	Globals

	Diff        DiffCmd        `cmd:"" help:"Compare two images."`
	Capture     CaptureCmd     `cmd:"" help:"Capture a link baseline and embed it in a module container."`
	List        ListCmd        `cmd:"" help:"List the entries of an image."`
	Baseline    BaselineCmd    `cmd:"" help:"Show the link baseline embedded in a module container."`
	Reconstruct ReconstructCmd `cmd:"" help:"Rebuild the pre-optimization container from a baseline."`
	Version     VersionCmd     `cmd:"" help:"Show version information."`
}

// Imagediff parses args and runs the selected imagediff command, returning the exit code.
func Imagediff(ctx context.Context, args []string, s Streams) int {
	root := &ImageRoot{}
	return execute(ctx, root, &root.Globals, "imagediff",
		"Build-time tools for run-time image baselines.",
		args, s)
}

func openImage(kind, p string) (image.Resource, error) {
	k, err := image.ParseKind(kind)
	if err != nil {
		return nil, fail(err, "%s", err.Error())
	}
	r, err := image.Open(k, p)
	if err != nil {
		return nil, fail(err, "cannot open %s image %s", k, p)
	}
	return r, nil
}

func diffOptions(cfg config.Config, bufferSize int, keepStructural bool) []diff.Option {
	size := cfg.BufferSize
	if bufferSize > 0 {
		size = bufferSize
	}
	isBaseline := index.IsBaselineResource(cfg.LinkToolModule)
	exclude := func(name string) bool {
		return isBaseline(name) || (!keepStructural && diff.ExcludeStructural(name))
	}
	return []diff.Option{diff.WithBufferSize(size), diff.WithExclude(exclude)}
}

func printSummary(s *Streams, sum diff.Summary) {
	fmt.Fprintf(s.Stdout, "%d added, %d removed, %d modified (%s of baseline bytes)\n",
		sum.Added, sum.Removed, sum.Modified, humanize.Bytes(uint64(sum.BaselineBytes)))
}

// Represents the 'imagediff diff' command.
type DiffCmd struct {
	Base           string `arg:"" help:"Pre-optimization image."`
	Optimized      string `arg:"" help:"Post-optimization image."`
	BaseKind       string `default:"dir" enum:"dir,archive,container" help:"Backend of the base image."`
	OptimizedKind  string `default:"container" enum:"dir,archive,container" help:"Backend of the optimized image."`
	Output         string `short:"o" type:"path" placeholder:"FILE" help:"Write the encoded diff records to FILE."`
	BufferSize     int    `placeholder:"BYTES" help:"Comparison buffer size."`
	KeepStructural bool   `help:"Compare the package and module index entries too."`
}

func (c *DiffCmd) Run(g *Globals, s *Streams) error {
	cfg, err := g.setup(s)
	if err != nil {
		return err
	}

	base, err := openImage(c.BaseKind, c.Base)
	if err != nil {
		return err
	}
	defer func() {
		_ = base.Close()
	}()
	opt, err := openImage(c.OptimizedKind, c.Optimized)
	if err != nil {
		return err
	}
	defer func() {
		_ = opt.Close()
	}()

	diffs, err := diff.Generate(base, opt, diffOptions(cfg, c.BufferSize, c.KeepStructural)...)
	if err != nil {
		return fail(err, "cannot compare %s with %s", c.Base, c.Optimized)
	}
	for _, d := range diffs {
		fmt.Fprintf(s.Stdout, "%s %s\n", d.Kind, d.Name)
	}
	printSummary(s, diff.Summarize(diffs))

	if c.Output == "" {
		return nil
	}
	var buf bytes.Buffer
	if err := diff.Encode(&buf, diffs); err != nil {
		return fail(err, "cannot encode the diff")
	}
	if err := os.WriteFile(c.Output, buf.Bytes(), 0o644); err != nil { // #nosec G306
		return fail(err, "cannot write %s", c.Output)
	}
	return nil
}

// Represents the 'imagediff capture' command.
type CaptureCmd struct {
	Jmods          string `required:"" type:"existingdir" placeholder:"DIR" help:"Directory of packaged modules the image was linked from."`
	Image          string `required:"" type:"existingfile" placeholder:"FILE" help:"Linked module container."`
	Output         string `short:"o" required:"" type:"path" placeholder:"FILE" help:"Container to write, with the baseline embedded."`
	NoCompress     bool   `help:"Store every entry uncompressed."`
	KeepStructural bool   `help:"Compare the package and module index entries too."`
}

// Executes the capture command.
//
// The baseline records how the linked container differs from the classes of the packaged
// modules it contains, plus the digest of every file those modules install.
func (c *CaptureCmd) Run(g *Globals, s *Streams) error {
	cfg, err := g.setup(s)
	if err != nil {
		return err
	}
	if same(c.Image, c.Output) {
		return fail(nil, "the output container must differ from the input container")
	}

	mods, err := packaged.Discover(c.Jmods)
	if err != nil {
		return fail(err, "cannot read the packaged modules in %s", c.Jmods)
	}
	defer packaged.Close(mods)

	opt, err := image.OpenContainer(c.Image)
	if err != nil {
		return fail(err, "cannot open the module container %s", c.Image)
	}
	defer func() {
		_ = opt.Close()
	}()

	linked := make(map[string]bool)
	for _, m := range layout.Modules(opt) {
		linked[m] = true
	}
	var used []packaged.Module
	for _, m := range mods {
		if linked[m.Name] {
			used = append(used, m)
		}
	}
	if len(used) == 0 {
		return fail(nil, "no packaged module in %s is part of %s", c.Jmods, c.Image)
	}

	diffs, err := diff.Generate(packaged.Classes(used), opt, diffOptions(cfg, 0, c.KeepStructural)...)
	if err != nil {
		return fail(err, "cannot compare the packaged modules with %s", c.Image)
	}
	files, err := packaged.Records(used)
	if err != nil {
		return fail(err, "cannot digest the packaged module files")
	}

	b := index.Baseline{Diffs: diffs, Files: files}
	resources, err := index.Resources(b, cfg.LinkToolModule)
	if err != nil {
		return fail(err, "cannot encode the baseline")
	}
	src := image.Overlay(image.Filter(opt, index.IsBaselineResource(cfg.LinkToolModule)), resources)
	opts := image.WriteOptions{Compress: cfg.Compress && !c.NoCompress}
	if err := image.WriteContainer(c.Output, src, opts); err != nil {
		return fail(err, "cannot write %s", c.Output)
	}

	slog.Info("baseline captured", "modules", len(used), "files", len(files), "diffs", len(diffs), "output", c.Output)
	fmt.Fprintf(s.Stdout, "captured %d files from %d modules\n", len(files), len(used))
	printSummary(s, diff.Summarize(diffs))
	return nil
}

// Represents the 'imagediff list' command.
type ListCmd struct {
	Image string `arg:"" help:"Image to list."`
	Kind  string `default:"container" enum:"dir,archive,container" help:"Backend of the image."`
}

func (c *ListCmd) Run(g *Globals, s *Streams) error {
	if _, err := g.setup(s); err != nil {
		return err
	}
	img, err := openImage(c.Kind, c.Image)
	if err != nil {
		return err
	}
	defer func() {
		_ = img.Close()
	}()

	var total int64
	entries := img.ListEntries()
	for _, e := range entries {
		fmt.Fprintf(s.Stdout, "%12d %s\n", e.Size, e.Name)
		total += e.Size
	}
	fmt.Fprintf(s.Stdout, "%d entries, %s\n", len(entries), humanize.Bytes(uint64(total)))
	return nil
}

// Represents the 'imagediff baseline' command.
type BaselineCmd struct {
	Image string `arg:"" type:"existingfile" help:"Module container carrying a baseline."`
	Files bool   `help:"List every recorded file with its digest."`
}

func (c *BaselineCmd) Run(g *Globals, s *Streams) error {
	cfg, err := g.setup(s)
	if err != nil {
		return err
	}
	b, closeFn, err := loadBaseline(c.Image, cfg.LinkToolModule)
	if err != nil {
		return err
	}
	defer closeFn()

	for _, d := range b.Diffs {
		fmt.Fprintf(s.Stdout, "%s %s\n", d.Kind, d.Name)
	}
	printSummary(s, diff.Summarize(b.Diffs))
	if c.Files {
		for _, f := range b.Files {
			fmt.Fprintf(s.Stdout, "%s %s %d %s\n", f.Module, f.Path, f.Size, f.Digest)
		}
	}
	fmt.Fprintf(s.Stdout, "%d files recorded in %d modules (%s)\n",
		len(b.Files), len(b.Modules()), humanize.Bytes(uint64(b.TotalBytes())))
	return nil
}

// Represents the 'imagediff reconstruct' command.
type ReconstructCmd struct {
	Image      string `arg:"" type:"existingfile" help:"Module container carrying a baseline."`
	Output     string `short:"o" required:"" type:"path" placeholder:"FILE" help:"Container to write."`
	NoCompress bool   `help:"Store every entry uncompressed."`
}

func (c *ReconstructCmd) Run(g *Globals, s *Streams) error {
	cfg, err := g.setup(s)
	if err != nil {
		return err
	}
	if same(c.Image, c.Output) {
		return fail(nil, "the output container must differ from the input container")
	}

	img, err := image.OpenContainer(c.Image)
	if err != nil {
		return fail(err, "cannot open the module container %s", c.Image)
	}
	defer func() {
		_ = img.Close()
	}()
	b, err := index.Load(img, cfg.LinkToolModule)
	if err != nil {
		return fail(err, "%s carries no usable link baseline", c.Image)
	}

	view := diff.Reconstruct(image.Filter(img, index.IsBaselineResource(cfg.LinkToolModule)), b.Diffs)
	opts := image.WriteOptions{Compress: cfg.Compress && !c.NoCompress}
	if err := image.WriteContainer(c.Output, view, opts); err != nil {
		return fail(err, "cannot write %s", c.Output)
	}
	fmt.Fprintf(s.Stdout, "wrote %d entries to %s\n", len(view.ListEntries()), c.Output)
	return nil
}

func loadBaseline(p, linkTool string) (index.Baseline, func(), error) {
	img, err := image.OpenContainer(p)
	if err != nil {
		return index.Baseline{}, nil, fail(err, "cannot open the module container %s", p)
	}
	b, err := index.Load(img, linkTool)
	if err != nil {
		_ = img.Close()
		return index.Baseline{}, nil, fail(err, "%s carries no usable link baseline", p)
	}
	return b, func() { _ = img.Close() }, nil
}

func same(a, b string) bool {
	aa, err1 := filepath.Abs(a)
	bb, err2 := filepath.Abs(b)
	return err1 == nil && err2 == nil && aa == bb
}
