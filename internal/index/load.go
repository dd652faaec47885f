package index

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"

	"RuntimeLink/definitions"
	"RuntimeLink/internal/diff"
	"RuntimeLink/internal/image"
)

var (
	ErrNoBaseline = errors.New("runtime image carries no link baseline")
	ErrMalformed  = errors.New("link baseline is malformed")
)

// Load reads the baseline embedded in img. Modules are discovered from the file-list
// resources present, so no prior knowledge of the installed module set is needed.
func Load(img image.Resource, linkTool string) (Baseline, error) {
	raw, err := img.ReadEntry(DiffResource(linkTool))
	if err != nil {
		if errors.Is(err, image.ErrNotFound) {
			return Baseline{}, ErrNoBaseline
		}
		return Baseline{}, fmt.Errorf("read baseline diff: %w", err)
	}
	diffs, err := diff.Decode(bytes.NewReader(raw))
	if err != nil {
		return Baseline{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	b := Baseline{Diffs: diffs}
	seen := make(map[string]string)
	for _, e := range img.ListEntries() {
		module, ok := moduleFromFileList(linkTool, e.Name)
		if !ok {
			continue
		}
		raw, err := img.ReadEntry(e.Name)
		if err != nil {
			return Baseline{}, fmt.Errorf("read file list for %s: %w", module, err)
		}
		lines, err := definitions.ReadFileList(bytes.NewReader(raw))
		if err != nil {
			return Baseline{}, fmt.Errorf("%w: %s: %v", ErrMalformed, module, err)
		}
		for _, l := range lines {
			rel, err := cleanRelative(l.Path)
			if err != nil {
				return Baseline{}, fmt.Errorf("%w: %s: %v", ErrMalformed, module, err)
			}
			if owner, dup := seen[rel]; dup {
				return Baseline{}, fmt.Errorf("%w: %s recorded by both %s and %s", ErrMalformed, rel, owner, module)
			}
			seen[rel] = module

			d, err := definitions.ParseDigestHex(l.Hex)
			if err != nil {
				return Baseline{}, fmt.Errorf("%w: %s: %v", ErrMalformed, rel, err)
			}
			b.Files = append(b.Files, FileRecord{Module: module, Path: rel, Size: l.Size, Digest: d})
		}
	}
	return b, nil
}

// Resources encodes b as the named container entries that Load reads back.
func Resources(b Baseline, linkTool string) (map[string][]byte, error) {
	out := make(map[string][]byte)

	var buf bytes.Buffer
	if err := diff.Encode(&buf, b.Diffs); err != nil {
		return nil, err
	}
	out[DiffResource(linkTool)] = buf.Bytes()

	byModule := make(map[string][]definitions.FileLine)
	var order []string
	for _, f := range b.Files {
		if _, ok := byModule[f.Module]; !ok {
			order = append(order, f.Module)
		}
		byModule[f.Module] = append(byModule[f.Module], definitions.FileLine{
			Size: f.Size,
			Hex:  f.Digest.Encoded(),
			Path: f.Path,
		})
	}
	for _, module := range order {
		var fb bytes.Buffer
		if err := definitions.WriteFileList(&fb, byModule[module]); err != nil {
			return nil, err
		}
		out[FileListResource(linkTool, module)] = fb.Bytes()
	}
	return out, nil
}

func cleanRelative(p string) (string, error) {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return "", fmt.Errorf("invalid relative path %q", p)
	}
	clean := path.Clean(p)
	if clean != p || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid relative path %q", p)
	}
	return clean, nil
}
