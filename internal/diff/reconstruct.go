package diff

import (
	"bytes"
	"fmt"
	"io"

	"RuntimeLink/internal/image"
)

type reconstructed struct {
	optimized image.Resource
	recorded  map[string][]byte
	hidden    map[string]bool
	entries   []image.Entry
}

// Reconstruct returns a read-only view of the base image that produced diffs. Added entries
// are hidden, Removed and Modified entries serve their recorded bytes, and all other entries
// pass through to optimized. Closing the view does not close optimized.
func Reconstruct(optimized image.Resource, diffs []ResourceDiff) image.Resource {
	r := &reconstructed{
		optimized: optimized,
		recorded:  make(map[string][]byte),
		hidden:    make(map[string]bool),
	}
	for _, d := range diffs {
		switch d.Kind {
		case Added:
			r.hidden[d.Name] = true
		case Removed, Modified:
			r.recorded[d.Name] = d.Baseline
		}
	}

	placed := make(map[string]bool, len(r.recorded))
	for _, e := range optimized.ListEntries() {
		if r.hidden[e.Name] {
			continue
		}
		if b, ok := r.recorded[e.Name]; ok {
			e.Size = int64(len(b))
			placed[e.Name] = true
		}
		r.entries = append(r.entries, e)
	}
	for _, d := range diffs {
		if d.Kind == Added || placed[d.Name] {
			continue
		}
		placed[d.Name] = true
		r.entries = append(r.entries, image.Entry{Name: d.Name, Size: int64(len(d.Baseline))})
	}
	return r
}

func (r *reconstructed) ListEntries() []image.Entry {
	return append([]image.Entry(nil), r.entries...)
}

func (r *reconstructed) Open(name string) (io.ReadCloser, error) {
	if b, ok := r.recorded[name]; ok {
		return io.NopCloser(bytes.NewReader(b)), nil
	}
	if r.hidden[name] {
		return nil, fmt.Errorf("%w: %s", image.ErrNotFound, name)
	}
	return r.optimized.Open(name)
}

func (r *reconstructed) ReadEntry(name string) ([]byte, error) {
	if b, ok := r.recorded[name]; ok {
		return append([]byte{}, b...), nil
	}
	if r.hidden[name] {
		return nil, fmt.Errorf("%w: %s", image.ErrNotFound, name)
	}
	return r.optimized.ReadEntry(name)
}

func (r *reconstructed) Close() error { return nil }
