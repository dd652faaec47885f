package diff

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"RuntimeLink/internal/image"
)

// DefaultBufferSize is the chunk size used when comparing entry content.
const DefaultBufferSize = 8192

type options struct {
	bufferSize int
	exclude    func(name string) bool
}

type Option func(*options)

func WithBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.bufferSize = n
		}
	}
}

// WithExclude drops names for which fn returns true from both images before comparing.
func WithExclude(fn func(name string) bool) Option {
	return func(o *options) {
		o.exclude = fn
	}
}

// ExcludeStructural matches the container's structural index entries, whose bytes carry
// build-dependent offsets and are regenerated on every link.
func ExcludeStructural(name string) bool {
	return strings.HasPrefix(name, "/packages/") || strings.HasPrefix(name, "/modules/")
}

// Generate lists the differences between base and optimized. Removed and Modified records come
// first in base enumeration order, followed by Added records in optimized enumeration order.
func Generate(base, optimized image.Resource, opts ...Option) ([]ResourceDiff, error) {
	o := options{bufferSize: DefaultBufferSize}
	for _, fn := range opts {
		fn(&o)
	}
	skip := func(name string) bool { return o.exclude != nil && o.exclude(name) }

	optSizes := make(map[string]int64)
	for _, e := range optimized.ListEntries() {
		if !skip(e.Name) {
			optSizes[e.Name] = e.Size
		}
	}

	bufA := make([]byte, o.bufferSize)
	bufB := make([]byte, o.bufferSize)

	var out []ResourceDiff
	classified := make(map[string]bool, len(optSizes))
	for _, e := range base.ListEntries() {
		if skip(e.Name) {
			continue
		}
		optSize, ok := optSizes[e.Name]
		if !ok {
			content, err := base.ReadEntry(e.Name)
			if err != nil {
				return nil, fmt.Errorf("read base %s: %w", e.Name, err)
			}
			out = append(out, ResourceDiff{Name: e.Name, Kind: Removed, Baseline: content})
			continue
		}
		classified[e.Name] = true

		same := false
		if e.Size == optSize {
			var err error
			same, err = sameContent(base, optimized, e.Name, bufA, bufB)
			if err != nil {
				return nil, err
			}
		}
		if same {
			continue
		}
		content, err := base.ReadEntry(e.Name)
		if err != nil {
			return nil, fmt.Errorf("read base %s: %w", e.Name, err)
		}
		out = append(out, ResourceDiff{Name: e.Name, Kind: Modified, Baseline: content})
	}

	for _, e := range optimized.ListEntries() {
		if skip(e.Name) || classified[e.Name] {
			continue
		}
		out = append(out, ResourceDiff{Name: e.Name, Kind: Added})
	}
	return out, nil
}

// sameContent streams both entries chunk by chunk and stops at the first difference.
func sameContent(base, optimized image.Resource, name string, bufA, bufB []byte) (bool, error) {
	ra, err := base.Open(name)
	if err != nil {
		return false, fmt.Errorf("open base %s: %w", name, err)
	}
	defer func() {
		_ = ra.Close()
	}()
	rb, err := optimized.Open(name)
	if err != nil {
		return false, fmt.Errorf("open optimized %s: %w", name, err)
	}
	defer func() {
		_ = rb.Close()
	}()

	for {
		na, errA := io.ReadFull(ra, bufA)
		nb, errB := io.ReadFull(rb, bufB)
		endA, err := chunkEnd(errA)
		if err != nil {
			return false, fmt.Errorf("read base %s: %w", name, err)
		}
		endB, err := chunkEnd(errB)
		if err != nil {
			return false, fmt.Errorf("read optimized %s: %w", name, err)
		}
		if na != nb || !bytes.Equal(bufA[:na], bufB[:nb]) {
			return false, nil
		}
		if endA || endB {
			return endA == endB, nil
		}
	}
}

func chunkEnd(err error) (bool, error) {
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true, nil
	default:
		return false, err
	}
}
