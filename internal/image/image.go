package image

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrNotFound = errors.New("entry not found")
	ErrClosed   = errors.New("image is closed")
)

type Kind int

const (
	KindDir Kind = iota
	KindArchive
	KindContainer
)

func (k Kind) String() string {
	switch k {
	case KindDir:
		return "dir"
	case KindArchive:
		return "archive"
	case KindContainer:
		return "container"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dir", "directory":
		return KindDir, nil
	case "archive", "zip", "jmod":
		return KindArchive, nil
	case "container", "modules":
		return KindContainer, nil
	default:
		return 0, fmt.Errorf("unknown image kind %q", s)
	}
}

// Entry describes one named blob. Names are "/"-prefixed slash paths, unique within an image.
type Entry struct {
	Name string
	Size int64
}

type Resource interface {
	// ListEntries returns every entry in the backend's stable enumeration order.
	ListEntries() []Entry
	Open(name string) (io.ReadCloser, error)
	ReadEntry(name string) ([]byte, error)
	Close() error
}

func Open(kind Kind, path string) (Resource, error) {
	switch kind {
	case KindDir:
		return OpenDir(path)
	case KindArchive:
		return OpenArchive(path)
	case KindContainer:
		return OpenContainer(path)
	default:
		return nil, fmt.Errorf("unsupported image kind %v", kind)
	}
}

// Names returns the entry names of r in enumeration order.
func Names(r Resource) []string {
	entries := r.ListEntries()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func readAll(r Resource, name string, size int64) ([]byte, error) {
	rc, err := r.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rc.Close()
	}()

	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if int64(len(b)) != size {
		return nil, fmt.Errorf("read %s: got %d bytes, want %d", name, len(b), size)
	}
	return b, nil
}

func entryName(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	return "/" + rel
}
