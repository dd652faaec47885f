package image

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Dir is an exploded directory tree. Only regular files are entries.
type Dir struct {
	root    string
	entries []Entry
	byName  map[string]int
	closed  bool
}

func OpenDir(root string) (*Dir, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	d := &Dir{root: root, byName: make(map[string]int)}
	err = filepath.WalkDir(root, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !de.Type().IsRegular() {
			return nil
		}
		fi, err := de.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		d.entries = append(d.entries, Entry{Name: entryName(filepath.ToSlash(rel)), Size: fi.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Slice(d.entries, func(i, j int) bool { return d.entries[i].Name < d.entries[j].Name })
	for i, e := range d.entries {
		d.byName[e.Name] = i
	}
	return d, nil
}

func (d *Dir) Root() string { return d.root }

func (d *Dir) ListEntries() []Entry {
	return append([]Entry(nil), d.entries...)
}

func (d *Dir) Open(name string) (io.ReadCloser, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if _, ok := d.byName[name]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return os.Open(filepath.Join(d.root, filepath.FromSlash(name[1:]))) // #nosec G304
}

func (d *Dir) ReadEntry(name string) ([]byte, error) {
	i, ok := d.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return readAll(d, name, d.entries[i].Size)
}

func (d *Dir) Close() error {
	d.closed = true
	return nil
}
