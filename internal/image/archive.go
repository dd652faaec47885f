package image

import (
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Archive is a zip file, the on-disk form of a packaged module.
type Archive struct {
	rc      *zip.ReadCloser
	entries []Entry
	files   map[string]*zip.File
}

func OpenArchive(p string) (*Archive, error) {
	rc, err := zip.OpenReader(p)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", p, err)
	}

	a := &Archive{rc: rc, files: make(map[string]*zip.File, len(rc.File))}
	for _, f := range rc.File {
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		clean := path.Clean("/" + f.Name)
		if clean != "/"+f.Name {
			_ = rc.Close()
			return nil, fmt.Errorf("archive %s: unsafe entry name %q", p, f.Name)
		}
		if _, dup := a.files[clean]; dup {
			_ = rc.Close()
			return nil, fmt.Errorf("archive %s: duplicate entry %q", p, f.Name)
		}
		a.files[clean] = f
		a.entries = append(a.entries, Entry{Name: clean, Size: int64(f.UncompressedSize64)})
	}
	sort.Slice(a.entries, func(i, j int) bool { return a.entries[i].Name < a.entries[j].Name })
	return a, nil
}

func (a *Archive) ListEntries() []Entry {
	return append([]Entry(nil), a.entries...)
}

func (a *Archive) Open(name string) (io.ReadCloser, error) {
	if a.rc == nil {
		return nil, ErrClosed
	}
	f, ok := a.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return f.Open()
}

func (a *Archive) ReadEntry(name string) ([]byte, error) {
	f, ok := a.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return readAll(a, name, int64(f.UncompressedSize64))
}

func (a *Archive) Close() error {
	if a.rc == nil {
		return nil
	}
	err := a.rc.Close()
	a.rc = nil
	return err
}
