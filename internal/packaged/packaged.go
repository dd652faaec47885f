// Package packaged reads per-module packaged archives. A packaged module keeps its class and
// resource bytes under classes/ and the files it installs under one section directory each.
package packaged

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"RuntimeLink/definitions"
	"RuntimeLink/internal/image"
	"RuntimeLink/internal/index"
	"RuntimeLink/internal/layout"
)

var ErrNoModules = errors.New("no packaged modules found")

const classesDir = "classes"

var sections = []layout.Section{layout.SectionBin, layout.SectionConf, layout.SectionLib, layout.SectionLegal}

// Module is one packaged module opened read-only.
type Module struct {
	Name   string
	Source image.Resource
}

// File is an installable file carried by a packaged module.
type File struct {
	Section layout.Section
	Entry   image.Entry
	// Install is the path relative to the installation root.
	Install string
}

// Discover opens every packaged module in dir: *.jmod archives and exploded module
// directories. Modules are returned in name order. On error every opened module is closed.
func Discover(dir string) ([]Module, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var mods []Module
	for _, e := range entries {
		var (
			name string
			src  image.Resource
		)
		p := filepath.Join(dir, e.Name())
		switch {
		case e.IsDir():
			name = e.Name()
			src, err = image.OpenDir(p)
		case strings.HasSuffix(e.Name(), layout.JmodExt):
			name = strings.TrimSuffix(e.Name(), layout.JmodExt)
			src, err = image.OpenArchive(p)
		default:
			continue
		}
		if err != nil {
			Close(mods)
			return nil, fmt.Errorf("open packaged module %s: %w", e.Name(), err)
		}
		mods = append(mods, Module{Name: name, Source: src})
	}
	if len(mods) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoModules, dir)
	}
	sort.Slice(mods, func(i, j int) bool { return mods[i].Name < mods[j].Name })
	return mods, nil
}

func Close(mods []Module) {
	for _, m := range mods {
		_ = m.Source.Close()
	}
}

// Files lists the installable files of m in the module's enumeration order.
func Files(m Module) []File {
	var out []File
	for _, e := range m.Source.ListEntries() {
		top, rel, ok := strings.Cut(strings.TrimPrefix(e.Name, "/"), "/")
		if !ok || rel == "" {
			continue
		}
		for _, s := range sections {
			if top == string(s) {
				out = append(out, File{Section: s, Entry: e, Install: layout.InstallPath(m.Name, s, rel)})
				break
			}
		}
	}
	return out
}

// Records digests every installable file of mods as it would be recorded at packaging time.
func Records(mods []Module) ([]index.FileRecord, error) {
	var out []index.FileRecord
	for _, m := range mods {
		for _, f := range Files(m) {
			rec, err := record(m, f)
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
	}
	return out, nil
}

func record(m Module, f File) (index.FileRecord, error) {
	rc, err := m.Source.Open(f.Entry.Name)
	if err != nil {
		return index.FileRecord{}, err
	}
	defer func() {
		_ = rc.Close()
	}()

	digester := definitions.DigestAlgorithm.Digester()
	n, err := io.Copy(digester.Hash(), rc)
	if err != nil {
		return index.FileRecord{}, fmt.Errorf("digest %s:%s: %w", m.Name, f.Entry.Name, err)
	}
	return index.FileRecord{Module: m.Name, Path: f.Install, Size: n, Digest: digester.Digest()}, nil
}

type classRef struct {
	src  image.Resource
	name string
}

type classView struct {
	entries []image.Entry
	refs    map[string]classRef
}

// Classes is the module-container view of mods: classes/<p> of module m appears as
// /<m>/<p>, in module order then each module's own order. It is the pre-optimization base a
// linked container is diffed against. Closing the view does not close the modules.
func Classes(mods []Module) image.Resource {
	v := &classView{refs: make(map[string]classRef)}
	for _, m := range mods {
		for _, e := range m.Source.ListEntries() {
			rel, ok := strings.CutPrefix(e.Name, "/"+classesDir+"/")
			if !ok || rel == "" {
				continue
			}
			name := "/" + m.Name + "/" + rel
			if _, dup := v.refs[name]; dup {
				continue
			}
			v.refs[name] = classRef{src: m.Source, name: e.Name}
			v.entries = append(v.entries, image.Entry{Name: name, Size: e.Size})
		}
	}
	return v
}

func (v *classView) ListEntries() []image.Entry {
	return append([]image.Entry(nil), v.entries...)
}

func (v *classView) Open(name string) (io.ReadCloser, error) {
	ref, ok := v.refs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", image.ErrNotFound, name)
	}
	return ref.src.Open(ref.name)
}

func (v *classView) ReadEntry(name string) ([]byte, error) {
	ref, ok := v.refs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", image.ErrNotFound, name)
	}
	return ref.src.ReadEntry(ref.name)
}

func (v *classView) Close() error { return nil }
