package image

import (
	"bytes"
	"fmt"
	"io"
	"sort"
)

// Memory is an in-memory image. Enumeration order is insertion order.
type Memory struct {
	entries []Entry
	data    map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Add inserts or replaces name. A replaced entry keeps its position.
func (m *Memory) Add(name string, content []byte) *Memory {
	name = entryName(name)
	if _, ok := m.data[name]; ok {
		for i := range m.entries {
			if m.entries[i].Name == name {
				m.entries[i].Size = int64(len(content))
			}
		}
	} else {
		m.entries = append(m.entries, Entry{Name: name, Size: int64(len(content))})
	}
	m.data[name] = append([]byte{}, content...)
	return m
}

func (m *Memory) ListEntries() []Entry {
	return append([]Entry(nil), m.entries...)
}

func (m *Memory) Open(name string) (io.ReadCloser, error) {
	b, ok := m.data[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *Memory) ReadEntry(name string) ([]byte, error) {
	b, ok := m.data[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return append([]byte{}, b...), nil
}

func (m *Memory) Close() error { return nil }

type overlay struct {
	base    Resource
	extra   map[string][]byte
	entries []Entry
}

// Overlay returns a view of base with extra entries added or replaced. Replaced entries keep
// their base position; new names follow the base entries in name order. Closing the view does
// not close base.
func Overlay(base Resource, extra map[string][]byte) Resource {
	o := &overlay{base: base, extra: make(map[string][]byte, len(extra))}
	for name, b := range extra {
		o.extra[entryName(name)] = b
	}

	seen := make(map[string]bool, len(o.extra))
	for _, e := range base.ListEntries() {
		if b, ok := o.extra[e.Name]; ok {
			e.Size = int64(len(b))
			seen[e.Name] = true
		}
		o.entries = append(o.entries, e)
	}
	var added []string
	for name := range o.extra {
		if !seen[name] {
			added = append(added, name)
		}
	}
	sort.Strings(added)
	for _, name := range added {
		o.entries = append(o.entries, Entry{Name: name, Size: int64(len(o.extra[name]))})
	}
	return o
}

func (o *overlay) ListEntries() []Entry {
	return append([]Entry(nil), o.entries...)
}

func (o *overlay) Open(name string) (io.ReadCloser, error) {
	if b, ok := o.extra[name]; ok {
		return io.NopCloser(bytes.NewReader(b)), nil
	}
	return o.base.Open(name)
}

func (o *overlay) ReadEntry(name string) ([]byte, error) {
	if b, ok := o.extra[name]; ok {
		return append([]byte{}, b...), nil
	}
	return o.base.ReadEntry(name)
}

func (o *overlay) Close() error { return nil }

type filtered struct {
	base    Resource
	entries []Entry
	drop    func(string) bool
}

// Filter returns a view of base without the entries drop reports. Closing the view does not
// close base.
func Filter(base Resource, drop func(name string) bool) Resource {
	f := &filtered{base: base, drop: drop}
	for _, e := range base.ListEntries() {
		if !drop(e.Name) {
			f.entries = append(f.entries, e)
		}
	}
	return f
}

func (f *filtered) ListEntries() []Entry {
	return append([]Entry(nil), f.entries...)
}

func (f *filtered) Open(name string) (io.ReadCloser, error) {
	if f.drop(name) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return f.base.Open(name)
}

func (f *filtered) ReadEntry(name string) ([]byte, error) {
	if f.drop(name) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return f.base.ReadEntry(name)
}

func (f *filtered) Close() error { return nil }
