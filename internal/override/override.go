package override

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"RuntimeLink/definitions"

	"github.com/opencontainers/go-digest"
)

var ErrMalformed = errors.New("malformed override specification")

// InstallRootToken in an override file path is replaced by the installation root.
const InstallRootToken = "${install.root}"

type Key struct {
	Module string
	Path   string
}

// Entry declares the digest a legitimately changed file is expected to have.
type Entry struct {
	Module string
	Path   string
	Digest digest.Digest
}

// Registry maps (module, path) to an expected digest. It is immutable once built.
type Registry struct {
	m map[Key]digest.Digest
}

// New builds a registry from entries; a later entry for the same key replaces an earlier one.
func New(entries ...Entry) Registry {
	m := make(map[Key]digest.Digest, len(entries))
	for _, e := range entries {
		m[Key{Module: e.Module, Path: e.Path}] = e.Digest
	}
	return Registry{m: m}
}

func (r Registry) Lookup(module, relPath string) (digest.Digest, bool) {
	d, ok := r.m[Key{Module: module, Path: relPath}]
	return d, ok
}

func (r Registry) Len() int { return len(r.m) }

// Merge returns a registry holding r's entries overlaid by other's.
func (r Registry) Merge(other Registry) Registry {
	m := make(map[Key]digest.Digest, len(r.m)+len(other.m))
	for k, v := range r.m {
		m[k] = v
	}
	for k, v := range other.m {
		m[k] = v
	}
	return Registry{m: m}
}

// Entries lists the registry sorted by module then path.
func (r Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.m))
	for k, v := range r.m {
		out = append(out, Entry{Module: k.Module, Path: k.Path, Digest: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Module != out[j].Module {
			return out[i].Module < out[j].Module
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// Build parses override files, then inline values, in the order given. Later
// declarations of the same key win.
func Build(inline, files []string, installRoot string) (Registry, error) {
	var all []Entry
	for _, f := range files {
		entries, err := ParseFile(f, installRoot)
		if err != nil {
			return Registry{}, err
		}
		all = append(all, entries...)
	}
	for _, v := range inline {
		entries, err := ParseInline(v, installRoot)
		if err != nil {
			return Registry{}, err
		}
		all = append(all, entries...)
	}
	return New(all...), nil
}

// ParseInline parses "module|path|hex", several of them comma separated, or "@file".
func ParseInline(value, installRoot string) ([]Entry, error) {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "@") {
		return ParseFile(value, installRoot)
	}
	if value == "" {
		return nil, fmt.Errorf("%w: empty value", ErrMalformed)
	}

	var out []Entry
	for _, part := range strings.Split(value, ",") {
		e, err := ParseTriple(part)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// ParseFile reads one triple per line. Blank lines and lines starting with '#' are ignored.
func ParseFile(p, installRoot string) ([]Entry, error) {
	p = strings.TrimPrefix(strings.TrimSpace(p), "@")
	if p == "" {
		return nil, fmt.Errorf("%w: empty override file path", ErrMalformed)
	}
	if strings.Contains(p, InstallRootToken) {
		if installRoot == "" {
			return nil, fmt.Errorf("%w: %s used without an installation root", ErrMalformed, InstallRootToken)
		}
		p = strings.ReplaceAll(p, InstallRootToken, installRoot)
	}

	f, err := os.Open(p) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read override file %s", ErrMalformed, p)
	}
	defer func() {
		_ = f.Close()
	}()

	var out []Entry
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		e, err := ParseTriple(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", p, lineNo, err)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: cannot read override file %s", ErrMalformed, p)
	}
	return out, nil
}

func ParseTriple(s string) (Entry, error) {
	parts := strings.Split(strings.TrimSpace(s), "|")
	if len(parts) != 3 {
		return Entry{}, fmt.Errorf("%w: %q is not module|path|digest", ErrMalformed, s)
	}
	module := strings.TrimSpace(parts[0])
	if module == "" || strings.ContainsAny(module, "/\\") {
		return Entry{}, fmt.Errorf("%w: invalid module name %q", ErrMalformed, parts[0])
	}
	rel, err := cleanPath(strings.TrimSpace(parts[1]))
	if err != nil {
		return Entry{}, err
	}
	d, err := definitions.ParseDigestHex(parts[2])
	if err != nil {
		return Entry{}, fmt.Errorf("%w: invalid digest for %s", ErrMalformed, rel)
	}
	return Entry{Module: module, Path: rel, Digest: d}, nil
}

func cleanPath(p string) (string, error) {
	p = strings.ReplaceAll(p, "\\", "/")
	if p == "" || strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("%w: invalid relative path %q", ErrMalformed, p)
	}
	clean := path.Clean(p)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: path %q escapes the installation root", ErrMalformed, p)
	}
	return clean, nil
}
