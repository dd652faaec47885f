package index

import (
	"sort"

	"RuntimeLink/internal/diff"

	"github.com/opencontainers/go-digest"
)

// DefaultLinkTool is the module that carries the baseline resources and hosts the linker.
const DefaultLinkTool = "jdk.jlink"

// FileRecord is the digest recorded at packaging time for one installed file.
// Path is relative to the installation root, slash separated.
type FileRecord struct {
	Module string
	Path   string
	Size   int64
	Digest digest.Digest
}

// Baseline is the frozen build-time snapshot: the container diff plus the recorded
// digests of every installed file owned by a module.
type Baseline struct {
	Diffs []diff.ResourceDiff
	Files []FileRecord
}

func (b Baseline) Modules() []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range b.Files {
		if !seen[f.Module] {
			seen[f.Module] = true
			out = append(out, f.Module)
		}
	}
	sort.Strings(out)
	return out
}

func (b Baseline) TotalBytes() int64 {
	var n int64
	for _, f := range b.Files {
		n += f.Size
	}
	return n
}
