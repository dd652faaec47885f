// Package layout names the fixed paths inside an installed runtime and derives what can be
// learned from them without prior knowledge of the installed module set.
package layout

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"RuntimeLink/internal/image"
)

// Paths relative to the installation root, slash separated.
const (
	ModulesFile = "lib/modules"
	ConfDir     = "conf"
	CacertsFile = "lib/security/cacerts"
	BinDir      = "bin"
	LibDir      = "lib"
	LegalDir    = "legal"
	JmodsDir    = "jmods"

	JmodExt = ".jmod"
)

// PatchOption is the launcher option whose presence means module patching is active.
const PatchOption = "--patch-module"

// DefaultPatchEnv lists the environment variables the launcher reads extra options from.
var DefaultPatchEnv = []string{"JDK_JAVA_OPTIONS", "JAVA_TOOL_OPTIONS"}

// Layout resolves fixed paths against one installation root.
type Layout struct {
	Root string
}

func (l Layout) Path(rel string) string {
	return filepath.Join(l.Root, filepath.FromSlash(rel))
}

func (l Layout) ModulesPath() string { return l.Path(ModulesFile) }
func (l Layout) JmodsPath() string   { return l.Path(JmodsDir) }

// LegalPath is the directory holding the notices of module.
func (l Layout) LegalPath(module string) string {
	return l.Path(path.Join(LegalDir, module))
}

// HasPackagedModules reports whether root ships at least one packaged module, either a
// .jmod archive or an exploded module directory under jmods/.
func HasPackagedModules(root string) bool {
	entries, err := os.ReadDir(Layout{Root: root}.JmodsPath())
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), JmodExt) {
			return true
		}
	}
	return false
}

// PatchingActive reports whether any of the named variables in environ carries the patch
// option. environ is in os.Environ form. A nil names uses DefaultPatchEnv.
func PatchingActive(environ []string, names []string) bool {
	if names == nil {
		names = DefaultPatchEnv
	}
	watch := make(map[string]bool, len(names))
	for _, n := range names {
		watch[n] = true
	}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !watch[k] {
			continue
		}
		for _, f := range strings.Fields(v) {
			if f == PatchOption || strings.HasPrefix(f, PatchOption+"=") {
				return true
			}
		}
	}
	return false
}

// Modules enumerates the module names of a module container from its top-level entry
// names. The structural index trees are not modules.
func Modules(img image.Resource) []string {
	seen := make(map[string]bool)
	for _, e := range img.ListEntries() {
		rest := strings.TrimPrefix(e.Name, "/")
		top, _, ok := strings.Cut(rest, "/")
		if !ok || top == "" || top == "packages" || top == "modules" {
			continue
		}
		seen[top] = true
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Section is the top-level install directory a packaged module file lands in.
type Section string

const (
	SectionBin   Section = BinDir
	SectionConf  Section = ConfDir
	SectionLib   Section = LibDir
	SectionLegal Section = LegalDir
)

// InstallPath maps a file from a packaged module section to its path relative to the
// installation root. Legal notices are grouped per module.
func InstallPath(module string, s Section, rel string) string {
	if s == SectionLegal {
		return path.Join(LegalDir, module, rel)
	}
	return path.Join(string(s), rel)
}
