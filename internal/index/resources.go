package index

import "strings"

const (
	baselineDir  = "runtimelink"
	diffName     = "diff"
	fileListPre  = "fs_"
	fileListPost = "_files"
)

// Prefix is the resource directory holding the baseline inside a container.
func Prefix(linkTool string) string {
	return "/" + linkTool + "/" + baselineDir + "/"
}

func DiffResource(linkTool string) string {
	return Prefix(linkTool) + diffName
}

func FileListResource(linkTool, module string) string {
	return Prefix(linkTool) + fileListPre + module + fileListPost
}

// IsBaselineResource reports whether name is one of the baseline resources for linkTool.
// Such entries are added after optimization and never take part in a diff.
func IsBaselineResource(linkTool string) func(name string) bool {
	prefix := Prefix(linkTool)
	return func(name string) bool {
		return strings.HasPrefix(name, prefix)
	}
}

func moduleFromFileList(linkTool, name string) (string, bool) {
	rest, ok := strings.CutPrefix(name, Prefix(linkTool)+fileListPre)
	if !ok {
		return "", false
	}
	module, ok := strings.CutSuffix(rest, fileListPost)
	if !ok || module == "" || strings.Contains(module, "/") {
		return "", false
	}
	return module, true
}
