package packaged

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"RuntimeLink/definitions"
	"RuntimeLink/internal/image"

	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zip"
)

func writeZip(t *testing.T, path string, files map[string]string, order []string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for _, name := range order {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
}

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
}

// fixture lays out java.base as a .jmod archive and jdk.jlink as an exploded directory.
func fixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	base := map[string]string{
		"classes/module-info.class":      "mi-base",
		"classes/java/lang/Object.class": "object",
		"bin/java":                       "launcher",
		"conf/net.properties":            "net",
		"lib/libjava.so":                 "native",
		"legal/LICENSE":                  "license",
		"include/jni.h":                  "header",
	}
	writeZip(t, filepath.Join(dir, "java.base.jmod"), base, []string{
		"classes/module-info.class",
		"classes/java/lang/Object.class",
		"bin/java",
		"conf/net.properties",
		"lib/libjava.so",
		"legal/LICENSE",
		"include/jni.h",
	})

	writeFile(t, filepath.Join(dir, "jdk.jlink", "classes", "module-info.class"), "mi-jlink")
	writeFile(t, filepath.Join(dir, "jdk.jlink", "bin", "jlink"), "jlink")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")
	return dir
}

func TestDiscover(t *testing.T) {
	mods, err := Discover(fixture(t))
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	defer Close(mods)

	var names []string
	for _, m := range mods {
		names = append(names, m.Name)
	}
	if d := cmp.Diff([]string{"java.base", "jdk.jlink"}, names); d != "" {
		t.Fatalf("module names mismatch (-want +got):\n%s", d)
	}
}

func TestDiscover_Empty(t *testing.T) {
	if _, err := Discover(t.TempDir()); !errors.Is(err, ErrNoModules) {
		t.Fatalf("expected ErrNoModules, got %v", err)
	}
}

func TestClasses(t *testing.T) {
	mods, err := Discover(fixture(t))
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	defer Close(mods)

	view := Classes(mods)
	want := []string{
		"/java.base/java/lang/Object.class",
		"/java.base/module-info.class",
		"/jdk.jlink/module-info.class",
	}
	if d := cmp.Diff(want, image.Names(view)); d != "" {
		t.Fatalf("class view mismatch (-want +got):\n%s", d)
	}

	b, err := view.ReadEntry("/java.base/java/lang/Object.class")
	if err != nil || string(b) != "object" {
		t.Fatalf("ReadEntry = %q, %v", b, err)
	}
	if _, err := view.ReadEntry("/java.base/bin/java"); !errors.Is(err, image.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecords(t *testing.T) {
	mods, err := Discover(fixture(t))
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	defer Close(mods)

	recs, err := Records(mods)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}

	got := make(map[string]string)
	for _, r := range recs {
		if r.Digest != definitions.DigestAlgorithm.FromString(map[string]string{
			"bin/java":                "launcher",
			"conf/net.properties":     "net",
			"lib/libjava.so":          "native",
			"legal/java.base/LICENSE": "license",
			"bin/jlink":               "jlink",
		}[r.Path]) {
			t.Fatalf("digest mismatch for %s", r.Path)
		}
		got[r.Path] = r.Module
	}
	want := map[string]string{
		"bin/java":                "java.base",
		"conf/net.properties":     "java.base",
		"lib/libjava.so":          "java.base",
		"legal/java.base/LICENSE": "java.base",
		"bin/jlink":               "jdk.jlink",
	}
	if d := cmp.Diff(want, got); d != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", d)
	}
}
