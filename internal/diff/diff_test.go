package diff

import (
	"bytes"
	"path/filepath"
	"testing"

	"RuntimeLink/internal/image"

	"github.com/google/go-cmp/cmp"
)

type blob struct {
	name string
	data []byte
}

func memImage(blobs ...blob) *image.Memory {
	m := image.NewMemory()
	for _, b := range blobs {
		m.Add(b.name, b.data)
	}
	return m
}

var (
	entA = blob{"/a", []byte{1, 3, 3}}
	entB = blob{"/b", []byte{8, 4, 4}}
	entC = blob{"/c", []byte{9, 17, 17}}
	entD = blob{"/d", []byte{34, 34, 48}}
)

func mustGenerate(t *testing.T, base, opt image.Resource, opts ...Option) []ResourceDiff {
	t.Helper()
	got, err := Generate(base, opt, opts...)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return got
}

func TestGenerate_Examples(t *testing.T) {
	tests := []struct {
		name string
		base *image.Memory
		opt  *image.Memory
		want []ResourceDiff
	}{
		{
			name: "removed entry carries base bytes",
			base: memImage(entA, entB, entC, entD),
			opt:  memImage(entA, entC, entD),
			want: []ResourceDiff{{Name: "/b", Kind: Removed, Baseline: []byte{8, 4, 4}}},
		},
		{
			name: "added entry has no stored bytes",
			base: memImage(entA, entC, entD),
			opt:  memImage(entA, entB, entC, entD),
			want: []ResourceDiff{{Name: "/b", Kind: Added}},
		},
		{
			name: "same length different content is modified",
			base: memImage(entA, entB, entC, blob{"/d", []byte{17, 18, 49}}),
			opt:  memImage(entA, entB, entC, entD),
			want: []ResourceDiff{{Name: "/d", Kind: Modified, Baseline: []byte{17, 18, 49}}},
		},
		{
			name: "length mismatch is modified with whole base content",
			base: memImage(blob{"/x", []byte{1, 2, 3, 4}}),
			opt:  memImage(blob{"/x", []byte{1, 2, 3}}),
			want: []ResourceDiff{{Name: "/x", Kind: Modified, Baseline: []byte{1, 2, 3, 4}}},
		},
		{
			name: "empty base against non-empty optimized",
			base: memImage(blob{"/x", nil}),
			opt:  memImage(blob{"/x", []byte{0}}),
			want: []ResourceDiff{{Name: "/x", Kind: Modified, Baseline: []byte{}}},
		},
		{
			name: "removed and modified precede added",
			base: memImage(entD, blob{"/gone", []byte{7}}, blob{"/m", []byte{1}}),
			opt:  memImage(blob{"/new1", []byte{5}}, blob{"/m", []byte{2}}, entD, blob{"/new0", nil}),
			want: []ResourceDiff{
				{Name: "/gone", Kind: Removed, Baseline: []byte{7}},
				{Name: "/m", Kind: Modified, Baseline: []byte{1}},
				{Name: "/new1", Kind: Added},
				{Name: "/new0", Kind: Added},
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got := mustGenerate(t, tt.base, tt.opt)
			if d := cmp.Diff(tt.want, got); d != "" {
				t.Fatalf("diff mismatch (-want +got):\n%s", d)
			}
		})
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	base := memImage(entA, entB, blob{"/d", []byte{17, 18, 49}}, blob{"/r", []byte{9}})
	opt := memImage(entD, entA, blob{"/n", []byte{3}}, blob{"/n2", nil})

	first := mustGenerate(t, base, opt)
	for i := 0; i < 5; i++ {
		again := mustGenerate(t, base, opt)
		if d := cmp.Diff(first, again); d != "" {
			t.Fatalf("run %d differs (-first +again):\n%s", i, d)
		}
	}

	var encFirst, encAgain bytes.Buffer
	if err := Encode(&encFirst, first); err != nil {
		t.Fatal(err)
	}
	if err := Encode(&encAgain, mustGenerate(t, base, opt)); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(encFirst.Bytes(), encAgain.Bytes()) {
		t.Fatalf("encoded output not byte-identical")
	}
}

func TestGenerate_Idempotent(t *testing.T) {
	tests := []struct {
		name string
		img  *image.Memory
	}{
		{"empty image", memImage()},
		{"all empty entries", memImage(blob{"/x", nil}, blob{"/y", []byte{}})},
		{"regular entries", memImage(entA, entB, entC, entD)},
		{"large entry", memImage(blob{"/big", bytes.Repeat([]byte{0xAB}, 3*DefaultBufferSize+7)})},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := mustGenerate(t, tt.img, tt.img); len(got) != 0 {
				t.Fatalf("expected no diffs, got %+v", got)
			}
		})
	}
}

func TestGenerate_Completeness(t *testing.T) {
	base := memImage(entA, entB, blob{"/same", []byte("s")}, blob{"/chg", []byte("1")})
	opt := memImage(entC, blob{"/chg", []byte("2")}, blob{"/same", []byte("s")}, entD)

	counts := map[string]int{}
	kinds := map[string]Kind{}
	for _, d := range mustGenerate(t, base, opt) {
		counts[d.Name]++
		kinds[d.Name] = d.Kind
	}

	want := map[string]Kind{"/a": Removed, "/b": Removed, "/chg": Modified, "/c": Added, "/d": Added}
	if d := cmp.Diff(want, kinds); d != "" {
		t.Fatalf("classification mismatch (-want +got):\n%s", d)
	}
	for name, n := range counts {
		if n != 1 {
			t.Fatalf("%s classified %d times", name, n)
		}
	}
	if _, ok := counts["/same"]; ok {
		t.Fatalf("identical entry must not appear")
	}
}

func TestGenerate_BufferBoundary(t *testing.T) {
	for _, bufSize := range []int{16, DefaultBufferSize} {
		for _, size := range []int{bufSize, bufSize + 1} {
			baseData := bytes.Repeat([]byte{0x5A}, size)

			lastDiffers := append([]byte{}, baseData...)
			lastDiffers[size-1] ^= 0xFF

			identical := append([]byte{}, baseData...)

			longer := append(append([]byte{}, baseData...), 0x5A)

			tests := []struct {
				name string
				opt  []byte
				want bool
			}{
				{"last byte differs", lastDiffers, true},
				{"identical", identical, false},
				{"one byte longer", longer, true},
			}
			for _, tt := range tests {
				base := memImage(blob{"/r", baseData})
				opt := memImage(blob{"/r", tt.opt})

				got, err := Generate(base, opt, WithBufferSize(bufSize))
				if err != nil {
					t.Fatalf("buf=%d size=%d %s: %v", bufSize, size, tt.name, err)
				}
				if modified := len(got) == 1 && got[0].Kind == Modified; modified != tt.want {
					t.Fatalf("buf=%d size=%d %s: got %+v", bufSize, size, tt.name, got)
				}
				if tt.want && !bytes.Equal(got[0].Baseline, baseData) {
					t.Fatalf("buf=%d size=%d %s: baseline is not the base content", bufSize, size, tt.name)
				}
			}
		}
	}
}

func TestGenerate_Exclude(t *testing.T) {
	base := memImage(blob{"/packages/java.lang/java.base", []byte{1}}, entA)
	opt := memImage(blob{"/packages/java.lang/java.base", []byte{2}}, blob{"/modules/java.base", []byte{3}}, entA)

	if got := mustGenerate(t, base, opt, WithExclude(ExcludeStructural)); len(got) != 0 {
		t.Fatalf("expected structural entries excluded, got %+v", got)
	}
	if got := mustGenerate(t, base, opt); len(got) != 2 {
		t.Fatalf("expected 2 diffs without exclusion, got %+v", got)
	}
}

func TestGenerate_ContainerBacked(t *testing.T) {
	dir := t.TempDir()
	base := memImage(entA, entB, blob{"/big", bytes.Repeat([]byte("x"), 5*DefaultBufferSize)})
	bigChanged := bytes.Repeat([]byte("x"), 5*DefaultBufferSize)
	bigChanged[4*DefaultBufferSize+3] = 'y'
	opt := memImage(entA, blob{"/big", bigChanged}, entC)

	basePath := filepath.Join(dir, "base")
	optPath := filepath.Join(dir, "opt")
	if err := image.WriteContainer(basePath, base, image.WriteOptions{}); err != nil {
		t.Fatal(err)
	}
	if err := image.WriteContainer(optPath, opt, image.WriteOptions{Compress: true}); err != nil {
		t.Fatal(err)
	}
	bc, err := image.OpenContainer(basePath)
	if err != nil {
		t.Fatal(err)
	}
	defer bc.Close()
	oc, err := image.OpenContainer(optPath)
	if err != nil {
		t.Fatal(err)
	}
	defer oc.Close()

	got := mustGenerate(t, bc, oc)
	var names []string
	for _, d := range got {
		names = append(names, d.Kind.String()+" "+d.Name)
	}
	want := []string{"REMOVED /b", "MODIFIED /big", "ADDED /c"}
	if d := cmp.Diff(want, names); d != "" {
		t.Fatalf("mismatch (-want +got):\n%s", d)
	}
}

func TestReconstruct_RestoresBase(t *testing.T) {
	base := memImage(entA, entB, blob{"/d", []byte{17, 18, 49}}, blob{"/empty", nil})
	opt := memImage(entA, entD, blob{"/added", []byte{42}}, blob{"/empty", nil})

	diffs := mustGenerate(t, base, opt)
	rebuilt := Reconstruct(opt, diffs)

	if again := mustGenerate(t, base, rebuilt); len(again) != 0 {
		t.Fatalf("reconstructed image differs from base: %+v", again)
	}
	if again := mustGenerate(t, rebuilt, base); len(again) != 0 {
		t.Fatalf("base differs from reconstructed image: %+v", again)
	}
	if _, err := rebuilt.ReadEntry("/added"); err == nil {
		t.Fatalf("added entry must be hidden")
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	diffs := []ResourceDiff{
		{Name: "/b", Kind: Removed, Baseline: []byte{8, 4, 4}},
		{Name: "/d", Kind: Modified, Baseline: []byte{17, 18, 49}},
		{Name: "/z", Kind: Modified, Baseline: []byte{}},
		{Name: "/n", Kind: Added},
	}
	var buf bytes.Buffer
	if err := Encode(&buf, diffs); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if d := cmp.Diff(diffs, got); d != "" {
		t.Fatalf("mismatch (-want +got):\n%s", d)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]ResourceDiff{
		{Name: "/b", Kind: Removed, Baseline: []byte{8, 4, 4}},
		{Name: "/d", Kind: Modified, Baseline: []byte{1}},
		{Name: "/n", Kind: Added},
	})
	want := Summary{Added: 1, Removed: 1, Modified: 1, BaselineBytes: 4}
	if s != want {
		t.Fatalf("got %+v want %+v", s, want)
	}
}
