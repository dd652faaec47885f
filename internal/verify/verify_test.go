package verify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"RuntimeLink/definitions"
	"RuntimeLink/internal/index"
	"RuntimeLink/internal/metrics"
	"RuntimeLink/internal/override"

	"github.com/google/go-cmp/cmp"
)

func writeLive(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
}

func record(module, rel string, content []byte) index.FileRecord {
	return index.FileRecord{
		Module: module,
		Path:   rel,
		Size:   int64(len(content)),
		Digest: definitions.DigestAlgorithm.FromBytes(content),
	}
}

func flipOneByte(t *testing.T, root, rel string, offset int64) []byte {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	data, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("read %s: %v", p, err)
	}
	data[offset] ^= 0x01
	if err := os.WriteFile(p, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return data
}

type want struct {
	processed  int64
	match      int64
	overridden int64
	modified   int64
	readErrors int64
}

func TestVerify_TableDriven(t *testing.T) {
	original := []byte("#!/bin/sh\nexec real-java \"$@\"\n")

	tests := []struct {
		name       string
		setup      func(t *testing.T, root string) override.Registry
		wantStatus Status
		wantErr    bool
		want       want
	}{
		{
			name: "unmodified file matches",
			setup: func(t *testing.T, root string) override.Registry {
				writeLive(t, root, "bin/java", original)
				return override.Registry{}
			},
			wantStatus: Match,
			want:       want{processed: 1, match: 1},
		},
		{
			name: "tampered file without override",
			setup: func(t *testing.T, root string) override.Registry {
				writeLive(t, root, "bin/java", original)
				flipOneByte(t, root, "bin/java", 3)
				return override.Registry{}
			},
			wantStatus: UnexpectedModification,
			want:       want{processed: 1, modified: 1},
		},
		{
			name: "tampered file with matching override",
			setup: func(t *testing.T, root string) override.Registry {
				writeLive(t, root, "bin/java", original)
				tampered := flipOneByte(t, root, "bin/java", 3)
				return override.New(override.Entry{
					Module: "java.base",
					Path:   "bin/java",
					Digest: definitions.DigestAlgorithm.FromBytes(tampered),
				})
			},
			wantStatus: Overridden,
			want:       want{processed: 1, overridden: 1},
		},
		{
			name: "override for another module does not apply",
			setup: func(t *testing.T, root string) override.Registry {
				writeLive(t, root, "bin/java", original)
				tampered := flipOneByte(t, root, "bin/java", 0)
				return override.New(override.Entry{
					Module: "jdk.jdwp.agent",
					Path:   "bin/java",
					Digest: definitions.DigestAlgorithm.FromBytes(tampered),
				})
			},
			wantStatus: UnexpectedModification,
			want:       want{processed: 1, modified: 1},
		},
		{
			name: "override with stale digest",
			setup: func(t *testing.T, root string) override.Registry {
				writeLive(t, root, "bin/java", original)
				flipOneByte(t, root, "bin/java", 0)
				return override.New(override.Entry{
					Module: "java.base",
					Path:   "bin/java",
					Digest: definitions.DigestAlgorithm.FromString("something else"),
				})
			},
			wantStatus: UnexpectedModification,
			want:       want{processed: 1, modified: 1},
		},
		{
			name: "missing file fails closed",
			setup: func(t *testing.T, root string) override.Registry {
				return override.Registry{}
			},
			wantStatus: UnexpectedModification,
			wantErr:    true,
			want:       want{processed: 1, modified: 1, readErrors: 1},
		},
		{
			name: "directory in place of file fails closed",
			setup: func(t *testing.T, root string) override.Registry {
				if err := os.MkdirAll(filepath.Join(root, "bin", "java"), 0o755); err != nil {
					t.Fatal(err)
				}
				return override.Registry{}
			},
			wantStatus: UnexpectedModification,
			wantErr:    true,
			want:       want{processed: 1, modified: 1, readErrors: 1},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			overrides := tt.setup(t, root)
			baseline := index.Baseline{Files: []index.FileRecord{record("java.base", "bin/java", original)}}

			stats := &metrics.Stats{}
			res := Verify(context.Background(), root, baseline, overrides, Options{Workers: 2}, stats, nil)

			if len(res) != 1 {
				t.Fatalf("expected 1 result, got %d", len(res))
			}
			if res[0].Status != tt.wantStatus {
				t.Fatalf("status = %v, want %v", res[0].Status, tt.wantStatus)
			}
			if (res[0].Err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", res[0].Err, tt.wantErr)
			}
			if res[0].Path != "bin/java" || res[0].Module != "java.base" {
				t.Fatalf("result identity mismatch: %+v", res[0])
			}

			got := want{
				processed:  atomic.LoadInt64(&stats.Processed),
				match:      atomic.LoadInt64(&stats.Match),
				overridden: atomic.LoadInt64(&stats.Overridden),
				modified:   atomic.LoadInt64(&stats.Modified),
				readErrors: atomic.LoadInt64(&stats.ReadErrors),
			}
			if got != tt.want {
				t.Fatalf("stats mismatch:\n got: %+v\nwant: %+v", got, tt.want)
			}
		})
	}
}

func TestVerify_PreservesOrderAcrossWorkers(t *testing.T) {
	root := t.TempDir()
	var files []index.FileRecord
	var wantStatus []Status
	for i := 0; i < 40; i++ {
		rel := fmt.Sprintf("lib/lib%02d.so", i)
		content := []byte(rel)
		writeLive(t, root, rel, content)
		files = append(files, record("java.base", rel, content))
		wantStatus = append(wantStatus, Match)
		if i%7 == 0 {
			flipOneByte(t, root, rel, 0)
			wantStatus[i] = UnexpectedModification
		}
	}

	for _, workers := range []int{0, 1, 4, 16} {
		res := Verify(context.Background(), root, index.Baseline{Files: files}, override.Registry{}, Options{Workers: workers}, nil, nil)
		var gotPaths []string
		var gotStatus []Status
		for _, r := range res {
			gotPaths = append(gotPaths, r.Path)
			gotStatus = append(gotStatus, r.Status)
		}
		var wantPaths []string
		for _, f := range files {
			wantPaths = append(wantPaths, f.Path)
		}
		if d := cmp.Diff(wantPaths, gotPaths); d != "" {
			t.Fatalf("workers=%d order mismatch (-want +got):\n%s", workers, d)
		}
		if d := cmp.Diff(wantStatus, gotStatus); d != "" {
			t.Fatalf("workers=%d status mismatch (-want +got):\n%s", workers, d)
		}
		if n := len(Modified(res)); n != 6 {
			t.Fatalf("workers=%d expected 6 modified, got %d", workers, n)
		}
	}
}

func TestVerifier_CancelledContext(t *testing.T) {
	root := t.TempDir()
	var files []index.FileRecord
	for i := 0; i < 10; i++ {
		rel := fmt.Sprintf("conf/f%d", i)
		writeLive(t, root, rel, []byte(rel))
		files = append(files, record("java.base", rel, []byte(rel)))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats := &metrics.Stats{}
	v := &Verifier{Root: root, Baseline: index.Baseline{Files: files}, Options: Options{Workers: 2}, Stats: stats}
	res, err := v.Verify(ctx)
	if err == nil {
		t.Fatalf("expected context error")
	}
	if len(res) != len(files) {
		t.Fatalf("expected a result for every file, got %d", len(res))
	}
	if p := atomic.LoadInt64(&stats.Processed); p != int64(len(files)) {
		t.Fatalf("processed = %d, want %d", p, len(files))
	}
}

func TestStatusString(t *testing.T) {
	for s, want := range map[Status]string{
		Match:                  "MATCH",
		Overridden:             "OVERRIDDEN",
		UnexpectedModification: "UNEXPECTED_MODIFICATION",
	} {
		if s.String() != want {
			t.Fatalf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
}
