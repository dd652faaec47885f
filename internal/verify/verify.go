package verify

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"RuntimeLink/internal/index"
	"RuntimeLink/internal/metrics"
	"RuntimeLink/internal/override"
	"RuntimeLink/internal/progress"

	"github.com/opencontainers/go-digest"
)

// Verify hashes every file recorded in baseline under liveRoot and classifies it. Results are
// in baseline order. All workers have finished when Verify returns; files not hashed because
// ctx was cancelled are reported as UnexpectedModification.
func Verify(ctx context.Context, liveRoot string, baseline index.Baseline, overrides override.Registry, opts Options, stats *metrics.Stats, bar *progress.Bar) []Result {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	if stats == nil {
		stats = &metrics.Stats{}
	}
	files := baseline.Files
	atomic.AddInt64(&stats.Total, int64(len(files)))
	atomic.AddInt64(&stats.TotalBytes, baseline.TotalBytes())

	results := make([]Result, len(files))
	jobs := make(chan int)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()

		for i := range jobs {
			rec := files[i]
			var sent int64
			computed, err := FileDigest(filepath.Join(liveRoot, filepath.FromSlash(rec.Path)), func(n int64) {
				atomic.AddInt64(&stats.BytesHashed, n)
				sent += n
				bar.AddBytes(n)
			})
			if rec.Size > sent {
				bar.AddBytes(rec.Size - sent)
			}
			if err != nil {
				atomic.AddInt64(&stats.ReadErrors, 1)
				slog.Debug("cannot hash recorded file", "path", rec.Path, "error", err)
			}

			res := classify(rec, computed, err, overrides)
			countStatus(stats, res.Status)
			results[i] = res
			atomic.AddInt64(&stats.Processed, 1)
		}
	}

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go worker()
	}

	next := 0
feed:
	for ; next < len(files); next++ {
		select {
		case jobs <- next:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	for i := next; i < len(files); i++ {
		rec := files[i]
		results[i] = Result{
			Module:   rec.Module,
			Path:     rec.Path,
			Status:   UnexpectedModification,
			Expected: rec.Digest,
			Err:      ctx.Err(),
		}
		countStatus(stats, UnexpectedModification)
		atomic.AddInt64(&stats.Processed, 1)
	}
	return results
}

func classify(rec index.FileRecord, computed digest.Digest, err error, overrides override.Registry) Result {
	res := Result{
		Module:   rec.Module,
		Path:     rec.Path,
		Expected: rec.Digest,
		Computed: computed,
		Err:      err,
	}
	switch {
	case err != nil:
		res.Status = UnexpectedModification
	case sameDigest(computed, rec.Digest):
		res.Status = Match
	default:
		res.Status = UnexpectedModification
		if want, ok := overrides.Lookup(rec.Module, rec.Path); ok && sameDigest(computed, want) {
			res.Status = Overridden
		}
	}
	return res
}

func sameDigest(a, b digest.Digest) bool {
	return a != "" && strings.EqualFold(string(a), string(b))
}

func countStatus(stats *metrics.Stats, s Status) {
	switch s {
	case Match:
		atomic.AddInt64(&stats.Match, 1)
	case Overridden:
		atomic.AddInt64(&stats.Overridden, 1)
	default:
		atomic.AddInt64(&stats.Modified, 1)
	}
}

// Verifier binds the inputs of one verification run.
type Verifier struct {
	Root      string
	Baseline  index.Baseline
	Overrides override.Registry
	Options   Options
	Stats     *metrics.Stats
	Bar       *progress.Bar
}

// Verify runs the verification. It returns ctx's error alongside the results if the run was
// cut short.
func (v *Verifier) Verify(ctx context.Context) ([]Result, error) {
	res := Verify(ctx, v.Root, v.Baseline, v.Overrides, v.Options, v.Stats, v.Bar)
	return res, ctx.Err()
}

// Modified returns the results classified UnexpectedModification, in order.
func Modified(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Status == UnexpectedModification {
			out = append(out, r)
		}
	}
	return out
}
