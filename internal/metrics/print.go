package metrics

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/dustin/go-humanize"
)

type Snapshot struct {
	DurationMs  int64
	Total       int64
	Processed   int64
	Match       int64
	Overridden  int64
	Modified    int64
	ReadErrors  int64
	BytesHashed int64
	TotalBytes  int64
}

func (s *Stats) Snapshot() Snapshot {
	dur := s.Duration()

	return Snapshot{
		DurationMs:  dur.Milliseconds(),
		Total:       atomic.LoadInt64(&s.Total),
		Processed:   atomic.LoadInt64(&s.Processed),
		Match:       atomic.LoadInt64(&s.Match),
		Overridden:  atomic.LoadInt64(&s.Overridden),
		Modified:    atomic.LoadInt64(&s.Modified),
		ReadErrors:  atomic.LoadInt64(&s.ReadErrors),
		BytesHashed: atomic.LoadInt64(&s.BytesHashed),
		TotalBytes:  atomic.LoadInt64(&s.TotalBytes),
	}
}

func Print(w io.Writer, s *Stats) {
	snap := s.Snapshot()

	fmt.Fprintln(w, "--- verification ---")
	fmt.Fprintln(w, "duration_ms:", snap.DurationMs)
	fmt.Fprintln(w, "files:", snap.Total)
	fmt.Fprintln(w, "processed:", snap.Processed)
	fmt.Fprintln(w, "match:", snap.Match)
	fmt.Fprintln(w, "overridden:", snap.Overridden)
	fmt.Fprintln(w, "modified:", snap.Modified)
	fmt.Fprintln(w, "read_errors:", snap.ReadErrors)
	fmt.Fprintln(w, "hashed:", humanize.Bytes(uint64(snap.BytesHashed)))
	fmt.Fprintln(w, "expected:", humanize.Bytes(uint64(snap.TotalBytes)))

	if snap.DurationMs > 0 {
		secs := float64(snap.DurationMs) / 1000.0
		bps := float64(snap.BytesHashed) / secs
		fmt.Fprintf(w, "throughput: %s/s\n", humanize.Bytes(uint64(bps)))
	}
}
