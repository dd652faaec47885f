package progress

import (
	"fmt"
	"io"
	"os"
	"time"

	"RuntimeLink/internal/metrics"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

const describeEvery = time.Second

// Bar draws hashed bytes against the expected total. Counts shown in the description come
// from the shared Stats.
type Bar struct {
	bar   *progressbar.ProgressBar
	stats *metrics.Stats
	ch    chan int64
	done  chan struct{}

	rate rate
}

// rate tracks hashed bytes between two description refreshes.
type rate struct {
	bytes int64
	at    time.Time
}

func (r *rate) update(bytes int64, now time.Time) float64 {
	var perSec float64
	if dt := now.Sub(r.at).Seconds(); dt > 0 {
		perSec = float64(bytes-r.bytes) / dt
	}
	r.bytes, r.at = bytes, now
	return perSec
}

// Enabled reports whether f is an interactive terminal worth drawing on.
func Enabled(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func New(w io.Writer, totalBytes int64, stats *metrics.Stats) *Bar {
	if stats == nil {
		stats = &metrics.Stats{}
	}
	b := &Bar{
		stats: stats,
		ch:    make(chan int64, 16384),
		done:  make(chan struct{}),
		rate:  rate{at: time.Now()},
	}
	b.bar = progressbar.NewOptions64(
		totalBytes,
		progressbar.OptionSetWriter(w),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetDescription("verifying"),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(120*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	_ = b.bar.RenderBlank()

	go b.loop()
	return b
}

func (b *Bar) loop() {
	defer close(b.done)
	tick := time.NewTicker(describeEvery)
	defer tick.Stop()

	for {
		select {
		case n, ok := <-b.ch:
			if !ok {
				_ = b.bar.Finish()
				return
			}
			_ = b.bar.Add64(n)
		case now := <-tick.C:
			b.bar.Describe(b.describe(now))
		}
	}
}

func (b *Bar) describe(now time.Time) string {
	s := b.stats.Snapshot()
	perSec := b.rate.update(s.BytesHashed, now)
	return fmt.Sprintf("%d/%d files, %d modified, %d overridden, %s/s",
		s.Processed, s.Total, s.Modified, s.Overridden, humanize.Bytes(uint64(perSec)))
}

func (b *Bar) AddBytes(n int64) {
	if b == nil || n <= 0 {
		return
	}
	b.ch <- n
}

// Close flushes pending bytes and waits for the final render.
func (b *Bar) Close() {
	if b == nil {
		return
	}
	close(b.ch)
	<-b.done
}
