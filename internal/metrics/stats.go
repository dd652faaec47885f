package metrics

import "time"

type Stats struct {
	TotalBytes int64

	Processed  int64
	Total      int64
	Match      int64
	Overridden int64
	Modified   int64
	ReadErrors int64

	BytesHashed int64
	Started     time.Time
	Finished    time.Time
}

func (s *Stats) Start() { s.Started = time.Now() }
func (s *Stats) Stop()  { s.Finished = time.Now() }
func (s *Stats) Duration() time.Duration {
	if s.Started.IsZero() {
		return 0
	}
	if s.Finished.IsZero() {
		return time.Since(s.Started)
	}
	return s.Finished.Sub(s.Started)
}
