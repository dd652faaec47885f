package diff

import (
	"fmt"

	"RuntimeLink/definitions"
)

type Kind uint8

const (
	Added Kind = iota
	Removed
	Modified
)

func (k Kind) String() string {
	switch k {
	case Added:
		return "ADDED"
	case Removed:
		return "REMOVED"
	case Modified:
		return "MODIFIED"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ResourceDiff is one difference between a base and an optimized image. Baseline holds the
// complete base content for Removed and Modified and is nil for Added.
type ResourceDiff struct {
	Name     string
	Kind     Kind
	Baseline []byte
}

type Summary struct {
	Added         int
	Removed       int
	Modified      int
	BaselineBytes int64
}

func Summarize(diffs []ResourceDiff) Summary {
	var s Summary
	for _, d := range diffs {
		switch d.Kind {
		case Added:
			s.Added++
		case Removed:
			s.Removed++
		case Modified:
			s.Modified++
		}
		s.BaselineBytes += int64(len(d.Baseline))
	}
	return s
}

func toRecord(d ResourceDiff) definitions.DiffRecord {
	rec := definitions.DiffRecord{Name: d.Name}
	switch d.Kind {
	case Added:
		rec.Kind = definitions.DiffAdded
	case Removed:
		rec.Kind = definitions.DiffRemoved
		rec.Bytes = d.Baseline
	case Modified:
		rec.Kind = definitions.DiffModified
		rec.Bytes = d.Baseline
	default:
		rec.Kind = definitions.DiffKind(d.Kind)
	}
	if rec.Kind != definitions.DiffAdded && rec.Bytes == nil {
		rec.Bytes = []byte{}
	}
	return rec
}

func fromRecord(rec definitions.DiffRecord) ResourceDiff {
	d := ResourceDiff{Name: rec.Name}
	switch rec.Kind {
	case definitions.DiffAdded:
		d.Kind = Added
	case definitions.DiffRemoved:
		d.Kind = Removed
		d.Baseline = rec.Bytes
	case definitions.DiffModified:
		d.Kind = Modified
		d.Baseline = rec.Bytes
	}
	return d
}
