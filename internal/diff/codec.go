package diff

import (
	"io"

	"RuntimeLink/definitions"
)

// Encode writes diffs in the persisted baseline format, preserving order.
func Encode(w io.Writer, diffs []ResourceDiff) error {
	records := make([]definitions.DiffRecord, len(diffs))
	for i, d := range diffs {
		records[i] = toRecord(d)
	}
	return definitions.WriteDiffRecords(w, records)
}

func Decode(r io.Reader) ([]ResourceDiff, error) {
	records, err := definitions.ReadDiffRecords(r)
	if err != nil {
		return nil, err
	}
	out := make([]ResourceDiff, len(records))
	for i, rec := range records {
		out[i] = fromRecord(rec)
	}
	return out, nil
}
