package definitions

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const (
	DiffMagic   uint32 = 0x52444946 // "RDIF"
	DiffVersion uint16 = 1
)

type DiffKind uint8

const (
	DiffAdded DiffKind = iota
	DiffRemoved
	DiffModified
)

func (k DiffKind) Valid() bool {
	return k <= DiffModified
}

// DiffRecord is one persisted difference. Bytes is nil for DiffAdded.
type DiffRecord struct {
	Kind  DiffKind
	Name  string
	Bytes []byte
}

func WriteDiffRecords(w io.Writer, records []DiffRecord) error {
	if uint64(len(records)) > math.MaxUint32 {
		return fmt.Errorf("%w: too many diff records (%d)", ErrFormat, len(records))
	}

	bw := bufio.NewWriter(w)
	var hdr []byte
	hdr = binary.BigEndian.AppendUint32(hdr, DiffMagic)
	hdr = binary.BigEndian.AppendUint16(hdr, DiffVersion)
	hdr = binary.BigEndian.AppendUint32(hdr, uint32(len(records)))
	if _, err := bw.Write(hdr); err != nil {
		return err
	}

	for _, rec := range records {
		if !rec.Kind.Valid() {
			return fmt.Errorf("%w: invalid kind %d for %q", ErrFormat, rec.Kind, rec.Name)
		}
		if len(rec.Name) == 0 || len(rec.Name) > math.MaxUint16 {
			return fmt.Errorf("%w: invalid name length %d", ErrFormat, len(rec.Name))
		}

		buf := make([]byte, 0, 3+len(rec.Name)+4)
		buf = append(buf, byte(rec.Kind))
		buf = binary.BigEndian.AppendUint16(buf, uint16(len(rec.Name)))
		buf = append(buf, rec.Name...)

		if rec.Kind != DiffAdded {
			if uint64(len(rec.Bytes)) > math.MaxUint32 {
				return fmt.Errorf("%w: %q is too large to record (%d bytes)", ErrFormat, rec.Name, len(rec.Bytes))
			}
			buf = binary.BigEndian.AppendUint32(buf, uint32(len(rec.Bytes)))
		}
		if _, err := bw.Write(buf); err != nil {
			return err
		}
		if rec.Kind != DiffAdded {
			if _, err := bw.Write(rec.Bytes); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

func ReadDiffRecords(r io.Reader) ([]DiffRecord, error) {
	br := bufio.NewReader(r)

	var hdr [10]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: diff header: %v", ErrFormat, err)
	}
	if magic := binary.BigEndian.Uint32(hdr[0:4]); magic != DiffMagic {
		return nil, fmt.Errorf("%w: bad diff magic %#x", ErrFormat, magic)
	}
	if v := binary.BigEndian.Uint16(hdr[4:6]); v != DiffVersion {
		return nil, fmt.Errorf("%w: unsupported diff version %d", ErrFormat, v)
	}
	count := binary.BigEndian.Uint32(hdr[6:10])

	records := make([]DiffRecord, 0, min(count, 1024))
	for i := uint32(0); i < count; i++ {
		var head [3]byte
		if _, err := io.ReadFull(br, head[:]); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrFormat, i, err)
		}
		kind := DiffKind(head[0])
		if !kind.Valid() {
			return nil, fmt.Errorf("%w: record %d: invalid kind %d", ErrFormat, i, kind)
		}
		name := make([]byte, binary.BigEndian.Uint16(head[1:3]))
		if _, err := io.ReadFull(br, name); err != nil {
			return nil, fmt.Errorf("%w: record %d name: %v", ErrFormat, i, err)
		}

		rec := DiffRecord{Kind: kind, Name: string(name)}
		if kind != DiffAdded {
			var lenBuf [4]byte
			if _, err := io.ReadFull(br, lenBuf[:]); err != nil {
				return nil, fmt.Errorf("%w: record %d length: %v", ErrFormat, i, err)
			}
			n := int64(binary.BigEndian.Uint32(lenBuf[:]))

			// Grow with the data actually present so a corrupt length cannot force a huge allocation.
			var content bytes.Buffer
			if _, err := io.CopyN(&content, br, n); err != nil {
				return nil, fmt.Errorf("%w: record %d bytes: %v", ErrFormat, i, err)
			}
			rec.Bytes = content.Bytes()
			if rec.Bytes == nil {
				rec.Bytes = []byte{}
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
