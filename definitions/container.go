package definitions

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const (
	ContainerMagic uint32 = 0x52544D43 // "RTMC"
	ContainerMajor uint16 = 1
	ContainerMinor uint16 = 0

	ContainerHeaderSize = 18
)

type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionZstd
)

type ContainerHeader struct {
	Major     uint16
	Minor     uint16
	Flags     uint16
	Count     uint32
	IndexSize uint32
}

// IndexRecord locates one entry. Offset is relative to the start of the data section.
type IndexRecord struct {
	Name        string
	Offset      uint64
	StoredSize  uint64
	Size        uint64
	Compression Compression
}

func (h ContainerHeader) Marshal() []byte {
	b := make([]byte, 0, ContainerHeaderSize)
	b = binary.BigEndian.AppendUint32(b, ContainerMagic)
	b = binary.BigEndian.AppendUint16(b, h.Major)
	b = binary.BigEndian.AppendUint16(b, h.Minor)
	b = binary.BigEndian.AppendUint16(b, h.Flags)
	b = binary.BigEndian.AppendUint32(b, h.Count)
	b = binary.BigEndian.AppendUint32(b, h.IndexSize)
	return b
}

func ReadContainerHeader(r io.Reader) (ContainerHeader, error) {
	var b [ContainerHeaderSize]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return ContainerHeader{}, fmt.Errorf("%w: container header: %v", ErrFormat, err)
	}
	if magic := binary.BigEndian.Uint32(b[0:4]); magic != ContainerMagic {
		return ContainerHeader{}, fmt.Errorf("%w: bad container magic %#x", ErrFormat, magic)
	}
	h := ContainerHeader{
		Major:     binary.BigEndian.Uint16(b[4:6]),
		Minor:     binary.BigEndian.Uint16(b[6:8]),
		Flags:     binary.BigEndian.Uint16(b[8:10]),
		Count:     binary.BigEndian.Uint32(b[10:14]),
		IndexSize: binary.BigEndian.Uint32(b[14:18]),
	}
	if h.Major != ContainerMajor {
		return ContainerHeader{}, fmt.Errorf("%w: unsupported container version %d.%d", ErrFormat, h.Major, h.Minor)
	}
	return h, nil
}

func EncodeIndex(records []IndexRecord) ([]byte, error) {
	var b []byte
	for _, rec := range records {
		if len(rec.Name) == 0 || len(rec.Name) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: invalid entry name length %d", ErrFormat, len(rec.Name))
		}
		b = binary.BigEndian.AppendUint16(b, uint16(len(rec.Name)))
		b = append(b, rec.Name...)
		b = binary.BigEndian.AppendUint64(b, rec.Offset)
		b = binary.BigEndian.AppendUint64(b, rec.StoredSize)
		b = binary.BigEndian.AppendUint64(b, rec.Size)
		b = append(b, byte(rec.Compression))
	}
	if uint64(len(b)) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: index too large", ErrFormat)
	}
	return b, nil
}

func DecodeIndex(b []byte, count uint32) ([]IndexRecord, error) {
	records := make([]IndexRecord, 0, min(count, 1<<16))
	for i := uint32(0); i < count; i++ {
		if len(b) < 2 {
			return nil, fmt.Errorf("%w: index record %d truncated", ErrFormat, i)
		}
		n := int(binary.BigEndian.Uint16(b))
		b = b[2:]
		if len(b) < n+25 {
			return nil, fmt.Errorf("%w: index record %d truncated", ErrFormat, i)
		}
		rec := IndexRecord{
			Name:        string(b[:n]),
			Offset:      binary.BigEndian.Uint64(b[n:]),
			StoredSize:  binary.BigEndian.Uint64(b[n+8:]),
			Size:        binary.BigEndian.Uint64(b[n+16:]),
			Compression: Compression(b[n+24]),
		}
		if rec.Compression > CompressionZstd {
			return nil, fmt.Errorf("%w: %q uses unknown compression %d", ErrFormat, rec.Name, rec.Compression)
		}
		if rec.Compression == CompressionNone && rec.StoredSize != rec.Size {
			return nil, fmt.Errorf("%w: %q stored size %d does not match size %d", ErrFormat, rec.Name, rec.StoredSize, rec.Size)
		}
		records = append(records, rec)
		b = b[n+25:]
	}
	if len(b) != 0 {
		return nil, fmt.Errorf("%w: %d trailing index bytes", ErrFormat, len(b))
	}
	return records, nil
}
