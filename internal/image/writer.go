package image

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"RuntimeLink/definitions"

	"github.com/klauspost/compress/zstd"
)

type WriteOptions struct {
	// Compress stores entries zstd-compressed when that makes them smaller.
	Compress bool
	// MinCompressSize skips compression for entries smaller than this.
	MinCompressSize int64
}

// WriteContainer writes every entry of src, sorted by name, to a new container at path.
// The file is written under a temporary name and renamed into place.
func WriteContainer(path string, src Resource, opts WriteOptions) (err error) {
	entries := src.ListEntries()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	records := make([]definitions.IndexRecord, len(entries))
	for i, e := range entries {
		records[i] = definitions.IndexRecord{Name: e.Name}
	}
	// Index records are fixed width apart from the name, so placeholder offsets give the final size.
	placeholder, err := definitions.EncodeIndex(records)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	hdr := definitions.ContainerHeader{
		Major:     definitions.ContainerMajor,
		Minor:     definitions.ContainerMinor,
		Count:     uint32(len(records)),
		IndexSize: uint32(len(placeholder)),
	}
	if _, err = tmp.Write(hdr.Marshal()); err != nil {
		return err
	}
	if _, err = tmp.Write(placeholder); err != nil {
		return err
	}
	dataOff := int64(definitions.ContainerHeaderSize + len(placeholder))

	var enc *zstd.Encoder
	if opts.Compress {
		enc, err = zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
		if err != nil {
			return err
		}
	}

	pos := dataOff
	for i, e := range entries {
		records[i].Offset = uint64(pos - dataOff)
		records[i].Size = uint64(e.Size)

		stored := int64(-1)
		if enc != nil && e.Size >= opts.MinCompressSize && e.Size > 0 {
			stored, err = writeCompressed(tmp, enc, src, e)
			if err != nil {
				return err
			}
			if stored >= e.Size {
				if _, err = tmp.Seek(pos, io.SeekStart); err != nil {
					return err
				}
				stored = -1
			} else {
				records[i].Compression = definitions.CompressionZstd
			}
		}
		if stored < 0 {
			stored, err = writeRaw(tmp, src, e)
			if err != nil {
				return err
			}
		}
		records[i].StoredSize = uint64(stored)
		pos += stored
	}

	if err = tmp.Truncate(pos); err != nil {
		return err
	}
	index, err := definitions.EncodeIndex(records)
	if err != nil {
		return err
	}
	if _, err = tmp.WriteAt(index, definitions.ContainerHeaderSize); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func writeRaw(w io.Writer, src Resource, e Entry) (int64, error) {
	rc, err := src.Open(e.Name)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = rc.Close()
	}()
	n, err := io.Copy(w, rc)
	if err != nil {
		return n, fmt.Errorf("copy %s: %w", e.Name, err)
	}
	if n != e.Size {
		return n, fmt.Errorf("copy %s: wrote %d bytes, want %d", e.Name, n, e.Size)
	}
	return n, nil
}

func writeCompressed(f *os.File, enc *zstd.Encoder, src Resource, e Entry) (int64, error) {
	start, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	rc, err := src.Open(e.Name)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = rc.Close()
	}()

	enc.Reset(f)
	n, err := io.Copy(enc, rc)
	if err != nil {
		return 0, fmt.Errorf("compress %s: %w", e.Name, err)
	}
	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("compress %s: %w", e.Name, err)
	}
	if n != e.Size {
		return 0, fmt.Errorf("compress %s: read %d bytes, want %d", e.Name, n, e.Size)
	}
	end, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	return end - start, nil
}
