package image

import (
	"errors"
	"fmt"
	"io"
	"os"

	"RuntimeLink/definitions"

	"github.com/klauspost/compress/zstd"
)

// Container is a packed container file: a header, an index of entries and the entry data.
type Container struct {
	f       *os.File
	path    string
	dataOff int64
	records []definitions.IndexRecord
	byName  map[string]int
}

func OpenContainer(path string) (*Container, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, err
	}
	c, err := readContainer(f, path)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return c, nil
}

func readContainer(f *os.File, path string) (*Container, error) {
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}

	hdr, err := definitions.ReadContainerHeader(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dataOff := int64(definitions.ContainerHeaderSize) + int64(hdr.IndexSize)
	if dataOff > st.Size() {
		return nil, fmt.Errorf("%s: %w: index extends past end of file", path, definitions.ErrFormat)
	}

	raw := make([]byte, hdr.IndexSize)
	if _, err := io.ReadFull(f, raw); err != nil {
		return nil, fmt.Errorf("%s: read index: %w", path, err)
	}
	records, err := definitions.DecodeIndex(raw, hdr.Count)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	dataLen := uint64(st.Size() - dataOff)
	byName := make(map[string]int, len(records))
	for i, rec := range records {
		if rec.Offset > dataLen || rec.StoredSize > dataLen-rec.Offset {
			return nil, fmt.Errorf("%s: %w: %q extends past end of file", path, definitions.ErrFormat, rec.Name)
		}
		if _, dup := byName[rec.Name]; dup {
			return nil, fmt.Errorf("%s: %w: duplicate entry %q", path, definitions.ErrFormat, rec.Name)
		}
		byName[rec.Name] = i
	}

	return &Container{f: f, path: path, dataOff: dataOff, records: records, byName: byName}, nil
}

func (c *Container) Path() string { return c.path }

func (c *Container) ListEntries() []Entry {
	out := make([]Entry, len(c.records))
	for i, rec := range c.records {
		out[i] = Entry{Name: rec.Name, Size: int64(rec.Size)}
	}
	return out
}

func (c *Container) Open(name string) (io.ReadCloser, error) {
	if c.f == nil {
		return nil, ErrClosed
	}
	i, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	rec := c.records[i]
	sec := io.NewSectionReader(c.f, c.dataOff+int64(rec.Offset), int64(rec.StoredSize))

	switch rec.Compression {
	case definitions.CompressionNone:
		return io.NopCloser(sec), nil
	case definitions.CompressionZstd:
		dec, err := zstd.NewReader(sec, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return &exactReader{r: dec.IOReadCloser(), remain: int64(rec.Size)}, nil
	default:
		return nil, fmt.Errorf("%s: %w: unknown compression", name, definitions.ErrFormat)
	}
}

func (c *Container) ReadEntry(name string) ([]byte, error) {
	i, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return readAll(c, name, int64(c.records[i].Size))
}

func (c *Container) Close() error {
	if c.f == nil {
		return nil
	}
	err := c.f.Close()
	c.f = nil
	return err
}

var errSizeMismatch = errors.New("decoded size does not match index")

// exactReader fails if the decoded stream is shorter or longer than the recorded size.
type exactReader struct {
	r      io.ReadCloser
	remain int64
}

func (e *exactReader) Read(p []byte) (int, error) {
	if e.remain == 0 {
		var one [1]byte
		n, err := e.r.Read(one[:])
		if n > 0 {
			return 0, errSizeMismatch
		}
		if err == nil {
			return 0, nil
		}
		return 0, err
	}
	if int64(len(p)) > e.remain {
		p = p[:e.remain]
	}
	n, err := e.r.Read(p)
	e.remain -= int64(n)
	if err == io.EOF && e.remain > 0 {
		return n, errSizeMismatch
	}
	if err == io.EOF {
		err = nil
	}
	return n, err
}

func (e *exactReader) Close() error {
	return e.r.Close()
}
