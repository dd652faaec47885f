package definitions

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// FileLine is one line of a per-module file list: "<size>|<hex>|<path>".
type FileLine struct {
	Size int64
	Hex  string
	Path string
}

func WriteFileList(w io.Writer, lines []FileLine) error {
	bw := bufio.NewWriter(w)
	for _, l := range lines {
		if l.Path == "" || strings.ContainsAny(l.Path, "\n\r") {
			return fmt.Errorf("%w: invalid file list path %q", ErrFormat, l.Path)
		}
		if strings.Contains(l.Hex, "|") {
			return fmt.Errorf("%w: invalid digest for %q", ErrFormat, l.Path)
		}
		if _, err := fmt.Fprintf(bw, "%d|%s|%s\n", l.Size, l.Hex, l.Path); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func ReadFileList(r io.Reader) ([]FileLine, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var out []FileLine
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 3)
		if len(parts) != 3 || parts[2] == "" {
			return nil, fmt.Errorf("%w: file list line %d", ErrFormat, lineNo)
		}
		size, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil || size < 0 {
			return nil, fmt.Errorf("%w: file list line %d: bad size %q", ErrFormat, lineNo, parts[0])
		}
		out = append(out, FileLine{Size: size, Hex: parts[1], Path: parts[2]})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
