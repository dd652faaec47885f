package verify

import (
	"fmt"
	"io"
	"os"

	"RuntimeLink/definitions"

	"github.com/opencontainers/go-digest"
)

const readBufferSize = 1 << 20 // 1 MiB

// FileDigest streams the whole file at path through the baseline digest algorithm.
func FileDigest(path string, onProgress func(n int64)) (digest.Digest, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return "", err
	}
	defer func() {
		_ = f.Close()
	}()

	st, err := f.Stat()
	if err != nil {
		return "", err
	}
	if !st.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", path)
	}

	digester := definitions.DigestAlgorithm.Digester()
	h := digester.Hash()

	buf := make([]byte, readBufferSize)
	var pending int64
	flush := func() {
		if pending > 0 && onProgress != nil {
			onProgress(pending)
			pending = 0
		}
	}

	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			if _, werr := h.Write(buf[:n]); werr != nil {
				return "", werr
			}
			pending += int64(n)
			if pending >= readBufferSize {
				flush()
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", rerr
		}
	}
	flush()

	return digester.Digest(), nil
}
