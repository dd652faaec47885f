package definitions

import (
	_ "crypto/sha512" // registers SHA-512 for go-digest

	"fmt"
	"strings"

	"github.com/opencontainers/go-digest"
)

// DigestAlgorithm is the single algorithm used for every recorded and computed file digest.
const DigestAlgorithm = digest.SHA512

// ParseDigestHex validates a bare hex encoding for DigestAlgorithm. Case is ignored.
func ParseDigestHex(hex string) (digest.Digest, error) {
	d := digest.NewDigestFromEncoded(DigestAlgorithm, strings.ToLower(strings.TrimSpace(hex)))
	if err := d.Validate(); err != nil {
		return "", fmt.Errorf("%w: invalid %s digest %q", ErrFormat, DigestAlgorithm, hex)
	}
	return d, nil
}
