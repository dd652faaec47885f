package verify

import (
	"github.com/opencontainers/go-digest"
)

type Status int

const (
	Match Status = iota
	Overridden
	UnexpectedModification
)

func (s Status) String() string {
	switch s {
	case Match:
		return "MATCH"
	case Overridden:
		return "OVERRIDDEN"
	case UnexpectedModification:
		return "UNEXPECTED_MODIFICATION"
	default:
		return "UNKNOWN"
	}
}

// Result classifies one recorded file. Err is set when the file could not be read.
type Result struct {
	Module   string
	Path     string
	Status   Status
	Expected digest.Digest
	Computed digest.Digest
	Err      error
}

type Options struct {
	Workers int
}
