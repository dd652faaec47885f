package policy

import (
	"errors"
	"fmt"
)

var (
	ErrRestriction = errors.New("relink restriction violated")
	ErrIntegrity   = errors.New("runtime image has been modified")
	ErrRequest     = errors.New("invalid link request")
)

// Restriction identifies which mutual-exclusion rule a request broke.
type Restriction int

const (
	MultiHop Restriction = iota + 1
	Patched
	KeepWithoutPackaged
)

// Violation is a RestrictionViolation. It unwraps to ErrRestriction.
type Violation struct {
	Rule   Restriction
	Module string
}

func (v *Violation) Error() string {
	switch v.Rule {
	case MultiHop:
		return fmt.Sprintf("%s module may not be included when linking from a run-time image without packaged modules", v.Module)
	case Patched:
		return "cannot link from the run-time image when module patching is active"
	case KeepWithoutPackaged:
		return "packaged modules cannot be kept because the run-time image has none"
	default:
		return ErrRestriction.Error()
	}
}

func (v *Violation) Unwrap() error { return ErrRestriction }
