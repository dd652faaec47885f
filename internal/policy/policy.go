package policy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"RuntimeLink/internal/index"
	"RuntimeLink/internal/verify"
)

type State int

const (
	Start State = iota
	RestrictionCheck
	Verify
	Decide
	Accept
	WarnAccept
	Fail
)

func (s State) String() string {
	switch s {
	case Start:
		return "START"
	case RestrictionCheck:
		return "RESTRICTION_CHECK"
	case Verify:
		return "VERIFY"
	case Decide:
		return "DECIDE"
	case Accept:
		return "ACCEPT"
	case WarnAccept:
		return "WARN_ACCEPT"
	case Fail:
		return "FAIL"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Request is what the front end asked the linker to do.
type Request struct {
	Modules      []string
	KeepPackaged bool
	Lenient      bool
}

// Source describes the installation being linked from.
type Source struct {
	HasPackagedModules bool
	Patched            bool
}

type Verifier interface {
	Verify(ctx context.Context) ([]verify.Result, error)
}

// Decision is the terminal state reached by Evaluate. Outcome is one of Accept, WarnAccept or
// Fail; State is the state the machine was in when the outcome was reached.
type Decision struct {
	Outcome     State
	State       State
	Diagnostics []string
	Results     []verify.Result
	Err         error
}

func (d Decision) Accepted() bool { return d.Outcome == Accept || d.Outcome == WarnAccept }

type Policy struct {
	// LinkTool is the self-hosting module name. Empty means index.DefaultLinkTool.
	LinkTool string
}

// Evaluate runs the restriction checks and, if they pass, the verifier.
func (p Policy) Evaluate(ctx context.Context, req Request, src Source, v Verifier) Decision {
	m := machine{state: Start}

	m.to(RestrictionCheck)
	modules, err := Modules(req.Modules)
	if err != nil {
		return m.fail(Decision{Diagnostics: []string{err.Error()}, Err: err})
	}
	req.Modules = modules
	if err := p.checkRestrictions(req, src); err != nil {
		return m.fail(Decision{Diagnostics: []string{err.Error()}, Err: err})
	}

	m.to(Verify)
	if v == nil {
		err := fmt.Errorf("%w: no verifier configured", ErrIntegrity)
		return m.fail(Decision{Diagnostics: []string{"the run-time image could not be verified"}, Err: err})
	}
	results, err := v.Verify(ctx)
	if err != nil {
		slog.Debug("verification did not complete", "error", err)
		return m.fail(Decision{
			Diagnostics: []string{"the run-time image could not be verified"},
			Results:     results,
			Err:         fmt.Errorf("%w: verification incomplete: %w", ErrIntegrity, err),
		})
	}

	m.to(Decide)
	modified := verify.Modified(results)
	if len(modified) == 0 {
		return m.finish(Accept, Decision{Results: results})
	}

	diags := make([]string, 0, len(modified))
	if req.Lenient {
		for _, r := range modified {
			diags = append(diags, fmt.Sprintf("Warning: %s has been modified", r.Path))
		}
		return m.finish(WarnAccept, Decision{Diagnostics: diags, Results: results})
	}
	for _, r := range modified {
		diags = append(diags, fmt.Sprintf("%s has been modified", r.Path))
	}
	return m.fail(Decision{
		Diagnostics: diags,
		Results:     results,
		Err:         fmt.Errorf("%w: %d file(s)", ErrIntegrity, len(modified)),
	})
}

// Modules trims every requested module name. Empty names and names containing whitespace
// are rejected with ErrRequest.
func Modules(names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	for _, n := range names {
		name := strings.TrimSpace(n)
		if name == "" || strings.IndexFunc(name, unicode.IsSpace) >= 0 {
			return nil, fmt.Errorf("%w: %q is not a module name", ErrRequest, n)
		}
		out = append(out, name)
	}
	return out, nil
}

func (p Policy) checkRestrictions(req Request, src Source) error {
	linkTool := p.LinkTool
	if linkTool == "" {
		linkTool = index.DefaultLinkTool
	}
	if !src.HasPackagedModules {
		for _, m := range req.Modules {
			if m == linkTool {
				return &Violation{Rule: MultiHop, Module: linkTool}
			}
		}
	}
	if src.Patched {
		return &Violation{Rule: Patched}
	}
	if req.KeepPackaged && !src.HasPackagedModules {
		return &Violation{Rule: KeepWithoutPackaged}
	}
	return nil
}

type machine struct {
	state State
}

func (m *machine) to(next State) {
	slog.Debug("link policy transition", "from", m.state.String(), "to", next.String())
	m.state = next
}

func (m *machine) finish(outcome State, d Decision) Decision {
	d.State = m.state
	d.Outcome = outcome
	m.to(outcome)
	return d
}

func (m *machine) fail(d Decision) Decision {
	return m.finish(Fail, d)
}
