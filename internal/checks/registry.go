// Package checks runs consistency checks over the extracted class records
// before anything is emitted.
package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/helianthus/reflectgen/internal/model"
)

// Severity of a diagnostic. Error diagnostics abort the run.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic is one finding of a check.
type Diagnostic struct {
	Check    string   `json:"check"`
	Severity Severity `json:"severity"`
	Class    string   `json:"class,omitempty"`
	Files    []string `json:"files,omitempty"`
	Message  string   `json:"message"`
	Err      error    `json:"-"` // sentinel for errors.Is, set on error diagnostics
}

func (d Diagnostic) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", d.Check, d.Message)
	if len(d.Files) > 0 {
		fmt.Fprintf(&sb, " (%s)", strings.Join(d.Files, ", "))
	}
	return sb.String()
}

func (d Diagnostic) Unwrap() error { return d.Err }

// Check inspects the extracted classes and reports problems.
type Check interface {
	// Name returns the check identifier (e.g. "duplicates", "rpc").
	Name() string
	// Check analyzes every class extracted in this run, duplicates included.
	Check(ctx context.Context, classes []model.ClassRecord) ([]Diagnostic, error)
}

// Registry holds registered checks.
type Registry struct {
	checks []Check
}

// NewRegistry creates a new check registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a check to the registry.
func (r *Registry) Register(c Check) {
	r.checks = append(r.checks, c)
}

// Get returns the check with the given name, or nil if not found.
func (r *Registry) Get(name string) Check {
	for _, c := range r.checks {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// All returns all registered checks.
func (r *Registry) All() []Check {
	return r.checks
}

// Run runs every check in registration order and concatenates their
// diagnostics. A failing check aborts the pass.
func (r *Registry) Run(ctx context.Context, classes []model.ClassRecord) ([]Diagnostic, error) {
	var out []Diagnostic
	for _, c := range r.checks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		diags, err := c.Check(ctx, classes)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", c.Name(), err)
		}
		out = append(out, diags...)
	}
	return out, nil
}

// Errors returns the error-severity diagnostics of diags.
func Errors(diags []Diagnostic) []error {
	var errs []error
	for _, d := range diags {
		if d.Severity == SeverityError {
			errs = append(errs, d)
		}
	}
	return errs
}
