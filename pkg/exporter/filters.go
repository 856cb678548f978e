package exporter

import (
	"fmt"
	"regexp"

	errs "knexport/pkg/errors"
)

var (
	// monthShape is the shape InRange compares; anything else fails open.
	monthShape = regexp.MustCompile(`^\d{4}-\d{2}$`)
	// monthInput is what users may type: a real calendar month.
	monthInput = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)
)

// Filters bounds an export by creation month. Both ends are inclusive and
// either may be empty.
type Filters struct {
	FromYM string `json:"from_ym,omitempty"`
	ToYM   string `json:"to_ym,omitempty"`
}

// Validate checks user input before any network traffic.
func (f Filters) Validate() error {
	if f.FromYM != "" && !monthInput.MatchString(f.FromYM) {
		return errs.New(errs.ErrorTypeValidation, "filters", fmt.Sprintf("from month %q must be YYYY-MM", f.FromYM))
	}
	if f.ToYM != "" && !monthInput.MatchString(f.ToYM) {
		return errs.New(errs.ErrorTypeValidation, "filters", fmt.Sprintf("to month %q must be YYYY-MM", f.ToYM))
	}
	if f.FromYM != "" && f.ToYM != "" && f.ToYM < f.FromYM {
		return errs.New(errs.ErrorTypeValidation, "filters", fmt.Sprintf("to month %s is before from month %s", f.ToYM, f.FromYM))
	}
	return nil
}

// Contains applies InRange with these bounds.
func (f Filters) Contains(ym string) bool {
	return InRange(ym, f.FromYM, f.ToYM)
}

// AboveRange reports a well-formed month newer than the upper bound.
func (f Filters) AboveRange(ym string) bool {
	return f.ToYM != "" && monthShape.MatchString(ym) && ym > f.ToYM
}

// BelowRange reports a well-formed month older than the lower bound.
func (f Filters) BelowRange(ym string) bool {
	return f.FromYM != "" && monthShape.MatchString(ym) && ym < f.FromYM
}

func (f Filters) String() string {
	from, to := f.FromYM, f.ToYM
	if from == "" {
		from = "…"
	}
	if to == "" {
		to = "…"
	}
	return from + " to " + to
}

// InRange reports whether ym lies within [from, to]. Empty bounds are open.
// A ym that is not shaped YYYY-MM is always in range.
func InRange(ym, from, to string) bool {
	if !monthShape.MatchString(ym) {
		return true
	}
	if from != "" && ym < from {
		return false
	}
	if to != "" && ym > to {
		return false
	}
	return true
}
