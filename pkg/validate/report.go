package validate

import (
	"fmt"
	"io"
)

// Finding is a single problem found in the repository.
type Finding struct {
	Path    string // relative to the validated root, empty for repo-wide findings
	Message string
}

func (f Finding) String() string {
	if f.Path == "" {
		return f.Message
	}
	return fmt.Sprintf("%s: %s", f.Path, f.Message)
}

// Report collects the findings of a validation run.
type Report struct {
	Errors   []Finding
	Warnings []Finding
}

func (r *Report) errorf(path, format string, args ...interface{}) {
	r.Errors = append(r.Errors, Finding{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) warnf(path, format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, Finding{Path: path, Message: fmt.Sprintf(format, args...)})
}

// OK reports whether the run found no errors. Warnings do not count.
func (r *Report) OK() bool {
	return len(r.Errors) == 0
}

// Summary returns the closing line of the report.
func (r *Report) Summary() string {
	if r.OK() {
		return fmt.Sprintf("All checks passed (%d warning(s))", len(r.Warnings))
	}
	return fmt.Sprintf("%d error(s), %d warning(s)", len(r.Errors), len(r.Warnings))
}

// Write prints warnings, then errors, then the summary line.
func (r *Report) Write(w io.Writer) {
	if len(r.Warnings) > 0 {
		for _, f := range r.Warnings {
			fmt.Fprintf(w, "WARNING: %s\n", f)
		}
		fmt.Fprintln(w)
	}

	if len(r.Errors) > 0 {
		for _, f := range r.Errors {
			fmt.Fprintf(w, "ERROR: %s\n", f)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, r.Summary())
}
