package diag

import (
	"fmt"
	"os"
)

// Sink collects diagnostics for a build and prints each distinct site at
// most once (spec §7: "Warnings are idempotent text; the same offending
// site prints once per build").
type Sink struct {
	seen map[string]bool
	All  []Diagnostic
	out  *os.File
}

// NewSink creates a Sink writing to stderr.
func NewSink() *Sink {
	return &Sink{seen: make(map[string]bool), out: os.Stderr}
}

// Report records d and prints it, unless an equivalent diagnostic (same
// code, method and bytecode offset) was already reported this build.
func (s *Sink) Report(d Diagnostic) {
	key := d.dedupeKey()
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	s.All = append(s.All, d)
	s.print(d)
}

// HasErrors reports whether any SeverityError diagnostic was recorded.
func (s *Sink) HasErrors() bool {
	for _, d := range s.All {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (s *Sink) print(d Diagnostic) {
	severity := string(d.Severity)
	if severity == "" {
		severity = "error"
	}
	if d.Code != "" {
		fmt.Fprintf(s.out, "%s[%s]: %s\n", severity, d.Code, d.Message)
	} else {
		fmt.Fprintf(s.out, "%s: %s\n", severity, d.Message)
	}

	if d.Span.IsValid() {
		if d.Span.Filename != "" {
			fmt.Fprintf(s.out, "  --> %s:%d:%d\n", d.Span.Filename, d.Span.Line, d.Span.Column)
		} else {
			fmt.Fprintf(s.out, "  --> IL_%04x", d.Span.BytecodeOffset)
			if d.Method != "" {
				fmt.Fprintf(s.out, " in %s", d.Method)
			}
			fmt.Fprintln(s.out)
		}
	} else if d.Method != "" {
		fmt.Fprintf(s.out, "  --> in %s\n", d.Method)
	}

	for _, note := range d.Notes {
		fmt.Fprintf(s.out, "  = note: %s\n", note)
	}
	if d.Help != "" {
		fmt.Fprintf(s.out, "  = help: %s\n", d.Help)
	}
}
