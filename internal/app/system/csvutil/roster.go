// internal/app/system/csvutil/roster.go
package csvutil

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dalemusser/waffle/pantry/text"
)

// RosterRow is one normalized roster line: a worker name and the contact
// the notifier will deliver to.
type RosterRow struct {
	Line    int
	Name    string
	Contact string
}

// RowError describes why a roster line was rejected.
type RowError struct {
	Line   int
	Name   string
	Reason string
}

func (e RowError) String() string {
	name := strings.TrimSpace(e.Name)
	if name == "" {
		name = "(missing)"
	}
	return fmt.Sprintf("line %d: %s: %s", e.Line, name, e.Reason)
}

// ParseResult holds the rows of a roster file or the reasons it was rejected.
type ParseResult struct {
	Rows   []RosterRow
	Errors []RowError
}

// HasErrors reports whether any line was rejected.
func (r ParseResult) HasErrors() bool { return len(r.Errors) > 0 }

// Summary formats the first max errors for display.
func (r ParseResult) Summary(max int) string {
	if !r.HasErrors() {
		return ""
	}
	var b strings.Builder
	b.WriteString("Upload rejected: each row must have a name and a contact, and names must be unique.\n")
	n := len(r.Errors)
	if max > 0 && n > max {
		n = max
	}
	for _, e := range r.Errors[:n] {
		b.WriteString(e.String())
		b.WriteString("\n")
	}
	if rest := len(r.Errors) - n; rest > 0 {
		fmt.Fprintf(&b, "...and %d more\n", rest)
	}
	return b.String()
}

// ErrTooManyRows is returned when a file has more than MaxRows data rows.
var ErrTooManyRows = errors.New("roster has too many rows")

// ParseRosterCSV reads "name,contact" rows from r. A header row is skipped
// when present, blank rows are ignored and a leading UTF-8 BOM is stripped.
// It never writes anywhere; callers replace the roster only when the result
// has no errors.
func ParseRosterCSV(r io.Reader) (ParseResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var res ParseResult
	seen := make(map[string]int)
	line := 0
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return ParseResult{}, fmt.Errorf("line %d: %w", line, err)
		}
		if line == 1 && len(rec) > 0 {
			rec[0] = strings.TrimPrefix(rec[0], "\ufeff")
			if isHeader(rec) {
				continue
			}
		}

		row := RosterRow{Line: line}
		if len(rec) > 0 {
			row.Name = strings.TrimSpace(rec[0])
		}
		if len(rec) > 1 {
			row.Contact = strings.TrimSpace(rec[1])
		}
		if row.Name == "" && row.Contact == "" {
			continue
		}
		if len(res.Rows)+len(res.Errors) >= MaxRows {
			return ParseResult{}, ErrTooManyRows
		}

		switch {
		case row.Name == "":
			res.Errors = append(res.Errors, RowError{Line: line, Reason: "missing name"})
			continue
		case row.Contact == "":
			res.Errors = append(res.Errors, RowError{Line: line, Name: row.Name, Reason: "missing contact"})
			continue
		}
		key := text.Fold(row.Name)
		if first, dup := seen[key]; dup {
			res.Errors = append(res.Errors, RowError{
				Line: line, Name: row.Name,
				Reason: fmt.Sprintf("duplicate of line %d", first),
			})
			continue
		}
		seen[key] = line
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

func isHeader(rec []string) bool {
	if len(rec) < 2 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(rec[0]))
	second := strings.ToLower(strings.TrimSpace(rec[1]))
	return (first == "name" || first == "full name") &&
		(second == "contact" || second == "email")
}
