// Package sheet parses the club's wide-format attendance spreadsheet.
//
// The sheet has one row per member and one column per outing date:
//
//	groupe(s),prénom,Nom,∑,03/01,04/01,06/01,...
//	A,Alice,Martin,12,1,,1,...
//
// Column 0 is the member's group label, columns 1 and 2 the first and last
// name, column 3 a pre-computed total that is recomputed rather than trusted,
// and every later column whose header matches DD/MM is a date column. A cell
// marks presence when its trimmed value is exactly "1".
package sheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Fixed column positions in the wide sheet layout.
const (
	colGroup     = 0
	colFirstName = 1
	colLastName  = 2
	colTotal     = 3
	firstDateCol = 4
)

var dateHeaderRe = regexp.MustCompile(`^\d{2}/\d{2}$`)

// Row is one member's parsed attendance line.
type Row struct {
	Group        string
	FirstName    string
	LastName     string
	PresentDates []string // ISO dates YYYY-MM-DD, in column order
}

// FullName returns the member's display name, "First Last" trimmed.
func (r Row) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(r.FirstName) + " " + strings.TrimSpace(r.LastName))
}

// Issue records a non-fatal problem with a single row.
type Issue struct {
	Line   int
	Reason string
}

func (i Issue) String() string {
	return fmt.Sprintf("line %d: %s", i.Line, i.Reason)
}

// dateColumn binds a sheet column index to its expanded ISO date.
type dateColumn struct {
	index   int
	isoDate string
}

// Parse reads the sheet and expands each DD/MM date header against the given
// year. Malformed rows are skipped and reported as issues, not errors; only
// an unreadable header or stream is fatal.
func Parse(r io.Reader, year string) ([]Row, []Issue, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) <= firstDateCol {
		return nil, nil, fmt.Errorf("header has %d columns, want at least %d", len(header), firstDateCol+1)
	}

	var dateCols []dateColumn
	for i := firstDateCol; i < len(header); i++ {
		h := strings.TrimSpace(header[i])
		if !dateHeaderRe.MatchString(h) {
			// Non-date column (notes, totals); ignored, not an error.
			continue
		}
		dateCols = append(dateCols, dateColumn{
			index:   i,
			isoDate: expandDate(h, year),
		})
	}

	var (
		rows   []Row
		issues []Issue
	)
	line := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			issues = append(issues, Issue{Line: line, Reason: err.Error()})
			continue
		}
		if len(record) < len(header) {
			issues = append(issues, Issue{Line: line, Reason: fmt.Sprintf("row has %d cells, header has %d", len(record), len(header))})
			continue
		}
		first := strings.TrimSpace(record[colFirstName])
		last := strings.TrimSpace(record[colLastName])
		if first == "" || last == "" {
			issues = append(issues, Issue{Line: line, Reason: "missing first or last name"})
			continue
		}

		row := Row{
			Group:     strings.TrimSpace(record[colGroup]),
			FirstName: first,
			LastName:  last,
		}
		for _, dc := range dateCols {
			if strings.TrimSpace(record[dc.index]) == "1" {
				row.PresentDates = append(row.PresentDates, dc.isoDate)
			}
		}
		rows = append(rows, row)
	}
	return rows, issues, nil
}

// expandDate turns a DD/MM header into YYYY-MM-DD for the import year.
func expandDate(ddmm, year string) string {
	day := ddmm[:2]
	month := ddmm[3:]
	return year + "-" + month + "-" + day
}
