// Package table extracts the stats table from the Connect page and compares
// two snapshots of it.
package table

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Columns is the width enforced by Extract
const Columns = 3

// DefaultHeaders are used when the page has no usable header row
var DefaultHeaders = []string{"项目", "当前", "要求"}

var (
	reTable      = regexp.MustCompile(`(?is)<table[^>]*>(.*?)</table>`)
	reRow        = regexp.MustCompile(`(?is)<tr[^>]*>(.*?)</tr>`)
	reCell       = regexp.MustCompile(`(?is)<t[hd][^>]*>(.*?)</t[hd]>`)
	reTags       = regexp.MustCompile(`(?s)<.*?>`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// StatsTable is a header row plus data rows
type StatsTable struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Empty returns a table with the default headers and no rows
func Empty() StatsTable {
	return StatsTable{Headers: append([]string(nil), DefaultHeaders...), Rows: [][]string{}}
}

// IsEmpty reports whether the table has no data rows
func (t StatsTable) IsEmpty() bool {
	return len(t.Rows) == 0
}

// Extract parses the first table of page into exactly three columns.
// It never fails: a page without a table yields Empty().
func Extract(page string) StatsTable {
	headers, rows, ok := scan(page)
	if !ok {
		return Empty()
	}
	if len(headers) > 0 {
		headers = fit(headers, Columns)
	} else {
		headers = append([]string(nil), DefaultHeaders...)
	}
	for i := range rows {
		rows[i] = fit(rows[i], Columns)
	}
	return StatsTable{Headers: headers, Rows: rows}
}

// ExtractRaw parses the first table of page keeping the column count of
// the source. Rows shorter than the header row are padded.
func ExtractRaw(page string) StatsTable {
	headers, rows, ok := scan(page)
	if !ok {
		return Empty()
	}
	if len(headers) == 0 {
		headers = append([]string(nil), DefaultHeaders...)
	}
	for i, row := range rows {
		if len(row) < len(headers) {
			rows[i] = pad(row, len(headers))
		}
	}
	return StatsTable{Headers: headers, Rows: rows}
}

// CleanText strips tags, unescapes entities and collapses whitespace
func CleanText(fragment string) string {
	if fragment == "" {
		return ""
	}
	text := reTags.ReplaceAllString(fragment, "")
	text = html.UnescapeString(text)
	text = reWhitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func scan(page string) ([]string, [][]string, bool) {
	match := reTable.FindStringSubmatch(page)
	if match == nil {
		return nil, nil, false
	}

	trs := reRow.FindAllStringSubmatch(match[1], -1)
	if len(trs) == 0 {
		return nil, nil, false
	}

	headers := cells(trs[0][1])
	rows := make([][]string, 0, len(trs)-1)
	for _, tr := range trs[1:] {
		row := cells(tr[1])
		if len(row) == 0 {
			continue
		}
		rows = append(rows, row)
	}
	return headers, rows, true
}

func cells(row string) []string {
	matches := reCell.FindAllStringSubmatch(row, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, CleanText(m[1]))
	}
	return out
}

func fit(row []string, n int) []string {
	if len(row) >= n {
		return row[:n:n]
	}
	return pad(row, n)
}

func pad(row []string, n int) []string {
	out := make([]string, n)
	copy(out, row)
	return out
}
