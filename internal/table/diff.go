package table

// ComparisonRow pairs one stats item before and after a run
type ComparisonRow struct {
	Item        string `json:"item"`
	Before      string `json:"before"`
	After       string `json:"after"`
	Requirement string `json:"requirement"`
	Changed     bool   `json:"changed"`
}

// Diff matches rows of before and after by position and item name. Pairs
// whose item names differ are left out.
func Diff(before, after StatsTable) []ComparisonRow {
	n := min(len(before.Rows), len(after.Rows))
	rows := make([]ComparisonRow, 0, n)
	for i := 0; i < n; i++ {
		b, a := before.Rows[i], after.Rows[i]
		if column(b, 0) != column(a, 0) {
			continue
		}
		row := ComparisonRow{
			Item:        column(b, 0),
			Before:      column(b, 1),
			After:       column(a, 1),
			Requirement: column(b, 2),
		}
		row.Changed = row.Before != row.After
		rows = append(rows, row)
	}
	return rows
}

// ChangedCount returns how many rows changed
func ChangedCount(rows []ComparisonRow) int {
	n := 0
	for _, r := range rows {
		if r.Changed {
			n++
		}
	}
	return n
}

func column(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
