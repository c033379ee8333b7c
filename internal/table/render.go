package table

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/net/html"
)

var comparisonHeaders = table.Row{"项目", "签到前", "签到后", "要求"}

// MissingDataHTML is rendered when either snapshot is empty
const MissingDataHTML = "<p>缺少签到前或签到后的数据，无法进行对比</p>"

// RenderConsole renders t as a boxed table for the console
func RenderConsole(title string, t StatsTable) string {
	if t.IsEmpty() {
		return "没有数据"
	}
	w := table.NewWriter()
	w.SetTitle(title)
	header := make(table.Row, 0, len(t.Headers))
	for _, h := range t.Headers {
		header = append(header, h)
	}
	w.AppendHeader(header)
	for _, r := range t.Rows {
		row := make(table.Row, 0, len(r))
		for _, c := range r {
			row = append(row, c)
		}
		w.AppendRow(row)
	}
	w.SetStyle(table.StyleRounded)
	return w.Render()
}

// RenderComparisonConsole renders a before/after comparison for the console.
// Changed values are marked with an arrow.
func RenderComparisonConsole(rows []ComparisonRow) string {
	w := comparisonWriter(rows, func(r ComparisonRow) string {
		if r.Changed {
			return r.After + " ↑"
		}
		return r.After
	})
	w.SetTitle("连接信息对比")
	w.SetStyle(table.StyleRounded)
	return w.Render()
}

// RenderMarkdown renders a before/after comparison as a markdown table.
// Changed values are bold.
func RenderMarkdown(rows []ComparisonRow) string {
	w := comparisonWriter(rows, func(r ComparisonRow) string {
		if r.Changed && r.After != "" {
			return "**" + r.After + "**"
		}
		return r.After
	})
	return w.RenderMarkdown()
}

// RenderHTML renders a before/after comparison as an HTML table with
// changed rows highlighted.
func RenderHTML(rows []ComparisonRow) string {
	if len(rows) == 0 {
		return MissingDataHTML
	}

	var b strings.Builder
	b.WriteString(`<table border="1" cellpadding="5" style="border-collapse: collapse; width: 100%;">` + "\n")
	b.WriteString(`<tr style="background-color: #f2f2f2;">` + "\n")
	for _, h := range comparisonHeaders {
		b.WriteString(`<th style="text-align: left;">` + h.(string) + "</th>\n")
	}
	b.WriteString("</tr>\n")

	for _, r := range rows {
		rowStyle, afterStyle := "", ""
		if r.Changed {
			rowStyle = ` style="background-color: #f9f9f9;"`
			afterStyle = ` style="color: green; font-weight: bold;"`
		}
		b.WriteString("<tr" + rowStyle + ">\n")
		b.WriteString("<td>" + html.EscapeString(r.Item) + "</td>\n")
		b.WriteString("<td>" + html.EscapeString(r.Before) + "</td>\n")
		b.WriteString("<td" + afterStyle + ">" + html.EscapeString(r.After) + "</td>\n")
		b.WriteString("<td>" + html.EscapeString(r.Requirement) + "</td>\n")
		b.WriteString("</tr>\n")
	}
	b.WriteString("</table>")
	return b.String()
}

func comparisonWriter(rows []ComparisonRow, after func(ComparisonRow) string) table.Writer {
	w := table.NewWriter()
	w.AppendHeader(comparisonHeaders)
	for _, r := range rows {
		w.AppendRow(table.Row{r.Item, r.Before, after(r), r.Requirement})
	}
	return w
}
