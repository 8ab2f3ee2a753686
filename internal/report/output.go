// Package report renders workload results and collects operation timings.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
)

// RenderTable writes headers and rows as an ASCII table. Nothing is written
// when there are no rows.
func RenderTable(w io.Writer, headers []string, rows [][]string) {
	if len(rows) == 0 {
		return
	}
	tb := tablewriter.NewWriter(w)
	tb.SetHeader(headers)
	tb.SetAutoFormatHeaders(false)
	tb.AppendBulk(rows)
	tb.Render()
}

// RenderJSON writes rows as a JSON array of header-keyed objects.
func RenderJSON(w io.Writer, headers []string, rows [][]string) error {
	data := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		line := make(map[string]string, len(headers))
		for i, h := range headers {
			if i < len(row) {
				line[h] = row[i]
			}
		}
		data = append(data, line)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// Millis formats a duration as milliseconds with two decimals.
func Millis(d time.Duration) string {
	return fmt.Sprintf("%.2f", float64(d)/float64(time.Millisecond))
}

// Int formats an integer value.
func Int(i interface{}) string {
	return fmt.Sprintf("%d", i)
}
