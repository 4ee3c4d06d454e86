package reporting

import (
	"fmt"
	"strings"
)

// RenderCSV renders token summary rows as CSV string.
func RenderCSV(tokens []TokenRow) string {
	var sb strings.Builder

	// Header
	sb.WriteString("id,symbol,name,owner,supply,holders,paused,created_ms\n")

	// Rows
	for _, t := range tokens {
		sb.WriteString(fmt.Sprintf("%d,%s,%s,%s,%s,%d,%t,%d\n",
			t.ID,
			csvField(t.Symbol),
			csvField(t.Name),
			t.Owner,
			t.Supply,
			t.Holders,
			t.Paused,
			t.Created,
		))
	}

	return sb.String()
}

// csvField quotes free-form token bytes that would break the row.
func csvField(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
