package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Ledger Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Tokens: %d | Journal events: %d\n\n", r.TokenCount, r.LastEventSeq))

	// Token Summary
	sb.WriteString("## Token Summary\n\n")
	if len(r.Tokens) > 0 {
		sb.WriteString("| ID | Symbol | Name | Owner | Supply | Holders | Paused | Created (ms) |\n")
		sb.WriteString("|----|--------|------|-------|--------|---------|--------|-------------|\n")
		for _, t := range r.Tokens {
			paused := "no"
			if t.Paused {
				paused = "yes"
			}
			sb.WriteString(fmt.Sprintf("| %d | %s | %s | %s | %s | %d | %s | %d |\n",
				t.ID, t.Symbol, t.Name, t.Owner, t.Supply, t.Holders, paused, t.Created))
		}
	} else {
		sb.WriteString("No tokens created.\n")
	}
	sb.WriteString("\n")

	// Journal Activity
	sb.WriteString("## Journal Activity\n\n")
	if len(r.Activity) > 0 {
		sb.WriteString("| Kind | Count | Volume |\n")
		sb.WriteString("|------|-------|--------|\n")
		for _, a := range r.Activity {
			sb.WriteString(fmt.Sprintf("| %s | %d | %s |\n", a.Kind, a.Count, a.Volume))
		}
	} else {
		sb.WriteString("No journal activity.\n")
	}
	sb.WriteString("\n")

	// Largest Holders
	sb.WriteString("## Largest Holders\n\n")
	if len(r.LargestHolders) > 0 {
		sb.WriteString("| Token | Account | Balance |\n")
		sb.WriteString("|-------|---------|--------|\n")
		for _, h := range r.LargestHolders {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s |\n", h.Token, h.Account, h.Amount))
		}
	} else {
		sb.WriteString("No balances held.\n")
	}
	sb.WriteString("\n")

	// Integrity
	sb.WriteString("## Integrity\n\n")
	sb.WriteString(fmt.Sprintf("Audited %d tokens and %d journal events.\n\n",
		r.Integrity.TokensAudited, r.Integrity.EventsAudited))
	if r.Integrity.Clean {
		sb.WriteString("**No violations found.**\n")
	} else {
		sb.WriteString("**Violations found:**\n\n")
		for _, v := range r.Integrity.Violations {
			sb.WriteString(fmt.Sprintf("- %s\n", v))
		}
	}
	sb.WriteString("\n")

	return sb.String()
}
