package export

import (
	"fmt"
	"sort"
	"strings"
)

// FormatRunSummary formats a run's exported conversations grouped by the
// day they were created.
func FormatRunSummary(report *RunReport) string {
	byDate := make(map[string][]Conversation)
	for _, c := range report.Conversations {
		date := "unknown"
		if len(c.CreatedAt) >= len("2006-01-02") {
			date = c.CreatedAt[:len("2006-01-02")]
		}
		byDate[date] = append(byDate[date], c)
	}

	dates := make([]string, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var sb strings.Builder
	sb.WriteString("*Drift Export Summary*\n")
	fmt.Fprintf(&sb, "%d listed, %d inserted, %d skipped, %d failed (%.1fs)\n",
		report.Listed, report.Inserted, report.Skipped, report.Failed, report.ElapsedSeconds)

	for _, date := range dates {
		convos := byDate[date]
		total := 0
		for _, c := range convos {
			total += c.TotalMessages
		}
		fmt.Fprintf(&sb, "\n*%s* (%d conversations, %d messages)\n", date, len(convos), total)
		for _, c := range convos {
			fmt.Fprintf(&sb, "  - %d [%s]: %d msgs", c.ConvoID, c.Status, c.TotalMessages)
			if c.Tags != "" {
				fmt.Fprintf(&sb, " (%s)", c.Tags)
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}
