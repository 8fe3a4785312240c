// Package markdown renders a report artifact as Markdown text.
//
// Encode is a pure function: the same report always produces
// byte-identical output.
package markdown

import (
	"fmt"
	"strings"
	"time"

	"github.com/avolkov/intel-workbench/internal/core/domain"
)

const timestampLayout = time.RFC3339

func Encode(report domain.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", report.Title)
	fmt.Fprintf(&b, "_Last updated: %s_\n\n", report.LastUpdated.UTC().Format(timestampLayout))

	b.WriteString("## Executive Summary\n\n")
	b.WriteString(report.ExecutiveSummary)
	b.WriteString("\n\n")

	for _, section := range report.Sections {
		fmt.Fprintf(&b, "## %s\n\n", section.Heading)
		for _, bullet := range section.Bullets {
			fmt.Fprintf(&b, "- %s\n", bullet)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Recommendations\n\n")
	for _, rec := range report.Recommendations {
		fmt.Fprintf(&b, "- %s\n", rec)
	}
	b.WriteString("\n")

	b.WriteString("## Next Steps\n\n")
	for i, step := range report.NextSteps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	b.WriteString("\n")

	b.WriteString("## Revision History\n\n")
	for _, rev := range report.RevisionHistory {
		fmt.Fprintf(&b, "- %s: %s\n", rev.Timestamp.UTC().Format(timestampLayout), rev.Highlights)
	}

	return b.String()
}
