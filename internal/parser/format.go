package parser

import (
	"fmt"
	"strings"
)

// FormatMarkdown renders an AnalysisResult as markdown for terminal display.
func FormatMarkdown(result *AnalysisResult) string {
	var sb strings.Builder
	sb.WriteString("# Analysis Results\n\n")

	if result.HasHypotheses() {
		sb.WriteString("## Hypotheses\n\n")
		for _, h := range result.Hypotheses {
			fmt.Fprintf(&sb, "### %s [%s]\n\n", h.Title, h.Confidence)
			if h.Summary != "" {
				sb.WriteString(h.Summary + "\n")
			}
			if len(h.Evidence) > 0 {
				sb.WriteString("**Evidence:**\n")
				for _, e := range h.Evidence {
					fmt.Fprintf(&sb, "- %s\n", e)
				}
			}
			sb.WriteString("\n")
		}
	}

	if result.HasSearchResults() {
		sb.WriteString("## Data Sources\n\n")
		for _, r := range result.SearchResults {
			fmt.Fprintf(&sb, "- **%s** (%s): %s\n", r.Source, r.Relevance, r.Snippet)
		}
		sb.WriteString("\n")
	}

	if result.Explanation != nil {
		sb.WriteString("## Methodology\n\n")
		sb.WriteString(result.Explanation.Methodology + "\n\n")
		sb.WriteString("### Limitations\n\n")
		sb.WriteString(result.Explanation.Limitations + "\n\n")
		if len(result.Explanation.NextSteps) > 0 {
			sb.WriteString("### Next Steps\n\n")
			for i, step := range result.Explanation.NextSteps {
				fmt.Fprintf(&sb, "%d. %s\n", i+1, step)
			}
		}
	}

	return sb.String()
}
