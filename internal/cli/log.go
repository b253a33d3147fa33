package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/promptops/insightgate/internal/audit"
	"github.com/promptops/insightgate/internal/config"
)

var (
	logFilterOutcome  string
	logFilterActor    string
	logFilterFiltered bool
	logFilterBypass   bool
	logLast           int
	logSummary        bool
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "View and filter the audit trail",
	Long: `View the InsightGate audit trail with filtering and summary options.

Examples:
  insightgate log                       # Show all records
  insightgate log --last 20             # Show last 20 records
  insightgate log --outcome blocked     # Show only blocked requests
  insightgate log --filtered            # Show only classifier-filtered requests
  insightgate log --bypass              # Show only bypass transactions
  insightgate log --summary             # Show aggregate statistics`,
	RunE: logCommand,
}

func init() {
	logCmd.Flags().StringVar(&logFilterOutcome, "outcome", "", "Filter by outcome (completed, blocked, errored)")
	logCmd.Flags().StringVar(&logFilterActor, "actor", "", "Filter by acting identity")
	logCmd.Flags().BoolVar(&logFilterFiltered, "filtered", false, "Show only filtered records")
	logCmd.Flags().BoolVar(&logFilterBypass, "bypass", false, "Show only bypass transactions")
	logCmd.Flags().IntVar(&logLast, "last", 0, "Show last N records")
	logCmd.Flags().BoolVar(&logSummary, "summary", false, "Show summary statistics")
	rootCmd.AddCommand(logCmd)
}

func logCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(settingsPath, templatesPath, auditPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	records, err := audit.Read(cfg.AuditPath)
	if err != nil {
		return fmt.Errorf("failed to read audit trail: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No audit records found.")
		return nil
	}

	filtered := audit.Filter{
		Outcome:  audit.Outcome(strings.ToLower(logFilterOutcome)),
		Actor:    logFilterActor,
		Filtered: logFilterFiltered,
		Bypass:   logFilterBypass,
		Last:     logLast,
	}.Apply(records)

	// Summary statistics honor the same filters as the listing.
	if logSummary {
		printSummary(audit.Summarize(filtered))
		return nil
	}

	printRecords(filtered)
	return nil
}

func printRecords(records []audit.Record) {
	for _, rec := range records {
		ts := formatTimestamp(rec.Timestamp)
		flags := ""
		if rec.Bypass {
			flags += " [BYPASS]"
		}
		if rec.DemoMode {
			flags += " [DEMO]"
		}

		fmt.Printf("%s %s %s/%s%s\n", outcomeIcon(rec.Outcome), ts, rec.Actor, rec.Mode, flags)
		fmt.Printf("     Prompt: %s\n", firstLine(rec.Prompt, 100))

		if rec.TemplateID != "" {
			fmt.Printf("     Template: %s\n", rec.TemplateID)
		}
		if rec.Filtered {
			fmt.Printf("     Filtered: %s", rec.FilterReason)
			if rec.Severity != "" {
				fmt.Printf(" (severity: %s)", rec.Severity)
			}
			fmt.Println()
		}
		if rec.Error != "" {
			fmt.Printf("     Error: %s\n", rec.Error)
		}
		if rec.Outcome == audit.OutcomeCompleted {
			fmt.Printf("     Tokens: %d in / %d out  Elapsed: %dms\n",
				rec.InputTokens, rec.OutputTokens, rec.ElapsedMS)
		}
		fmt.Println()
	}
}

func printSummary(s audit.Summary) {
	fmt.Println("═══════════════════════════════════════════")
	fmt.Println("  InsightGate Audit Summary")
	fmt.Println("═══════════════════════════════════════════")
	fmt.Printf("  Total requests:  %d\n", s.Total)
	fmt.Printf("  Completed:       %d\n", s.Completed)
	fmt.Printf("  Blocked:         %d\n", s.Blocked)
	fmt.Printf("  Errored:         %d\n", s.Errored)
	fmt.Printf("  Filtered:        %d\n", s.Filtered)
	fmt.Printf("  Bypass used:     %d\n", s.Bypass)
	fmt.Printf("  Tokens:          %d in / %d out\n", s.InputTokens, s.OutputTokens)
	fmt.Println("═══════════════════════════════════════════")
	if s.Total > 0 {
		fmt.Printf("  First record:    %s\n", formatTimestamp(s.First))
		fmt.Printf("  Last record:     %s\n", formatTimestamp(s.Last))
	}
	fmt.Println()
}

func outcomeIcon(outcome audit.Outcome) string {
	switch outcome {
	case audit.OutcomeCompleted:
		return "\xe2\x9c\x85" // check mark
	case audit.OutcomeBlocked:
		return "\xf0\x9f\x9b\x91" // stop sign
	case audit.OutcomeErrored:
		return "\xe2\x9d\x8c" // cross mark
	default:
		return "\xe2\x9d\x93" // question mark
	}
}

func firstLine(s string, limit int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
