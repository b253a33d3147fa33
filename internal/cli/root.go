package cli

import (
	"github.com/spf13/cobra"
)

var (
	settingsPath  string
	templatesPath string
	auditPath     string
)

var rootCmd = &cobra.Command{
	Use:   "insightgate",
	Short: "InsightGate - validated LLM analysis pipeline",
	Long: `InsightGate validates free-form or template-derived analysis requests,
screens them for prompt injection and off-topic content, dispatches them
to a language model (or a simulated equivalent in demo mode), tolerantly
parses the structured result, and records an immutable audit trail of
every transaction.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "config", "", "Path to settings YAML file (default: ~/.insightgate/settings.yaml)")
	rootCmd.PersistentFlags().StringVar(&templatesPath, "templates", "", "Path to templates YAML file (default: ~/.insightgate/templates.yaml)")
	rootCmd.PersistentFlags().StringVar(&auditPath, "log", "", "Path to audit log file (default: ~/.insightgate/audit.jsonl)")
}

func Execute() error {
	return rootCmd.Execute()
}
