package cli

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/promptops/insightgate/internal/approval"
	"github.com/promptops/insightgate/internal/audit"
	"github.com/promptops/insightgate/internal/config"
	"github.com/promptops/insightgate/internal/llm"
	"github.com/promptops/insightgate/internal/orchestrator"
	"github.com/promptops/insightgate/internal/parser"
	"github.com/promptops/insightgate/internal/settings"
	"github.com/promptops/insightgate/internal/template"
)

var (
	analyzeTemplate string
	analyzeVars     []string
	analyzeBypass   bool
	analyzeElevated bool
	analyzeActor    string
	analyzeRegion   string
	analyzeTimeout  time.Duration
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [prompt]",
	Short: "Run an analysis request through the validation pipeline",
	Long: `Run a free-text prompt or a stored template through validation,
dispatch and parsing. The result is printed as markdown and the
transaction is recorded in the audit trail.

Examples:
  insightgate analyze "Analyze the sales data for Q4 2024"
  insightgate analyze --template trend-analysis \
      --var dataset="billing data" --var metric=revenue --var time_period="last quarter"
  insightgate analyze --bypass --elevated "raw prompt for security testing"`,
	RunE: analyzeCommand,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeTemplate, "template", "", "Template id to render instead of free text")
	analyzeCmd.Flags().StringArrayVar(&analyzeVars, "var", nil, "Template variable as name=value (repeatable)")
	analyzeCmd.Flags().BoolVar(&analyzeBypass, "bypass", false, "Request a security-check bypass for this transaction")
	analyzeCmd.Flags().BoolVar(&analyzeElevated, "elevated", false, "Assert elevated privilege for the acting identity")
	analyzeCmd.Flags().StringVar(&analyzeActor, "actor", "", "Acting identity recorded in the audit trail (default: OS user)")
	analyzeCmd.Flags().StringVar(&analyzeRegion, "region", "us-east-1", "AWS region for live model invocation")
	analyzeCmd.Flags().DurationVar(&analyzeTimeout, "timeout", 60*time.Second, "Overall transaction timeout")
	rootCmd.AddCommand(analyzeCmd)
}

func analyzeCommand(cmd *cobra.Command, args []string) error {
	if analyzeTemplate == "" && len(args) == 0 {
		return fmt.Errorf("provide a prompt or select a template with --template")
	}

	cfg, err := config.Load(settingsPath, templatesPath, auditPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cache := settings.NewCache(cfg.SettingsPath, settings.DefaultTTL)
	policy, err := cache.Get()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	store, err := template.LoadStore(cfg.TemplatesPath)
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	sink, err := audit.NewLogger(cfg.AuditPath)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer sink.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), analyzeTimeout)
	defer cancel()

	opts := []orchestrator.Option{}
	if !policy.DemoMode {
		live, err := llm.NewBedrockClient(ctx, analyzeRegion)
		if err != nil {
			return fmt.Errorf("failed to initialize model client: %w", err)
		}
		opts = append(opts, orchestrator.WithLiveClient(live))
	}

	req := orchestrator.Request{
		Actor:      resolveActor(),
		Elevated:   analyzeElevated,
		Prompt:     strings.Join(args, " "),
		TemplateID: analyzeTemplate,
		Variables:  parseVars(analyzeVars),
	}

	if analyzeBypass {
		res := approval.Ask(approval.Prompt{Actor: req.Actor, Mode: string(policy.Mode)})
		req.Bypass = res.Confirmed
		if !res.Confirmed {
			fmt.Fprintln(os.Stderr, "Bypass not confirmed; security checks will run.")
		}
	}

	result, err := orchestrator.New(cache, store, sink, opts...).Run(ctx, req)
	if err != nil {
		return err
	}

	if result.Record.DemoMode {
		fmt.Fprintln(os.Stderr, llm.DemoBanner)
		fmt.Fprintln(os.Stderr, "")
	}
	if result.BypassUsed {
		fmt.Fprintln(os.Stderr, "Security checks were bypassed for this transaction.")
		fmt.Fprintln(os.Stderr, "")
	}

	fmt.Println(parser.FormatMarkdown(result.Analysis))
	fmt.Printf("\n---\nTokens: %d in / %d out  Elapsed: %dms  Record: %s\n",
		result.Record.InputTokens, result.Record.OutputTokens,
		result.Record.ElapsedMS, result.Record.ID)
	return nil
}

func resolveActor() string {
	if analyzeActor != "" {
		return analyzeActor
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "unknown"
}

func parseVars(pairs []string) map[string]string {
	if len(pairs) == 0 {
		return nil
	}
	vars := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		vars[strings.TrimSpace(name)] = value
	}
	return vars
}
