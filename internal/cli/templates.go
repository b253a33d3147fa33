package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/promptops/insightgate/internal/config"
	"github.com/promptops/insightgate/internal/template"
)

var templatesCategory string

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the active analysis templates",
	Long: `List the active template catalog with their variables.

Examples:
  insightgate templates
  insightgate templates --category "Performance"`,
	RunE: templatesCommand,
}

func init() {
	templatesCmd.Flags().StringVar(&templatesCategory, "category", "", "Show only templates in this category")
	rootCmd.AddCommand(templatesCmd)
}

func templatesCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(settingsPath, templatesPath, auditPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := template.LoadStore(cfg.TemplatesPath)
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	categories := store.Categories()
	if templatesCategory != "" {
		categories = []string{templatesCategory}
	}

	shown := 0
	for _, category := range categories {
		templates := store.GetActiveByCategory(category)
		if len(templates) == 0 {
			continue
		}
		fmt.Printf("%s\n", category)
		for _, t := range templates {
			fmt.Printf("  %-22s %s\n", t.ID, t.Name)
			if t.Description != "" {
				fmt.Printf("  %-22s %s\n", "", t.Description)
			}
			for _, v := range t.Variables {
				required := "optional"
				if v.Required {
					required = "required"
				}
				fmt.Printf("  %-22s   --var %s=...  (%s, %s)\n", "", v.Name, v.Type, required)
			}
			shown++
		}
		fmt.Println()
	}

	if shown == 0 {
		fmt.Println("No active templates found.")
	}
	return nil
}
