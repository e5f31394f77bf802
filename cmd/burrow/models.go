package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/burrowhq/burrow/internal/models"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List model aliases",
	Long: `List every model alias and the API model it resolves to.

The starred row is the configured default. Switch per run with
-m/--model, per project in .burrow/config.yaml, or persistently with
/model inside the REPL.`,
	RunE: runModelsCmd,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

func runModelsCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The config may hold either form; normalize so the star lands.
	current := models.FriendlyName(cfg.Model)
	for _, m := range models.List() {
		marker := " "
		if m.Name == current {
			marker = "*"
		}
		kind := "fast"
		if m.Reasoning {
			kind = "reasoning"
		}
		fmt.Printf("%s %-16s %-28s %-10s %s\n", marker, m.Name, m.APIModel, kind, m.Description)
	}
	return nil
}
