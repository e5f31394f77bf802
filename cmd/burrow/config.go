package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/burrowhq/burrow/internal/config"
)

var configJSON bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Print the effective configuration and where each value came from.

Configuration priority (highest to lowest):
  1. Command-line flags
  2. Environment variables (BURROW_*, XAI_*)
  3. Project config (.burrow/config.yaml)
  4. Home config (~/.burrow/config.yaml)
  5. Defaults

Environment variables:
  BURROW_CONFIG       - Explicit project config path
  BURROW_MODEL        - Default model alias
  BURROW_BASE_DIR     - Data directory path (default ~/.burrow)
  BURROW_VERBOSE      - Enable verbose output (true/1)
  BURROW_LEAN         - Trim response padding (true/1)
  BURROW_AUTO_YES     - Approve file writes without prompting (true/1)
  BURROW_NO_CACHE     - Disable the response cache (true/1)
  BURROW_COMPACT_MODE - Context compaction mode (smart, always, never)
  NO_COLOR            - Disable ANSI colour
  XAI_API_KEY         - API key (get one at console.x.ai)
  XAI_BASE_URL        - Alternate OpenAI-compatible endpoint

Examples:
  burrow config
  burrow config --json`,
	RunE: runConfigCmd,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.Flags().BoolVar(&configJSON, "json", false, "Emit the source report as JSON")
}

func runConfigCmd(cmd *cobra.Command, args []string) error {
	resolved := config.Resolve(flagModel, flagVerbose)

	if configJSON {
		data, err := json.MarshalIndent(resolved, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Effective values as YAML, the same shape the config files use.
	// The key is redacted: config output ends up in pastes and logs.
	display := *cfg
	if display.API.Key != "" {
		display.API.Key = "(set)"
	}
	out, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	fmt.Print(string(out))

	fmt.Println()
	fmt.Println("Sources:")
	fmt.Printf("  model:        %v  (%s)\n", resolved.Model.Value, resolved.Model.Source)
	fmt.Printf("  base_dir:     %v  (%s)\n", resolved.BaseDir.Value, resolved.BaseDir.Source)
	fmt.Printf("  compact_mode: %v  (%s)\n", resolved.CompactMode.Value, resolved.CompactMode.Source)
	fmt.Printf("  api_base_url: %v  (%s)\n", resolved.APIBaseURL.Value, resolved.APIBaseURL.Source)
	fmt.Printf("  api_key:      %v  (%s)\n", resolved.APIKey.Value, resolved.APIKey.Source)
	fmt.Printf("  verbose:      %v  (%s)\n", resolved.Verbose.Value, resolved.Verbose.Source)

	fmt.Println()
	fmt.Println("Config files:")
	home, _ := os.UserHomeDir()
	for _, path := range []string{
		filepath.Join(home, ".burrow", "config.yaml"),
		filepath.Join(".burrow", "config.yaml"),
	} {
		state := "absent"
		if _, err := os.Stat(path); err == nil {
			state = "present"
		}
		fmt.Printf("  %s (%s)\n", path, state)
	}
	return nil
}
