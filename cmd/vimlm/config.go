package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChamsBouzaiene/vimlm/internal/providers"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		manager, cfg, err := loadConfig()
		if err != nil {
			return err
		}

		shown := *cfg
		if shown.APIKey != "" {
			shown.APIKey = maskKey(shown.APIKey)
		}
		data, err := json.MarshalIndent(shown, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "# %s\n%s\n", manager.GetConfigPath(), data)
		fmt.Fprintf(out, "# providers: %s\n", strings.Join(providers.SupportedProviders(), ", "))
		return nil
	},
}

func maskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return key[:4] + strings.Repeat("*", 8)
}
