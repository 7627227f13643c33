package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hsuanyo7160/go-travel-planner/internal/itinerary"
	"github.com/hsuanyo7160/go-travel-planner/internal/llm"
)

func parseCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:     "parse <text>",
		Short:   "Turn a free-text trip description into a plan request",
		Example: `  travelplanner parse "下個月想帶爸媽去京都玩五天，預算三萬"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*cfgPath)
			if err != nil {
				return err
			}
			text := strings.Join(args, " ")
			if limit := cfg.Limits.MaxInputLength; limit > 0 && len([]rune(text)) > limit {
				return fmt.Errorf("text is longer than %d characters", limit)
			}

			client, err := llm.New(cmd.Context(), cfg.LLMClientConfig())
			if err != nil {
				return fmt.Errorf("create llm client: %w", err)
			}
			parsed, err := itinerary.ParseRequest(cmd.Context(), client, text, logger)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(parsed)
		},
	}
}
