package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hsuanyo7160/go-travel-planner/internal/llm"
)

func pingCMD(cfgPath *string) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the configured AI provider answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup(*cfgPath)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			client, err := llm.New(ctx, cfg.LLMClientConfig())
			if err != nil {
				return fmt.Errorf("create llm client: %w", err)
			}
			res, err := llm.Ping(ctx, client)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s ok in %s: %q\n", res.Provider, res.Latency.Round(time.Millisecond), res.Reply)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "give up after this long")
	return cmd
}
