package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/hsuanyo7160/go-travel-planner/internal/itinerary"
	"github.com/hsuanyo7160/go-travel-planner/internal/llm"
)

type generateFlags struct {
	destination  string
	days         int
	start        string
	end          string
	budget       float64
	travelers    int
	preferences  []string
	pace         string
	requirements string
	output       string
}

func (f generateFlags) request() itinerary.PlanRequest {
	req := itinerary.PlanRequest{
		Destination:         f.destination,
		StartDate:           f.start,
		EndDate:             f.end,
		Days:                f.days,
		Travelers:           f.travelers,
		Preferences:         f.preferences,
		Pace:                f.pace,
		SpecialRequirements: f.requirements,
	}
	if f.budget > 0 {
		b := f.budget
		req.Budget = &b
	}
	return req
}

func generateCMD(cfgPath *string) *cobra.Command {
	var f generateFlags

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate an itinerary and print it as JSON",
		Example: `  travelplanner generate -d 京都 -n 3 --budget 20000 --pref 寺廟 --pref 美食
  travelplanner generate -d 台北 --start 2025-05-01 --end 2025-05-03 -o plan.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(*cfgPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if cfg.Generation.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.Generation.Timeout)
				defer cancel()
			}

			client, err := llm.New(ctx, cfg.LLMClientConfig())
			if err != nil {
				return fmt.Errorf("create llm client: %w", err)
			}
			gen := itinerary.NewGenerator(client,
				itinerary.WithSettings(cfg.GenerationSettings()),
				itinerary.WithLogger(logger),
			)

			plan, err := gen.Generate(ctx, f.request(), progressPrinter(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			return writePlan(cmd.OutOrStdout(), f.output, plan)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.destination, "destination", "d", "", "destination (required)")
	fl.IntVarP(&f.days, "days", "n", 0, "number of days, or use --start/--end")
	fl.StringVar(&f.start, "start", "", "start date YYYY-MM-DD")
	fl.StringVar(&f.end, "end", "", "end date YYYY-MM-DD")
	fl.Float64Var(&f.budget, "budget", 0, "total budget, 0 means flexible")
	fl.IntVar(&f.travelers, "travelers", 1, "number of travelers")
	fl.StringSliceVar(&f.preferences, "pref", nil, "preferences, repeatable")
	fl.StringVar(&f.pace, "pace", "moderate", "relaxed, moderate or fast")
	fl.StringVar(&f.requirements, "requirements", "", "special requirements")
	fl.StringVarP(&f.output, "output", "o", "", "write the plan to this file instead of stdout")
	_ = cmd.MarkFlagRequired("destination")
	return cmd
}

func progressPrinter(w io.Writer) itinerary.ProgressFunc {
	return func(current, total int, message string) {
		fmt.Fprintf(w, "[%d/%d] %s\n", current, total, message)
	}
}

func writePlan(stdout io.Writer, path string, plan *itinerary.Plan) error {
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	fmt.Fprintf(stdout, "plan saved to %s\n", path)
	return nil
}
