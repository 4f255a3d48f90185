package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/tripcrew/trip-planner/internal/config"
	"github.com/tripcrew/trip-planner/internal/llm"
	"github.com/tripcrew/trip-planner/internal/model"
	"github.com/tripcrew/trip-planner/internal/pipeline"
	"github.com/tripcrew/trip-planner/internal/service"
	"github.com/tripcrew/trip-planner/internal/tools"
	"github.com/tripcrew/trip-planner/pkg/logger"
)

type tripFlags struct {
	origin    string
	cities    string
	dateRange string
	interests string
}

func (f *tripFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.origin, "origin", "", "departure city")
	cmd.Flags().StringVar(&f.cities, "cities", "", "comma separated candidate cities")
	cmd.Flags().StringVar(&f.dateRange, "dates", "", `travel dates, e.g. "2025-10-01 ~ 2025-10-05"`)
	cmd.Flags().StringVar(&f.interests, "interests", "", "free-form interests")
	_ = cmd.MarkFlagRequired("cities")
	_ = cmd.MarkFlagRequired("dates")
}

func (f *tripFlags) request() model.TripRequest {
	return model.PlanRequest{
		Origin:    f.origin,
		Cities:    model.CityList(model.SplitCities(f.cities)),
		DateRange: f.dateRange,
		Interests: f.interests,
	}.TripRequest()
}

func newPlanCmd(root *rootOptions) *cobra.Command {
	var (
		trip tripFlags
		raw  bool
	)

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Run the planning pipeline and print the structured itinerary",
		Example: `  tripctl plan --origin Seoul --cities "Kyoto, Osaka" --dates "2025-10-01 ~ 2025-10-03" --interests food
  tripctl plan --origin Seoul --cities Kyoto --dates "2025-10-01" --raw`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			log, err := root.logger()
			if err != nil {
				return err
			}
			defer log.Sync()

			client, err := llm.NewClient(llm.Provider(cfg.LLMProvider), cfg.LLMAPIKey(), cfg.OpenAIBaseURL)
			if err != nil {
				return err
			}
			toolbox := tools.NewToolbox(cfg.ToolsConfig(), &http.Client{})
			planner := service.NewPlannerService(pipeline.New(client, toolbox, cfg.PipelineConfig(), log), log)

			plan, err := planner.Plan(cmd.Context(), trip.request())
			if err != nil {
				return err
			}

			if raw {
				fmt.Fprintln(cmd.OutOrStdout(), plan.RawMarkdown)
				return nil
			}
			return printJSON(cmd, plan)
		},
	}
	trip.register(cmd)
	_ = cmd.MarkFlagRequired("origin")
	cmd.Flags().BoolVar(&raw, "raw", false, "print the raw itinerary text instead of JSON")
	return cmd
}

func newICSCmd() *cobra.Command {
	var trip tripFlags

	cmd := &cobra.Command{
		Use:   "ics",
		Short: "Print a placeholder calendar for the trip dates",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := trip.request()
			if req.Origin == "" {
				req.Origin = "-"
			}
			resp, err := service.NewPlannerService(nil, logger.NewNop()).Calendar(req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.ICS)
			return nil
		},
	}
	trip.register(cmd)
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
