package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tripcrew/trip-planner/internal/config"
	"github.com/tripcrew/trip-planner/internal/dates"
	"github.com/tripcrew/trip-planner/internal/store"
	"github.com/tripcrew/trip-planner/internal/tools"
)

var nowFunc = time.Now

func newDatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dates <text>",
		Short: "Resolve a free-form date range into calendar days",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			days, degraded := dates.Resolve(strings.Join(args, " "), nowFunc())
			if degraded {
				fmt.Fprintln(cmd.ErrOrStderr(), "date range degraded: showing best-effort days")
			}
			for _, d := range days.Strings() {
				fmt.Fprintln(cmd.OutOrStdout(), d)
			}
			return nil
		},
	}
}

func newCalcCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "calc <expression>",
		Short: "Evaluate an arithmetic expression",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := tools.Evaluate(strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(v, 'f', -1, 64))
			return nil
		},
	}
}

func newFetchCmd() *cobra.Command {
	var (
		format   string
		maxChars int
	)

	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Fetch a page and print its reduced text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bc := config.Load().ToolsConfig().Browser
			if format != "" {
				bc.Format = format
			}
			if maxChars > 0 {
				bc.MaxChars = maxChars
			}
			fmt.Fprintln(cmd.OutOrStdout(), tools.NewBrowser(bc, &http.Client{}).Fetch(cmd.Context(), args[0]))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "output format: text or markdown")
	cmd.Flags().IntVar(&maxChars, "max-chars", 0, "truncate output to this many characters")
	return cmd
}

func newSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Run a web search with the configured provider",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc := config.Load().ToolsConfig().Search
			if sc.APIKey == "" {
				return errors.New("SERPER_API_KEY is not set")
			}
			query, err := json.Marshal(map[string]string{"query": strings.Join(args, " ")})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tools.NewSearch(sc, &http.Client{}).Call(cmd.Context(), string(query)))
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the plan store schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			ctx := cmd.Context()

			db, err := store.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated %s database\n", db.Driver())
			return nil
		},
	}
}
