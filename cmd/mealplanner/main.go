package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/korjavin/mealplanner/pkg/api"
	"github.com/korjavin/mealplanner/pkg/config"
	"github.com/korjavin/mealplanner/pkg/export"
	"github.com/korjavin/mealplanner/pkg/logger"
	"github.com/korjavin/mealplanner/pkg/models"
	"github.com/korjavin/mealplanner/pkg/recipe"
	"github.com/korjavin/mealplanner/pkg/scheduler"
	"github.com/korjavin/mealplanner/pkg/stats"
	"github.com/korjavin/mealplanner/pkg/storage"
	"github.com/korjavin/mealplanner/pkg/telegram"
	"github.com/spf13/cobra"
)

var calendarFile string

func main() {
	rootCmd := &cobra.Command{
		Use:           "mealplanner",
		Short:         "Weekly meal rotation calendar built from a recipe archive",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&calendarFile, "config", "", "calendar file (overrides CALENDAR_CONFIG)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(planCmd())
	rootCmd.AddCommand(recipesCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(exportCmd())

	if err := rootCmd.Execute(); err != nil {
		logger.Global.Error("%v", err)
		os.Exit(1)
	}
}

// loadConfig reads the environment, letting --config win over CALENDAR_CONFIG
func loadConfig() (*config.Config, error) {
	if calendarFile != "" {
		if err := os.Setenv("CALENDAR_CONFIG", calendarFile); err != nil {
			return nil, err
		}
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.SetDefaultLevel(cfg.LogLevel)
	return cfg, nil
}

func loadRecipes(cfg *config.Config) (*recipe.Store, error) {
	recipes, err := recipe.Load(cfg.Calendar.Path,
		recipe.WithMember(cfg.Calendar.Member()),
		recipe.WithFilterEnforcement(cfg.EnforceFilters),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipes: %w", err)
	}
	return recipes, nil
}

func newScheduler(cfg *config.Config, recipes *recipe.Store) (*scheduler.Scheduler, error) {
	// Validated by config.LoadCalendar
	resetDay, err := cfg.Calendar.Weekday()
	if err != nil {
		return nil, err
	}
	slots, err := cfg.Calendar.Slots()
	if err != nil {
		return nil, err
	}

	return scheduler.New(cfg.Calendar.Name, slots, resetDay, recipes,
		scheduler.WithLocation(cfg.Location),
	), nil
}

func setup() (*config.Config, *recipe.Store, *scheduler.Scheduler, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	recipes, err := loadRecipes(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	sched, err := newScheduler(cfg, recipes)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, recipes, sched, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the calendar: periodic updates, HTTP API, export and bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.Global
			log.Info("Starting meal planner...")

			cfg, recipes, sched, err := setup()
			if err != nil {
				return err
			}
			log.Info("Loaded %d recipes from %s", recipes.Len(), cfg.Calendar.Path)

			var (
				plans        scheduler.PlanStore
				recorder     scheduler.PlanRecorder
				exporter     scheduler.Exporter
				statsService *stats.Service
			)

			if cfg.DataDir != "" {
				store, err := storage.New(cfg.DataDir)
				if err != nil {
					return fmt.Errorf("failed to initialize storage: %w", err)
				}
				defer store.Close()

				// Start BadgerDB garbage collection
				store.StartGCRoutine(10 * time.Minute)

				statsService = stats.New(store)
				plans = store
				recorder = statsService
			}

			if cfg.ExportPath != "" {
				exporter = export.NewHTMLExporter(cfg.ExportPath, cfg.Calendar.Name)
			}

			service := scheduler.NewService(sched, cfg.UpdateInterval, plans, recorder, exporter)
			service.Start()
			defer service.Stop()

			server := api.New(sched, recipes, statsService, cfg.ListenAddr)
			errChan := make(chan error, 2)
			go func() {
				errChan <- server.Run()
			}()

			var bot *telegram.Bot
			if cfg.BotToken != "" {
				bot, err = telegram.New(cfg.BotToken)
				if err != nil {
					return err
				}
				handlers := telegram.NewHandlers(bot, sched, recipes, statsService)
				go func() {
					errChan <- handlers.Run()
				}()
			}

			// Handle graceful shutdown
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			select {
			case sig := <-sigChan:
				log.Info("Received %v, shutting down...", sig)
			case err := <-errChan:
				if err != nil {
					log.Error("Server stopped: %v", err)
				}
			}

			if bot != nil {
				bot.Stop()
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(ctx)
		},
	}
}

func planCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Build a plan from today and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, sched, err := setup()
			if err != nil {
				return err
			}

			if asJSON {
				events, err := sched.Events(time.Time{}, time.Time{})
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(events)
			}

			if _, err := sched.Update(); err != nil {
				return err
			}
			meals, err := sched.Assignments()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			date := ""
			for _, m := range meals {
				if m.Date != date {
					date = m.Date
					fmt.Fprintf(out, "%s %s\n", date, m.Start.Weekday())
				}
				fmt.Fprintf(out, "  %s-%s  %-10s %s\n", m.Start.Format("15:04"), m.End.Format("15:04"), m.Slot.Name, m.Title)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print calendar events as JSON")
	return cmd
}

func recipesCmd() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "recipes",
		Short: "List recipe titles in the archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			recipes, err := loadRecipes(cfg)
			if err != nil {
				return err
			}

			titles := recipes.Titles(filter)
			if filter != "" {
				titles = recipes.Candidates(filter)
			}
			for _, title := range titles {
				fmt.Fprintln(cmd.OutOrStdout(), title)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "meal filter to apply as with ENFORCE_FILTERS")
	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [title]",
		Short: "Print a recipe as Markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			recipes, err := loadRecipes(cfg)
			if err != nil {
				return err
			}

			r, err := recipes.Lookup(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), recipe.Render(r))
			return nil
		},
	}
}

func exportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write today's recipes as an HTML page once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, sched, err := setup()
			if err != nil {
				return err
			}

			path := out
			if path == "" {
				path = cfg.ExportPath
			}
			if path == "" {
				return fmt.Errorf("no export path: set --out or EXPORT_PATH")
			}

			meals, err := sched.Today()
			if err != nil {
				return err
			}

			day, err := time.ParseInLocation(models.DateLayout, sched.Date(), cfg.Location)
			if err != nil {
				return err
			}
			return export.NewHTMLExporter(path, cfg.Calendar.Name).Export(day, meals)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (defaults to EXPORT_PATH)")
	return cmd
}
