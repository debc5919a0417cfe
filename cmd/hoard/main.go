package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Shadow53/save-hoarder/internal/app"
	"github.com/Shadow53/save-hoarder/internal/config"
	"github.com/Shadow53/save-hoarder/internal/hoard"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// A run that completed but left conflicts or failures behind is
		// distinguishable from a hard error.
		if errors.Is(err, hoard.ErrNotFullySynchronized) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// newApp reads the config and creates a HoardApp. The caller must defer app.Close().
func newApp(force hoard.ForceDirection) (*app.HoardApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewHoardApp(cfg, force)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "hoard",
	Short: "Synchronize piles of files between their live locations and a hoard",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["state_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("State Dir: %s\n", defaults["state_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		if env := cfg.ActiveEnvironment(); env != "" {
			fmt.Printf("Environment: %s\n", env)
		}
		fmt.Printf("State Dir:   %s\n", cfg.Settings.StateDir)
		fmt.Printf("Parallel:    %d\n", cfg.Settings.Parallel)

		piles, err := cfg.ResolvePiles()
		if err != nil {
			return err
		}
		fmt.Printf("\nPiles:\n")
		for _, p := range piles {
			fmt.Printf("  %-20s %s -> %s\n", p.Name, p.SourceRoot, p.DestinationRoot)
		}
		return nil
	},
}

// piles command
var pilesCmd = &cobra.Command{
	Use:   "piles",
	Short: "List configured piles",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(hoard.ForceNone)
		if err != nil {
			return err
		}
		defer a.Close()

		for _, p := range a.Piles() {
			fmt.Printf("%-20s %s -> %s\n", p.Name, p.SourceRoot, p.DestinationRoot)
		}
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status [PILE...]",
	Short: "Show pending operations without executing them",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(hoard.ForceNone)
		if err != nil {
			return err
		}
		defer a.Close()

		pending, err := a.Status(cmd.Context(), args)
		if err != nil {
			return err
		}

		for _, pile := range a.Piles() {
			ops, ok := pending[pile.Name]
			if !ok {
				continue
			}
			actionable := 0
			for _, op := range ops {
				if op.Kind != hoard.OpSkip {
					actionable++
				}
			}
			if actionable == 0 {
				fmt.Printf("%s: up to date\n", pile.Name)
				continue
			}
			fmt.Printf("%s:\n", pile.Name)
			for _, op := range ops {
				if op.Kind == hoard.OpSkip {
					continue
				}
				fmt.Printf("  %s\n", op)
			}
		}
		return nil
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync [PILE...]",
	Short: "Synchronize piles",
	RunE: func(cmd *cobra.Command, args []string) error {
		forceFlag, _ := cmd.Flags().GetString("force")
		force, err := hoard.ParseForceDirection(forceFlag)
		if err != nil {
			return err
		}

		a, err := newApp(force)
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.SyncPiles(cmd.Context(), args)
		for _, r := range results {
			if r.Err != nil {
				fmt.Printf("%s: error: %v\n", r.Pile, r.Err)
				continue
			}
			fmt.Printf("%s: applied %d, skipped %d, conflicts %d, failed %d\n",
				r.Pile, r.Report.Applied, r.Report.Skipped, r.Report.Conflicts, r.Report.Failed)
			for _, res := range r.Report.Results {
				if res.Status == hoard.OutcomeHeld {
					fmt.Printf("  conflict: %s (%s)\n", res.Operation.RelPath, res.Operation.Reason)
				}
			}
		}
		return err
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history [PILE]",
	Short: "View sync run history",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(hoard.ForceNone)
		if err != nil {
			return err
		}
		defer a.Close()

		pile := ""
		if len(args) > 0 {
			pile = args[0]
		}

		runs, err := a.History(pile, limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No sync runs recorded.")
			return nil
		}

		for _, run := range runs {
			duration := run.FinishedAt.Sub(run.StartedAt).Truncate(time.Millisecond)
			fmt.Printf("%s  %-20s  %s  %-12s  applied:%d conflicts:%d failed:%d  %s\n",
				run.ID[:8],
				run.Pile,
				run.StartedAt.Format("2006-01-02 15:04:05"),
				run.Status,
				run.Applied,
				run.Conflicts,
				run.Failed,
				duration,
			)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(pilesCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().String("force", "", "Resolve conflicts in favor of one side: source or destination")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to show")
}
