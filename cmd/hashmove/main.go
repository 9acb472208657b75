package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"hashmove/internal/app"
	"hashmove/internal/config"
	"hashmove/internal/hm"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file, then applies .env and environment overrides.
func loadConfig() (*config.Config, string, error) {
	paths, err := app.DefaultPaths()
	if err != nil {
		return nil, "", fmt.Errorf("resolving default paths: %w", err)
	}

	if err := config.LoadEnv(); err != nil {
		return nil, "", err
	}

	cfg, err := config.ReadFromFile(paths.ConfigFile)
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, paths.ConfigFile, nil
}

// newApp reads the config and creates a MigrationApp. The caller must defer app.Close().
func newApp(ctx context.Context, operation string, cfg *config.Config) (*app.MigrationApp, error) {
	a, err := app.NewMigrationApp(ctx, cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// applyMode resolves --dry-run and --live against the configured default.
func applyMode(cmd *cobra.Command, cfg *config.Config) {
	if live, _ := cmd.Flags().GetBool("live"); live {
		cfg.DryRun = false
	}
	if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
		cfg.DryRun = true
	}
}

// confirmLive asks before a live run when stdin is a terminal.
func confirmLive(cmd *cobra.Command, cfg *config.Config, what string) (bool, error) {
	if cfg.DryRun {
		return true, nil
	}
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return true, nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return true, nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "LIVE %s against %s@%s/%s (migration %s). Continue? [y/N] ",
		what, cfg.Database.User, cfg.Database.Host, cfg.Database.Name, cfg.MigrationID)
	answer, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

func printSummary(cmd *cobra.Command, verb string, s *hm.Summary, dryRun bool) {
	mode := "live"
	if dryRun {
		mode = "dry run"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %d done, %d skipped, %d failed, %d rows rewritten\n",
		verb, mode, s.Migrated, s.Skipped, s.Failed, s.Updated)
	for _, r := range s.Results {
		if r.Outcome == hm.OutcomeFailed {
			fmt.Fprintf(cmd.OutOrStdout(), "  FAILED %s after %d attempt(s): %v\n", r.Source, r.Attempts, r.Err)
		}
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var rootCmd = &cobra.Command{
	Use:          "hashmove",
	Short:        "Move archived files into a content-addressed layout",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init DATA_DIR",
	Short: "Initialize configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := app.DefaultPaths()
		if err != nil {
			return fmt.Errorf("failed to resolve default paths: %w", err)
		}

		cfg := config.NewConfig(paths.BaseDir, args[0])
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		if err := config.Init(paths.ConfigFile, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", paths.ConfigFile)
		fmt.Printf("Migration ID: %s\n", cfg.MigrationID)
		fmt.Printf("Data Dir:     %s\n", cfg.DataDir)
		fmt.Printf("Dry Run:      %v\n", cfg.DryRun)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Database.Password != "" {
			cfg.Database.Password = "********"
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		m := &config.Manager{}
		return m.Write(os.Stdout, cfg)
	},
}

// migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate [PATH]",
	Short: "Migrate files under PATH (default: data_dir) into the shard layout",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resume, _ := cmd.Flags().GetBool("resume")

		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		applyMode(cmd, cfg)

		ok, err := confirmLive(cmd, cfg, "migration")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}

		a, err := newApp(cmd.Context(), hm.OperationMigrate, cfg)
		if err != nil {
			return err
		}
		defer a.Close(context.WithoutCancel(cmd.Context()))

		target := ""
		if len(args) > 0 {
			target = args[0]
		}

		summary, err := a.MigrateAll(cmd.Context(), target, resume)
		if summary != nil {
			printSummary(cmd, "Migrated", summary, cfg.DryRun)
		}
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		return nil
	},
}

// fix command
var fixCmd = &cobra.Command{
	Use:   "fix FILE",
	Short: "Apply a list of hash corrections",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		applyMode(cmd, cfg)

		ok, err := confirmLive(cmd, cfg, "fix")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}

		a, err := newApp(cmd.Context(), hm.OperationFix, cfg)
		if err != nil {
			return err
		}
		defer a.Close(context.WithoutCancel(cmd.Context()))

		summary, err := a.FixAll(cmd.Context(), args[0])
		if summary != nil {
			printSummary(cmd, "Fixed", summary, cfg.DryRun)
		}
		if err != nil {
			return fmt.Errorf("fix failed: %w", err)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), app.OperationHistory, cfg)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		runs, err := a.GetHistory(limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		for _, r := range runs {
			duration := ""
			if r.FinishedAt.Valid {
				d := r.FinishedAt.Time.Sub(r.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			mode := "live"
			if r.DryRun {
				mode = "dry"
			}
			fmt.Printf("%s  %-7s  %-4s  %s  %-7s  done=%d skipped=%d failed=%d  %s\n",
				shortID(r.ID),
				r.Operation,
				mode,
				r.StartedAt.Format("2006-01-02 15:04:05"),
				r.Status,
				r.Migrated, r.Skipped, r.Failed,
				duration,
			)
		}
		return nil
	},
}

// path command
var pathCmd = &cobra.Command{
	Use:   "path HASH EXT",
	Short: "Print the canonical storage path for a hash",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ext := args[1]
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		p, err := hm.CanonicalPath(strings.ToLower(args[0]), hm.NormalizeExtension(ext))
		if err != nil {
			return err
		}
		fmt.Println(p)
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// mode flags
	for _, c := range []*cobra.Command{migrateCmd, fixCmd} {
		c.Flags().Bool("dry-run", false, "Roll back every transaction and leave files in place")
		c.Flags().Bool("live", false, "Commit changes and move files")
		c.Flags().BoolP("yes", "y", false, "Skip the live-run confirmation")
		c.MarkFlagsMutuallyExclusive("dry-run", "live")
	}
	migrateCmd.Flags().Bool("resume", false, "Skip sources already migrated by a live run")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(fixCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of runs to show")
	rootCmd.AddCommand(pathCmd)
}
