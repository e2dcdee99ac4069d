package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"raindrop_sync/internal/app"
	"raindrop_sync/internal/apperr"
	"raindrop_sync/internal/auth"
	"raindrop_sync/internal/config"
	"raindrop_sync/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type flags struct {
	configPath string
	vault      string
	enrich     bool
}

func rootCMD() *cobra.Command {
	f := &flags{}

	var root = &cobra.Command{
		Use:           "raindrop-sync",
		Short:         "Export Raindrop.io bookmarks into Obsidian markdown files",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, f)
		},
	}
	root.PersistentFlags().StringVarP(&f.configPath, "config", "c", getenv("RAINDROP_SYNC_CONFIG", "config.yaml"), "config file")
	root.PersistentFlags().StringVar(&f.vault, "vault", "", "override output.vault_path; absolute output files outside the configured vault are not moved")
	root.PersistentFlags().BoolVar(&f.enrich, "enrich", false, "fetch excerpts for bookmarks that have none")

	var sync = &cobra.Command{
		Use:   "sync",
		Short: "Write tagged and untagged bookmark files (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, f)
		},
	}

	var login = &cobra.Command{
		Use:   "login",
		Short: "Authorize with Raindrop and cache the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, f, func(a *app.SyncApp, log *zap.Logger) error {
				if err := a.Login(cmd.Context()); err != nil {
					log.Error("Login failed", zap.Error(err))
					return err
				}
				log.Info("Login succeeded, token cached")
				return nil
			})
		},
	}

	var collections = &cobra.Command{
		Use:   "collections",
		Short: "Print the resolved collection paths",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, f, func(a *app.SyncApp, log *zap.Logger) error {
				entries, err := a.Collections(cmd.Context())
				if err != nil {
					log.Error("Listing collections failed", zap.Error(err))
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tPATH")
				for _, e := range entries {
					fmt.Fprintf(w, "%s\t%s\n", e.CompositeID, e.Path)
				}
				return w.Flush()
			})
		},
	}

	var limit int
	var history = &cobra.Command{
		Use:   "history",
		Short: "Show recent sync runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, f, func(a *app.SyncApp, log *zap.Logger) error {
				runs, err := a.History(cmd.Context(), limit)
				if err != nil {
					log.Error("Listing sync runs failed", zap.Error(err))
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "STARTED\tSTATUS\tTAGGED\tUNTAGGED\tSKIPPED\tERROR")
				for _, r := range runs {
					fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
						time.Unix(r.StartedAt, 0).Format(time.DateTime),
						r.Status, r.Tagged, r.Untagged, r.Skipped, r.ErrorKind)
				}
				return w.Flush()
			})
		},
	}
	history.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show")

	root.AddCommand(sync, login, collections, history)
	return root
}

func runSync(cmd *cobra.Command, f *flags) error {
	return withApp(cmd, f, func(a *app.SyncApp, _ *zap.Logger) error {
		_, err := a.Run(cmd.Context())
		return err
	})
}

// withApp loads config and logging, builds the app and hands it to fn.
// cobra prints any returned error to stderr.
func withApp(cmd *cobra.Command, f *flags, fn func(*app.SyncApp, *zap.Logger) error) error {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}

	log, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return apperr.New(apperr.KindConfig, "open log", err)
	}
	defer closeLog()

	prompt := auth.TerminalPrompter{In: os.Stdin, Out: os.Stdout}
	a, cleanup, err := app.Build(cmd.Context(), cfg, log, prompt)
	if err != nil {
		log.Error("Startup failed", zap.Error(err))
		return err
	}
	defer cleanup()

	return fn(a, log)
}

func loadConfig(cmd *cobra.Command, f *flags) (*config.SyncConfig, error) {
	cfg, err := config.LoadConfig(f.configPath)
	if err != nil {
		return nil, apperr.New(apperr.KindConfig, "load "+f.configPath, err)
	}
	if f.vault != "" {
		cfg.SetVault(f.vault)
	}
	if cmd.Flags().Changed("enrich") {
		cfg.Enrich.Enabled = f.enrich
	}
	if err := cfg.Validate(); err != nil {
		return nil, apperr.New(apperr.KindConfig, "validate "+f.configPath, err)
	}
	return cfg, nil
}
