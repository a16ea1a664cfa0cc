package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"projecthub/config"
	"projecthub/internal/app"
	"projecthub/migrations"
	"projecthub/pkg/logger"
	"projecthub/pkg/outbox"
)

type globalOpts struct {
	configPath string
	configDir  string
	env        string
}

func (o *globalOpts) load() (*config.Config, error) {
	if o.configDir != "" {
		return config.LoadLayered(o.env, o.configDir)
	}
	return app.LoadConfig(o.configPath)
}

func newRootCmd() *cobra.Command {
	opts := &globalOpts{}
	root := &cobra.Command{
		Use:           "pmctl",
		Short:         "projecthub maintenance commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "path to config.yaml")
	root.PersistentFlags().StringVar(&opts.configDir, "config-dir", "", "directory with base.yaml, <env>.yaml and secrets.env")
	root.PersistentFlags().StringVar(&opts.env, "env", "local", "environment layer used with --config-dir")

	root.AddCommand(migrateCmd(opts), sweepCmd(opts), outboxCmd(opts))
	return root
}

// withCore opens storage for the duration of fn.
func withCore(cmd *cobra.Command, opts *globalOpts, fn func(ctx context.Context, core *app.Core, log *zap.Logger) error) error {
	log := logger.NewLogger()
	defer log.Sync()

	cfg, err := opts.load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	core, err := app.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer core.Close()
	return fn(ctx, core, log)
}

func migrateCmd(opts *globalOpts) *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if list {
				names, err := migrations.Files()
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(cmd.OutOrStdout(), n)
				}
				return nil
			}
			return withCore(cmd, opts, func(ctx context.Context, core *app.Core, log *zap.Logger) error {
				n, err := migrations.Apply(ctx, core.Pool, log)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list embedded migrations without connecting")
	return cmd
}

func sweepCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one deadline sweep and send due reminders",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCore(cmd, opts, func(ctx context.Context, core *app.Core, _ *zap.Logger) error {
				if err := core.Engine.CheckDeadlines(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "sweep complete")
				return nil
			})
		},
	}
}

func outboxCmd(opts *globalOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and replay failed outbox events",
	}

	var (
		limit      int
		jsonOutput bool
	)
	failed := &cobra.Command{
		Use:   "failed",
		Short: "List failed events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCore(cmd, opts, func(ctx context.Context, core *app.Core, log *zap.Logger) error {
				events, err := outbox.NewReplayService(core.Repos.Outbox, log).ListFailed(ctx, limit)
				if err != nil {
					return err
				}
				return printEvents(cmd.OutOrStdout(), events, jsonOutput)
			})
		},
	}
	failed.Flags().IntVar(&limit, "limit", 50, "maximum number of events")
	failed.Flags().BoolVar(&jsonOutput, "json", false, "output JSON")

	replay := &cobra.Command{
		Use:   "replay <event-id>",
		Short: "Reset one failed event to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid event id %q", args[0])
			}
			return withCore(cmd, opts, func(ctx context.Context, core *app.Core, log *zap.Logger) error {
				if err := outbox.NewReplayService(core.Repos.Outbox, log).ReplayEvent(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "event %d queued for replay\n", id)
				return nil
			})
		},
	}

	var replayLimit int
	replayAll := &cobra.Command{
		Use:   "replay-failed",
		Short: "Reset every failed event to pending",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCore(cmd, opts, func(ctx context.Context, core *app.Core, log *zap.Logger) error {
				n, err := outbox.NewReplayService(core.Repos.Outbox, log).ReplayFailedEvents(ctx, replayLimit)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d event(s) queued for replay\n", n)
				return nil
			})
		},
	}
	replayAll.Flags().IntVar(&replayLimit, "limit", 100, "maximum number of events")

	cmd.AddCommand(failed, replay, replayAll)
	return cmd
}

func printEvents(w io.Writer, events []*outbox.Event, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	}
	if len(events) == 0 {
		_, err := fmt.Fprintln(w, "no failed events")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tROUTING KEY\tRETRIES\tLAST ERROR")
	for _, e := range events {
		lastErr := ""
		if e.LastError != nil {
			lastErr = *e.LastError
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", e.ID, e.RoutingKey, e.RetryCount, lastErr)
	}
	return tw.Flush()
}
