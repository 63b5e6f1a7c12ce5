package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"RegulatoryRadar/internal/app"
	"RegulatoryRadar/internal/config"
	"RegulatoryRadar/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type options struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:          "regulatoryradar",
		Short:        "Match regulatory announcements to tenant businesses and raise compliance alerts",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the YAML config (defaults to $REGRADAR_CONFIG)")

	root.AddCommand(newServeCmd(opts), newScanCmd(opts), newProfileCmd(opts))
	return root
}

func newServeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scan scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.Application) error {
				return a.Serve(ctx)
			})
		},
	}
}

func newScanCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run a single scan and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.Application) error {
				return a.ScanOnce(ctx)
			})
		},
	}
}

func newProfileCmd(opts *options) *cobra.Command {
	profile := &cobra.Command{
		Use:   "profile",
		Short: "Manage tenant business profiles",
	}

	set := &cobra.Command{
		Use:   "set <tenant-id> <description>",
		Short: "Extract, embed and store a tenant profile",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			description := strings.Join(args[1:], " ")
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.Application) error {
				p, err := a.Profiles().UpdateProfile(ctx, args[0], description)
				if err != nil {
					return err
				}
				return printJSON(cmd, p.Attributes)
			})
		},
	}

	get := &cobra.Command{
		Use:   "get <tenant-id>",
		Short: "Show a stored tenant profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), opts, func(ctx context.Context, a *app.Application) error {
				p, err := a.Profiles().GetProfile(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{
					"tenant_id":     p.TenantID,
					"description":   p.Description,
					"attributes":    p.Attributes,
					"has_embedding": p.HasEmbedding(),
					"updated_at":    p.UpdatedAt,
				})
			})
		},
	}

	profile.AddCommand(set, get)
	return profile
}

func withApp(ctx context.Context, opts *options, fn func(context.Context, *app.Application) error) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application init failed", "error", err)
		return err
	}
	defer application.Close()

	if err := fn(ctx, application); err != nil {
		logger.Error("command failed", "error", err)
		return err
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
