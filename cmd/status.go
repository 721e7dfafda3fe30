package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/bnema/octoflex/internal/adapters/render/report"
	statusadapter "github.com/bnema/octoflex/internal/adapters/render/status"
	"github.com/bnema/octoflex/internal/application"
	"github.com/bnema/octoflex/internal/domain"
	"github.com/spf13/cobra"
)

func newStatusCmd(app *app) *cobra.Command {
	var accounts []string
	var output string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Fetch and display balances, tariffs, devices and dispatches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := validateOutput(output)
			if err != nil {
				return err
			}

			registry, err := app.newRegistry(cmd.Context(), accountNumbers(accounts)...)
			if err != nil {
				return err
			}

			fetch := func(ctx context.Context) error {
				return refreshAll(ctx, registry)
			}
			if format == report.FormatTable {
				err = statusadapter.Fetch(cmd.Context(), cmd.ErrOrStderr(), "Fetching account snapshots...", fetch)
			} else {
				err = fetch(cmd.Context())
			}

			views := overviews(registry)
			if len(views) == 0 {
				return err
			}
			if err != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}

			return writeOverviews(cmd, app, views, format)
		},
	}

	cmd.Flags().StringSliceVar(&accounts, "account", nil, "Account number (repeatable, default: all accounts)")
	cmd.Flags().StringVarP(&output, "output", "o", report.FormatTable, "Output format: table, json or yaml")

	return cmd
}

func writeOverviews(cmd *cobra.Command, app *app, views []application.AccountOverview, format string) error {
	if format != report.FormatTable {
		docs := make([]report.Overview, 0, len(views))
		for _, view := range views {
			docs = append(docs, report.FromOverview(view))
		}
		return report.Write(cmd.OutOrStdout(), format, docs)
	}

	rendered, err := app.statusRenderer(views, statusadapter.RenderOptions{
		Now:        app.now(),
		StaleAfter: app.cfg.StaleAfter,
	})
	if err != nil {
		return fmt.Errorf("render status: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

func validateOutput(format string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case report.FormatTable, report.FormatJSON, report.FormatYAML:
		return format, nil
	default:
		return "", &domain.ValidationError{Field: "output", Value: format, Message: "use table, json or yaml"}
	}
}

func accountNumbers(raw []string) []domain.AccountNumber {
	numbers := make([]domain.AccountNumber, 0, len(raw))
	for _, value := range raw {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			numbers = append(numbers, domain.AccountNumber(trimmed))
		}
	}

	return numbers
}
