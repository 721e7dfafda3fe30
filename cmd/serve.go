package cmd

import (
	"fmt"

	"github.com/bnema/octoflex/internal/adapters/httpapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(app *app) *cobra.Command {
	var accounts []string
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Poll accounts and serve snapshots, commands and metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			registry, err := app.newRegistry(ctx, accountNumbers(accounts)...)
			if err != nil {
				return err
			}
			if err := registry.StartAll(ctx); err != nil {
				return err
			}
			defer registry.StopAll()

			server := httpapi.NewServer(registry,
				httpapi.WithLogger(app.logger),
				httpapi.WithGatherer(prometheus.DefaultGatherer),
			)

			app.logger.Info("serving",
				zap.String("addr", addr),
				zap.Int("accounts", len(registry.Accounts())),
				zap.Duration("poll_interval", app.cfg.PollInterval),
			)
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "listening on http://%s\n", addr)

			return server.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringSliceVar(&accounts, "account", nil, "Account number (repeatable, default: all accounts)")
	cmd.Flags().StringVar(&addr, "addr", app.cfg.ServeAddr, "Listen address")

	return cmd
}
