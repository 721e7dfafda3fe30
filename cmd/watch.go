package cmd

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	statusadapter "github.com/bnema/octoflex/internal/adapters/render/status"
	"github.com/bnema/octoflex/internal/application"
	"github.com/spf13/cobra"
)

func newWatchCmd(app *app) *cobra.Command {
	var accounts []string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll accounts and redraw the status on every new snapshot",
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

			updates := mergeUpdates(ctx, registry)
			source := func() ([]application.AccountOverview, error) {
				return overviews(registry), nil
			}

			return statusadapter.Watch(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), source, updates, app.cfg.StaleAfter)
		},
	}

	cmd.Flags().StringSliceVar(&accounts, "account", nil, "Account number (repeatable, default: all accounts)")

	return cmd
}

// mergeUpdates folds every session's "snapshot updated" signal into one
// channel. Signals coalesce; the channel closes once ctx is done.
func mergeUpdates(ctx context.Context, registry *application.Registry) <-chan struct{} {
	merged := make(chan struct{}, 1)

	var wg sync.WaitGroup
	for _, account := range registry.Accounts() {
		session, err := registry.Session(account)
		if err != nil {
			continue
		}
		ch, unsubscribe := session.Subscribe()

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer unsubscribe()
			for {
				select {
				case <-ctx.Done():
					return
				case _, ok := <-ch:
					if !ok {
						return
					}
					select {
					case merged <- struct{}{}:
					default:
					}
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(merged)
	}()

	return merged
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}

	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
