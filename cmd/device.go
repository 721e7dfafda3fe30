package cmd

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/bnema/octoflex/internal/adapters/render/report"
	statusadapter "github.com/bnema/octoflex/internal/adapters/render/status"
	"github.com/bnema/octoflex/internal/application"
	"github.com/bnema/octoflex/internal/domain"
	"github.com/spf13/cobra"
)

type deviceFlags struct {
	account string
	output  string
}

func (f *deviceFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.account, "account", "", "Account number (default: the only configured account)")
	cmd.Flags().StringVarP(&f.output, "output", "o", report.FormatTable, "Output format: table, json or yaml")
}

func newDeviceCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "device",
		Aliases: []string{"devices"},
		Short:   "List and control smart charging devices",
	}

	boost := &cobra.Command{
		Use:   "boost",
		Short: "Start or cancel a boost charge",
	}
	boost.AddCommand(
		newDeviceCommandCmd(app, "on <device-id>", "Start a boost charge now", domain.CommandBoostOn),
		newDeviceCommandCmd(app, "off <device-id>", "Cancel a running boost charge", domain.CommandBoostOff),
	)

	cmd.AddCommand(
		newDeviceListCmd(app),
		newDeviceCommandCmd(app, "suspend <device-id>", "Suspend smart control of a device", domain.CommandSuspend),
		newDeviceCommandCmd(app, "resume <device-id>", "Resume smart control of a device", domain.CommandResume),
		boost,
		newDevicePreferencesCmd(app),
	)

	return cmd
}

func newDeviceListCmd(app *app) *cobra.Command {
	var flags deviceFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List devices with their control state and capabilities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := validateOutput(flags.output)
			if err != nil {
				return err
			}

			session, err := app.fetchedSession(cmd, flags.account)
			if err != nil {
				return err
			}
			states, err := session.DeviceStates()
			if err != nil {
				return err
			}

			if format != report.FormatTable {
				return report.Write(cmd.OutOrStdout(), format, report.FromDeviceStates(states))
			}
			if len(states) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no devices")
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tNAME\tSTATE\tSMART CONTROL\tBOOST")
			for _, state := range states {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					state.Device.ID,
					state.Device.Name,
					orDash(state.Device.Status.CurrentState),
					controlCell(state.SmartControl),
					controlCell(state.BoostCharge),
				)
			}

			return tw.Flush()
		},
	}
	flags.bind(cmd)

	return cmd
}

func newDeviceCommandCmd(app *app, use, short string, kind domain.CommandKind) *cobra.Command {
	var flags deviceFlags

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeviceCommand(cmd, app, flags, kind, domain.CommandParams{DeviceID: args[0]})
		},
	}
	flags.bind(cmd)

	return cmd
}

func newDevicePreferencesCmd(app *app) *cobra.Command {
	var flags deviceFlags
	var percentage int
	var targetTime string

	cmd := &cobra.Command{
		Use:   "preferences <device-id>",
		Short: "Set the weekly charge target (20-100% in 5% steps, ready by 04:00-17:00)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeviceCommand(cmd, app, flags, domain.CommandSetDevicePreferences, domain.CommandParams{
				DeviceID:         args[0],
				TargetPercentage: percentage,
				TargetTime:       targetTime,
			})
		},
	}
	flags.bind(cmd)
	cmd.Flags().IntVar(&percentage, "target-percentage", 0, "Charge target in percent")
	cmd.Flags().StringVar(&targetTime, "target-time", "", "Ready-by time, HH:MM")
	_ = cmd.MarkFlagRequired("target-percentage")
	_ = cmd.MarkFlagRequired("target-time")

	return cmd
}

// runDeviceCommand validates before any network call, fetches one snapshot
// for the availability check and issues the command.
func runDeviceCommand(cmd *cobra.Command, app *app, flags deviceFlags, kind domain.CommandKind, params domain.CommandParams) error {
	format, err := validateOutput(flags.output)
	if err != nil {
		return err
	}
	if _, err := domain.ValidateCommand(kind, params); err != nil {
		return err
	}

	session, err := app.fetchedSession(cmd, flags.account)
	if err != nil {
		return err
	}

	result, err := session.IssueCommand(cmd.Context(), kind, params)
	if err != nil {
		return err
	}

	if format != report.FormatTable {
		return report.Write(cmd.OutOrStdout(), format, report.FromCommandResult(result))
	}

	line := fmt.Sprintf("%s accepted for %s (command %s)", kind, result.DeviceID, result.ID)
	if result.Pending != nil {
		line += fmt.Sprintf(", expected within %s", domain.PendingActionTimeout)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), line)
	return err
}

// fetchedSession builds the session of one account and fetches its snapshot.
func (a *app) fetchedSession(cmd *cobra.Command, account string) (*application.Session, error) {
	number, err := a.resolveAccount(cmd, account)
	if err != nil {
		return nil, err
	}

	registry, err := a.newRegistry(cmd.Context(), number)
	if err != nil {
		return nil, err
	}
	session, err := registry.Session(number)
	if err != nil {
		return nil, err
	}

	err = statusadapter.Fetch(cmd.Context(), cmd.ErrOrStderr(), "Fetching account snapshot...", func(ctx context.Context) error {
		_, err := session.Refresh(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", number, err)
	}

	return session, nil
}

func (a *app) resolveAccount(cmd *cobra.Command, account string) (domain.AccountNumber, error) {
	if trimmed := strings.TrimSpace(account); trimmed != "" {
		return domain.AccountNumber(trimmed), nil
	}

	accounts, err := a.service.ListAccounts(cmd.Context())
	if err != nil {
		return "", err
	}
	switch len(accounts) {
	case 0:
		return "", fmt.Errorf("%w: run 'octoflex account add' first", application.ErrNoAccounts)
	case 1:
		return accounts[0].Number, nil
	default:
		return "", &domain.ValidationError{Field: "account", Message: "several accounts configured, pass --account"}
	}
}

func controlCell(view application.ControlView) string {
	if !view.Available {
		return "unavailable"
	}

	cell := "off"
	if view.On {
		cell = "on"
	}
	if view.Pending != nil {
		cell += " (pending)"
	}

	return cell
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}

	return value
}
