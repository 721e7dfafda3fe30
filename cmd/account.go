package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/bnema/octoflex/internal/application"
	"github.com/bnema/octoflex/internal/domain"
	"github.com/spf13/cobra"
)

func newAccountCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage Kraken accounts",
	}

	cmd.AddCommand(
		newAccountAddCmd(app),
		newAccountListCmd(app),
		newAccountRemoveCmd(app),
		newAccountDiscoverCmd(app),
	)

	return cmd
}

func newAccountAddCmd(app *app) *cobra.Command {
	var email string
	var name string
	var passwordStdin bool

	cmd := &cobra.Command{
		Use:   "add <account-number>",
		Short: "Add or update an account and store its password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd, passwordStdin)
			if err != nil {
				return err
			}

			number := domain.AccountNumber(strings.TrimSpace(args[0]))
			if err := app.service.AddAccount(cmd.Context(), application.AddAccountCommand{
				Number:   number,
				Name:     name,
				Email:    email,
				Password: password,
			}); err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "account %s saved\n", number)
			return err
		},
	}

	cmd.Flags().StringVar(&email, "email", os.Getenv(emailEnv), "Login email (default $OCTOFLEX_EMAIL)")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin instead of $OCTOFLEX_PASSWORD")

	return cmd
}

func newAccountListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			accounts, err := app.service.ListAccounts(cmd.Context())
			if err != nil {
				return err
			}
			if len(accounts) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no accounts configured")
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "NUMBER\tNAME\tEMAIL")
			for _, account := range accounts {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", account.Number, account.Name, account.Email)
			}

			return tw.Flush()
		},
	}
}

func newAccountRemoveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <account-number>",
		Aliases: []string{"rm"},
		Short:   "Remove an account and its stored password",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number := domain.AccountNumber(strings.TrimSpace(args[0]))
			if err := app.service.RemoveAccount(cmd.Context(), number); err != nil {
				return err
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "account %s removed\n", number)
			return err
		},
	}
}

func newAccountDiscoverCmd(app *app) *cobra.Command {
	var email string
	var passwordStdin bool
	var save bool

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "List the accounts a login can see",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readPassword(cmd, passwordStdin)
			if err != nil {
				return err
			}
			creds := domain.Credentials{Email: strings.TrimSpace(email), Password: password}
			if creds.Empty() {
				return &domain.ValidationError{Field: "email", Message: "email is required"}
			}

			l := app.newLogin(application.NewStaticCredentials(creds))
			defer l.tokens.Close()

			discovered, err := l.gateway.DiscoverAccounts(cmd.Context())
			if err != nil {
				return fmt.Errorf("discover accounts: %w", err)
			}
			if len(discovered) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no accounts found for this login")
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "NUMBER\tLEDGERS")
			for _, account := range discovered {
				_, _ = fmt.Fprintf(tw, "%s\t%s\n", account.Number, ledgerSummary(account.Ledgers))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if !save {
				return nil
			}
			for _, account := range discovered {
				if err := app.service.AddAccount(cmd.Context(), application.AddAccountCommand{
					Number:   account.Number,
					Email:    creds.Email,
					Password: creds.Password,
				}); err != nil {
					return fmt.Errorf("save %s: %w", account.Number, err)
				}
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d account(s) saved\n", len(discovered))
			return err
		},
	}

	cmd.Flags().StringVar(&email, "email", os.Getenv(emailEnv), "Login email (default $OCTOFLEX_EMAIL)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin instead of $OCTOFLEX_PASSWORD")
	cmd.Flags().BoolVar(&save, "save", false, "Add every discovered account with this login")

	return cmd
}

func ledgerSummary(ledgers []domain.Ledger) string {
	if len(ledgers) == 0 {
		return "-"
	}

	parts := make([]string, 0, len(ledgers))
	for _, ledger := range ledgers {
		parts = append(parts, fmt.Sprintf("%s %.2f EUR", ledger.Type.Label(), ledger.BalanceEUR()))
	}

	return strings.Join(parts, ", ")
}

// readPassword takes the first stdin line when fromStdin is set and
// $OCTOFLEX_PASSWORD otherwise.
func readPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	if !fromStdin {
		if password := os.Getenv(passwordEnv); password != "" {
			return password, nil
		}
		return "", &domain.ValidationError{Field: "password", Message: "use --password-stdin or set " + passwordEnv}
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password from stdin: %w", err)
	}

	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", &domain.ValidationError{Field: "password", Message: "empty password on stdin"}
	}

	return password, nil
}
