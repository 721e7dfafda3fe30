package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "octoflex",
		Short:         "Octopus Energy Germany smart charging from the terminal",
		Long:          "octoflex polls your Octopus Energy Germany (Kraken) accounts, shows balances, tariffs and intelligent dispatches, and controls smart charging devices: suspend, resume, boost and charge targets.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newAccountCmd(app),
		newStatusCmd(app),
		newWatchCmd(app),
		newServeCmd(app),
		newDeviceCmd(app),
	)

	return rootCmd
}
