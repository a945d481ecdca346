package cmd

import (
	"github.com/spf13/cobra"

	"namiokai/config"
	"namiokai/logging"
)

var RootCmd = &cobra.Command{
	Use:   "namiokai",
	Short: "shared expenses for flatmates",
	Long:  `namiokai records purchases, car trips and flat bills shared inside a space and shows who owes whom for each monthly period`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// config.Load reads .env first, so LOG_LEVEL may come from there
		cfg, err := config.Load()
		if err != nil {
			logging.Setup()
			return
		}
		logging.SetupWithLevel(logging.ParseLevel(cfg.LogLevel))
	},
	SilenceUsage: true,
}

func init() {
	RootCmd.AddCommand(serverCommand())
	RootCmd.AddCommand(migrateCommand())
	RootCmd.AddCommand(debtsCommand())
	RootCmd.AddCommand(periodsCommand())
}
