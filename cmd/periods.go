package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"namiokai/config"
	"namiokai/period"
)

func periodsCommand() *cobra.Command {
	var previous int
	cmd := &cobra.Command{
		Use:   "periods",
		Short: "print the current period and the ones before it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("previous") {
				previous = cfg.PeriodPreviousCount
			}
			if previous < 0 {
				return fmt.Errorf("--previous must not be negative")
			}
			sel := period.NewSelection(cfg.AnchorDay(), time.Now)
			periods := sel.Periods(previous)
			// newest first, labelled by offset
			for i := len(periods) - 1; i >= 0; i-- {
				offset := i - (len(periods) - 1)
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%3d  %s\n", offset, periods[i]); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&previous, "previous", "p", period.DefaultPreviousCount, "number of previous periods (default from PERIOD_PREVIOUS_COUNT)")
	return cmd
}
