package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/dataview/internal/schema"
)

func newSetTypeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-type COLUMN TYPE [COLUMN TYPE]...",
		Short: "Change the display type of one or more columns",
		Long: `set-type asks the server to convert columns of the current dataset.
TYPE is one of Text, Float, Integer, Date, TimeDelta, Boolean, Category or
Complex. Either every column converts or none does.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || len(args)%2 != 0 {
				return fmt.Errorf("expected COLUMN TYPE pairs, got %d arguments", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			types := make(map[string]schema.DisplayType, len(args)/2)
			for i := 0; i < len(args); i += 2 {
				t, err := schema.ParseDisplayType(args[i+1])
				if err != nil {
					return err
				}
				types[args[i]] = t
			}

			if err := a.client.PersistTypeOverride(cmd.Context(), types); err != nil {
				return err
			}
			a.logger.Debug("column types updated", "columns", len(types))

			page, err := a.client.FetchPage(cmd.Context(), 0, a.cfg.PageSize)
			if err != nil {
				return err
			}
			return a.printPage(cmd.OutOrStdout(), page, 0)
		},
	}
}
