package main

import (
	"github.com/spf13/cobra"
)

func newPageCmd(a *app) *cobra.Command {
	var skip, limit int

	cmd := &cobra.Command{
		Use:   "page",
		Short: "Print a page of the current dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				limit = a.cfg.PageSize
			}
			page, err := a.client.FetchPage(cmd.Context(), skip, limit)
			if err != nil {
				return err
			}
			return a.printPage(cmd.OutOrStdout(), page, skip)
		},
	}

	cmd.Flags().IntVar(&skip, "skip", 0, "rows to skip")
	cmd.Flags().IntVar(&limit, "limit", 0, "rows to print (default: page size)")
	return cmd
}
