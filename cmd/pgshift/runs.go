package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pgshift/pgshift/pkg/migrate/state"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show the most recent migration run and its per-table outcomes",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := state.NewSqliteGormManager()
		last := mgr.GetLastRun()
		if last == nil {
			fmt.Println("no runs recorded yet")
			return nil
		}
		fmt.Printf("run %d : %s (%d tables)\n", last.RunID, last.Status, last.TotalTablesForThisRun)
		if last.ErrMsg != "" {
			fmt.Printf("  error: %s\n", last.ErrMsg)
		}
		for _, t := range mgr.GetTableRunLogs(strconv.Itoa(last.RunID)) {
			fmt.Printf("  %-30s %-8s rows_written=%d\n", t.DBName+"."+t.TableName, t.Status, t.RowWritten)
			if t.ErrMsg != "" {
				fmt.Printf("    └ %s\n", t.ErrMsg)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
}
