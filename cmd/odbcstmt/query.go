package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newQueryCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "query SQL [ARG...]",
		Short: "Run a query and print every result set",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.open()
			if err != nil {
				return err
			}
			defer db.Close()

			rows, err := db.QueryxContext(cmd.Context(), args[0], stringArgs(args[1:])...)
			if err != nil {
				return err
			}
			defer rows.Close()

			out := cmd.OutOrStdout()
			for set := 0; ; set++ {
				if set > 0 {
					fmt.Fprintln(out)
				}
				if err := printResultSet(out, rows.Columns, rows.Next, rows.MapScan); err != nil {
					return err
				}
				if !rows.NextResultSet() {
					break
				}
			}
			return rows.Err()
		},
	}
}

// printResultSet writes one result set as an aligned table.
func printResultSet(w io.Writer, columns func() ([]string, error), next func() bool, scan func(map[string]any) error) error {
	names, err := columns()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(names, "\t"))

	n := 0
	for next() {
		row := make(map[string]any, len(names))
		if err := scan(row); err != nil {
			return err
		}
		cells := make([]string, len(names))
		for i, name := range names {
			cells[i] = formatValue(row[name])
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
		n++
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "(%d rows)\n", n)
	return nil
}
