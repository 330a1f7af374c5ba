package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newExecCommand(a *app) *cobra.Command {
	var (
		lobFile string
		outputs int
	)
	cmd := &cobra.Command{
		Use:   "exec SQL [ARG...]",
		Short: "Run a statement and print the affected row count",
		Long: `exec runs a statement with positional text arguments.

--lob-file appends the file as one more argument, streamed to the driver
in chunks. --outputs appends that many output parameters and prints what
the statement returned through them.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.open()
			if err != nil {
				return err
			}
			defer db.Close()

			stmtArgs := stringArgs(args[1:])
			if lobFile != "" {
				f, err := os.Open(lobFile)
				if err != nil {
					return err
				}
				defer f.Close()
				stmtArgs = append(stmtArgs, f)
			}
			dests := make([]any, outputs)
			for i := range dests {
				stmtArgs = append(stmtArgs, sql.Out{Dest: &dests[i]})
			}

			res, err := db.ExecContext(cmd.Context(), args[0], stmtArgs...)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if n < 0 {
				fmt.Fprintln(out, "rows affected: unknown")
			} else {
				fmt.Fprintf(out, "rows affected: %d\n", n)
			}
			for i, v := range dests {
				fmt.Fprintf(out, "output %d: %s\n", i+1, formatValue(v))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&lobFile, "lob-file", "", "file streamed as an extra trailing argument")
	cmd.Flags().IntVar(&outputs, "outputs", 0, "number of trailing output parameters")
	return cmd
}
