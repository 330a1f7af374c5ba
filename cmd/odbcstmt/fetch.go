package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	odbc "github.com/slingdata-io/odbcstmt"
)

func newFetchCommand(a *app) *cobra.Command {
	var (
		orientation string
		offset      int64
		cursorName  string
	)
	cmd := &cobra.Command{
		Use:   "fetch SQL [ARG...]",
		Short: "Position a scrollable cursor and print the row it lands on",
		Long: `fetch executes a query and moves the cursor once with the given
orientation: next, prior, first, last, absolute or relative. Scrolling in
any direction other than next needs a driver with scrollable cursors.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := odbc.ParseOrientation(strings.ToLower(orientation))
			if err != nil {
				return err
			}

			db, err := a.open()
			if err != nil {
				return err
			}
			defer db.Close()

			conn, err := db.Conn(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			return conn.Raw(func(driverConn any) error {
				c, ok := driverConn.(*odbc.Conn)
				if !ok {
					return errors.New("unexpected driver connection type")
				}
				return fetchOne(cmd, c, args[0], args[1:], o, offset, cursorName)
			})
		},
	}
	cmd.Flags().StringVar(&orientation, "orientation", "next", "fetch orientation")
	cmd.Flags().Int64Var(&offset, "offset", 0, "row offset for absolute and relative fetches")
	cmd.Flags().StringVar(&cursorName, "cursor-name", "", "name to give the statement's cursor")
	return cmd
}

func fetchOne(cmd *cobra.Command, c *odbc.Conn, query string, args []string, o odbc.Orientation, offset int64, cursorName string) error {
	st, err := c.PrepareStatement(query)
	if err != nil {
		return err
	}
	defer st.Close()

	if cursorName != "" {
		if err := st.SetCursorName(cursorName); err != nil {
			return err
		}
	}

	params := make([]*odbc.Param, len(args))
	for i, arg := range args {
		p := &odbc.Param{Position: i + 1, Type: odbc.ParamStr, Value: arg}
		if err := st.ParamEvent(odbc.PhaseAlloc, p); err != nil {
			return err
		}
		if err := st.ParamEvent(odbc.PhaseExecPre, p); err != nil {
			return err
		}
		params[i] = p
	}
	defer func() {
		for _, p := range params {
			st.ParamEvent(odbc.PhaseFree, p)
		}
	}()

	if _, err := st.Execute(); err != nil {
		return err
	}
	metas, err := st.DescribeColumns()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	ok, err := st.Fetch(o, offset)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(out, "no row at that position")
		return nil
	}
	if name, err := st.CursorName(); err == nil {
		fmt.Fprintf(out, "cursor %s\n", name)
	}

	for i, m := range metas {
		v, err := st.ColumnValue(i)
		if err != nil {
			return err
		}
		var shown any
		if !v.IsNull() {
			shown = string(v.Data)
			if m.SQLType == odbc.SQL_BINARY || m.SQLType == odbc.SQL_VARBINARY || m.SQLType == odbc.SQL_LONGVARBINARY {
				shown = v.Data
			}
		}
		fmt.Fprintf(out, "%s (%s): %s\n", m.Name, m.TypeName, formatValue(shown))
	}
	return nil
}
