// Command odbcstmt runs statements against an ODBC data source through the
// odbcstmt driver. It doubles as a smoke test for a driver manager setup.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
