//go:build !windows

package odbc

import (
	"github.com/ebitengine/purego"
)

// loadODBCLibrary opens the driver manager with every symbol resolved up front.
func loadODBCLibrary(libPath string) (uintptr, error) {
	return purego.Dlopen(libPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}
