//go:build windows

package odbc

// defaultTextCodec is the codec statements use unless WithTextCodec is given.
// The Windows driver manager's wide interface is UTF-16.
func defaultTextCodec() TextCodec {
	return UTF16Codec()
}
