//go:build !windows

package odbc

// defaultTextCodec is the codec statements use unless WithTextCodec is given.
func defaultTextCodec() TextCodec {
	return PassthroughCodec()
}
