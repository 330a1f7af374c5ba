package odbc

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Conversion reports what a TextCodec did with its input.
type Conversion int

const (
	// ConversionNotRequired means the input is already in the target form
	// and the caller should use it as is.
	ConversionNotRequired Conversion = iota
	// ConversionOK means the returned bytes hold the converted text.
	ConversionOK
	// ConversionFailed means the input could not be converted. Callers fall
	// back to the raw bytes.
	ConversionFailed
)

func (c Conversion) String() string {
	switch c {
	case ConversionNotRequired:
		return "not-required"
	case ConversionOK:
		return "ok"
	default:
		return "failed"
	}
}

// TextCodec converts between the application's UTF-8 text and the driver's
// wide representation. Both methods write into dst, growing it if needed,
// and return the slice holding the result. dst may be reused by the next
// call so the result must be consumed or copied first.
type TextCodec interface {
	ToWide(dst, src []byte) ([]byte, Conversion)
	FromWide(dst, src []byte) ([]byte, Conversion)
}

var utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

type utf16Codec struct{}

// UTF16Codec returns a codec translating UTF-8 to and from UTF-16LE.
func UTF16Codec() TextCodec { return utf16Codec{} }

func (utf16Codec) ToWide(dst, src []byte) ([]byte, Conversion) {
	if len(src) == 0 {
		return dst[:0], ConversionNotRequired
	}
	// The encoder substitutes U+FFFD for bad input; reject it instead.
	if !utf8.Valid(src) {
		return dst[:0], ConversionFailed
	}
	out, err := transcode(utf16LE.NewEncoder(), dst, src, 2*len(src))
	if err != nil {
		return dst[:0], ConversionFailed
	}
	return out, ConversionOK
}

func (utf16Codec) FromWide(dst, src []byte) ([]byte, Conversion) {
	if len(src) == 0 {
		return dst[:0], ConversionNotRequired
	}
	if len(src)%2 != 0 {
		return dst[:0], ConversionFailed
	}
	out, err := transcode(utf16LE.NewDecoder(), dst, src, len(src)/2*3)
	if err != nil {
		return dst[:0], ConversionFailed
	}
	return out, ConversionOK
}

type passthroughCodec struct{}

// PassthroughCodec returns a codec that never converts. Drivers that speak
// UTF-8 on their narrow interface need nothing more.
func PassthroughCodec() TextCodec { return passthroughCodec{} }

func (passthroughCodec) ToWide(dst, _ []byte) ([]byte, Conversion) {
	return dst[:0], ConversionNotRequired
}

func (passthroughCodec) FromWide(dst, _ []byte) ([]byte, Conversion) {
	return dst[:0], ConversionNotRequired
}

// transcode runs t over all of src, writing into dst. dst is grown to at
// least estimate bytes up front and doubled whenever the transformer runs
// out of room.
func transcode(t transform.Transformer, dst, src []byte, estimate int) ([]byte, error) {
	if cap(dst) < estimate {
		dst = make([]byte, estimate)
	}
	dst = dst[:cap(dst)]

	var nDst int
	for {
		n, nSrc, err := t.Transform(dst[nDst:], src, true)
		nDst += n
		src = src[nSrc:]
		if errors.Is(err, transform.ErrShortDst) {
			grown := make([]byte, 2*len(dst)+utf8.UTFMax)
			copy(grown, dst[:nDst])
			dst = grown
			continue
		}
		if err != nil {
			return nil, err
		}
		return dst[:nDst], nil
	}
}
