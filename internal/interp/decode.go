package interp

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// DecodeOutput converts captured bytes from stream ("stdout" or "stderr") to
// text. A leading UTF-8 byte order mark is dropped.
func DecodeOutput(stream string, b []byte) (string, error) {
	if !utf8.Valid(b) {
		return "", &DecodeError{Stream: stream}
	}
	s, err := unicode.UTF8BOM.NewDecoder().Bytes(b)
	if err != nil {
		return "", &DecodeError{Stream: stream}
	}
	return string(s), nil
}
