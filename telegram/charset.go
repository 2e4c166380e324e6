package telegram

import (
	"fmt"

	"golang.org/x/text/encoding/charmap"
)

// The Term software runs on Windows and exchanges single byte text.
var wireCharset = charmap.Windows1252

// EncodeText converts s to its single byte wire representation.
func EncodeText(s string) ([]byte, error) {
	b, err := wireCharset.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnencodable, err)
	}

	return b, nil
}

// DecodeText converts a single byte wire payload to a UTF-8 string.
func DecodeText(b []byte) string {
	s, err := wireCharset.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}

	return string(s)
}
