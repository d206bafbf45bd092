package textutil

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// CharsetReader decodes input in the named IANA charset into UTF-8. It is
// shaped to plug into mime.WordDecoder and the IMAP client options.
func CharsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := lookup(charset)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return input, nil
	}
	return enc.NewDecoder().Reader(input), nil
}

// Decode converts raw bytes in the named IANA charset to a UTF-8 string.
func Decode(charset string, raw []byte) (string, error) {
	enc, err := lookup(charset)
	if err != nil {
		return "", err
	}
	if enc == nil {
		return string(raw), nil
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", charset, err)
	}
	return string(decoded), nil
}

func lookup(charset string) (encoding.Encoding, error) {
	name := strings.TrimSpace(charset)
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8", "us-ascii", "ascii":
		return nil, nil
	}
	enc, err := ianaindex.MIME.Encoding(name)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", charset)
	}
	return enc, nil
}
