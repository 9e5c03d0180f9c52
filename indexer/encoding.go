package indexer

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// utf8BOM is the three-byte UTF-8 byte-order-mark prefix some editors and
// Windows tooling still emit.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decodeContent renders raw file bytes as a UTF-8 string, trying UTF-8,
// then UTF-8 with a leading BOM stripped, then Latin-1, then CP1252, in
// that order. It always succeeds: Latin-1 and CP1252 are total functions
// over any byte sequence, so the chain never reaches a point where no
// candidate decodes.
func decodeContent(raw []byte) (string, error) {
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	if bytes.HasPrefix(raw, utf8BOM) {
		rest := raw[len(utf8BOM):]
		if utf8.Valid(rest) {
			return string(rest), nil
		}
	}
	if s, err := decodeCharmap(charmap.ISO8859_1, raw); err == nil {
		return s, nil
	}
	s, err := decodeCharmap(charmap.Windows1252, raw)
	if err != nil {
		return "", fmt.Errorf("indexer: decode content: %w", err)
	}
	return s, nil
}

func decodeCharmap(cm *charmap.Charmap, raw []byte) (string, error) {
	out, err := cm.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
