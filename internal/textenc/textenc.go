// Package textenc decodes byte payloads into UTF-8 text.
//
// Labels follow the WHATWG encoding standard ("utf-8", "shift_jis",
// "windows-1252", ...). An empty label or "auto" sniffs the encoding from a
// byte order mark or the leading bytes.
package textenc

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// AutoLabel asks Decode to sniff the encoding.
const AutoLabel = "auto"

// Sentinel errors for decoding.
var (
	ErrUnknownEncoding = errors.New("unknown character encoding")
	ErrDecode          = errors.New("failed to decode text")
)

// Decode converts raw to a UTF-8 string using the encoding named by label.
// It returns the canonical name of the encoding actually used.
func Decode(raw []byte, label string) (text string, name string, err error) {
	enc, name, err := lookup(raw, label)
	if err != nil {
		return "", "", err
	}

	if enc == encoding.Nop || name == "utf-8" {
		return string(stripUTF8BOM(raw)), "utf-8", nil
	}

	out, _, err := transform.Bytes(enc.NewDecoder(), raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
	}
	return string(out), name, nil
}

// lookup resolves label to an encoding, sniffing when label is empty or auto.
func lookup(raw []byte, label string) (encoding.Encoding, string, error) {
	label = strings.TrimSpace(strings.ToLower(label))

	if label == "" || label == AutoLabel {
		// Valid UTF-8 wins over the sniffer's windows-1252 default
		if utf8.Valid(stripUTF8BOM(raw)) {
			return encoding.Nop, "utf-8", nil
		}
		enc, name, _ := charset.DetermineEncoding(raw, "text/plain")
		return enc, name, nil
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownEncoding, label)
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		name = label
	}
	return enc, name, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func stripUTF8BOM(b []byte) []byte {
	return bytes.TrimPrefix(b, utf8BOM)
}
