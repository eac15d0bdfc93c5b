package mudsmoke

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"golang.org/x/text/encoding/charmap"
)

// Charset names accepted by WithCharset.
const (
	CharsetUTF8   = "utf-8"
	CharsetLatin1 = "latin1"
)

// decoder turns raw bytes received from the server into text without ever
// failing: malformed input is dropped or substituted.
type decoder func([]byte) string

// newDecoder returns the decoder for the named charset.
func newDecoder(charset string) (decoder, error) {
	switch strings.ToLower(charset) {
	case "", CharsetUTF8, "utf8":
		return decodeUTF8, nil
	case CharsetLatin1, "iso-8859-1", "iso8859-1":
		return decodeLatin1, nil
	default:
		return nil, fmt.Errorf("unsupported charset %q, use %s or %s", charset, CharsetUTF8, CharsetLatin1)
	}
}

// decodeUTF8 drops invalid UTF-8 sequences.
func decodeUTF8(b []byte) string {
	return strings.ToValidUTF8(string(b), "")
}

func decodeLatin1(b []byte) string {
	// ISO-8859-1 maps every byte to a rune, so decoding cannot fail.
	out, _ := charmap.ISO8859_1.NewDecoder().Bytes(b)
	return string(out)
}

// stripANSI removes terminal escape sequences such as colour codes.
func stripANSI(s string) string {
	return ansi.Strip(s)
}
