package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrUnknownEncoding is returned for an encoding name or code page that
// cannot be resolved.
var ErrUnknownEncoding = errors.New("unknown encoding")

// codePages maps Windows code page identifiers to decoders.
var codePages = map[int]encoding.Encoding{
	437:   charmap.CodePage437,
	850:   charmap.CodePage850,
	852:   charmap.CodePage852,
	866:   charmap.CodePage866,
	1200:  unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
	1201:  unicode.UTF16(unicode.BigEndian, unicode.UseBOM),
	1250:  charmap.Windows1250,
	1251:  charmap.Windows1251,
	1252:  charmap.Windows1252,
	1253:  charmap.Windows1253,
	1254:  charmap.Windows1254,
	1255:  charmap.Windows1255,
	1256:  charmap.Windows1256,
	1257:  charmap.Windows1257,
	1258:  charmap.Windows1258,
	10000: charmap.Macintosh,
	20866: charmap.KOI8R,
	28591: charmap.ISO8859_1,
	28592: charmap.ISO8859_2,
	28595: charmap.ISO8859_5,
	28605: charmap.ISO8859_15,
	65001: unicode.UTF8,
}

// ResolveEncoding resolves an "Encoding Type" setting, which is either a
// numeric code page ("1252") or an encoding name ("windows-1252",
// "ISO-8859-1"). An empty value resolves to UTF-8.
func ResolveEncoding(setting string) (encoding.Encoding, error) {
	setting = strings.TrimSpace(setting)
	if setting == "" {
		return unicode.UTF8, nil
	}

	if cp, err := strconv.Atoi(setting); err == nil {
		if enc, ok := codePages[cp]; ok {
			return enc, nil
		}
		return nil, fmt.Errorf("code page %d: %w", cp, ErrUnknownEncoding)
	}

	enc, err := ianaindex.IANA.Encoding(setting)
	if err != nil || enc == nil {
		return nil, fmt.Errorf("encoding %q: %w", setting, ErrUnknownEncoding)
	}
	return enc, nil
}

// encodingFor resolves the encoding of s. Unknown encodings fall back to
// UTF-8 unless strict is set.
func encodingFor(s Settings, strict bool) (encoding.Encoding, error) {
	strict = boolSetting(s, SettingStrictEncoding, strict)
	enc, err := ResolveEncoding(s.Get(SettingEncodingType))
	if err != nil {
		if strict {
			return nil, err
		}
		return unicode.UTF8, nil
	}
	return enc, nil
}

// decodeReader returns a reader producing UTF-8 text from r.
//
// UTF-8 input has its BOM removed and invalid sequences replaced; other
// encodings are transcoded first.
func decodeReader(r io.Reader, enc encoding.Encoding) io.Reader {
	if enc == nil || enc == unicode.UTF8 {
		return NewStreamingUTF8Sanitizer(NewBOMSkippingReader(r))
	}
	return NewBOMSkippingReader(transform.NewReader(r, enc.NewDecoder()))
}

// decode converts raw bytes to a UTF-8 string.
func decode(data []byte, enc encoding.Encoding) (string, error) {
	out, err := io.ReadAll(decodeReader(bytes.NewReader(data), enc))
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	return string(out), nil
}
