package rows

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding is a source text encoding.
type Encoding struct {
	Name string
	enc  encoding.Encoding
	// Wide encodings do not keep '\n' as a single byte, so the whole stream
	// must be transcoded before indexing.
	Wide bool
}

// Encodings lists the accepted encoding names.
var Encodings = []string{"utf-8", "latin1", "windows-1252", "utf-16le", "utf-16be"}

func LookupEncoding(name string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return Encoding{Name: "utf-8"}, nil
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return Encoding{Name: "latin1", enc: charmap.ISO8859_1}, nil
	case "windows-1252", "cp1252":
		return Encoding{Name: "windows-1252", enc: charmap.Windows1252}, nil
	case "utf-16le", "utf16le":
		return Encoding{Name: "utf-16le", enc: unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), Wide: true}, nil
	case "utf-16be", "utf16be":
		return Encoding{Name: "utf-16be", enc: unicode.UTF16(unicode.BigEndian, unicode.UseBOM), Wide: true}, nil
	}
	return Encoding{}, fmt.Errorf("unknown encoding %q (want one of %s)", name, strings.Join(Encodings, ", "))
}

// Transcoder returns the stream decoder for wide encodings and nil otherwise.
func (e Encoding) Transcoder() transform.Transformer {
	if !e.Wide || e.enc == nil {
		return nil
	}
	return e.enc.NewDecoder()
}

// decode converts one row to UTF-8. ok is false when the bytes are not valid
// in the encoding; the returned text is then a best-effort rendition.
func (e Encoding) decode(raw []byte) (text []byte, ok bool) {
	if e.enc == nil || e.Wide {
		if utf8.Valid(raw) {
			return raw, true
		}
		return []byte(strings.ToValidUTF8(string(raw), "�")), false
	}
	out, err := e.enc.NewDecoder().Bytes(raw)
	if err != nil {
		return []byte(strings.ToValidUTF8(string(raw), "�")), false
	}
	return out, true
}
