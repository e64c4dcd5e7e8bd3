package core

// encoding.go decodes raw file bytes into text.
//
// Spreadsheet tools export CSV in whatever code page the machine uses, so the
// resolver tries a prioritized list of encodings and keeps the first one that
// decodes cleanly. UTF-8 is always tried first; the single-byte fallbacks
// cover files saved by older Windows and European locales.

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// DecodePrefixLen is how many leading bytes a DecodeError reports.
const DecodePrefixLen = 16

const byteOrderMark = '\ufeff'

// Encoding is a named decoding strategy.
type Encoding struct {
	Name   string
	Decode func([]byte) (string, error)
}

var (
	// UTF8 accepts only well-formed UTF-8.
	UTF8 = Encoding{Name: "UTF-8", Decode: decodeUTF8}

	// Windows1252 is the Western European Windows code page.
	Windows1252 = charmapEncoding("windows-1252", charmap.Windows1252)

	// ISO88591 is Latin-1.
	ISO88591 = charmapEncoding("ISO-8859-1", charmap.ISO8859_1)

	// ASCII accepts only 7-bit bytes.
	ASCII = Encoding{Name: "US-ASCII", Decode: decodeASCII}
)

var (
	errInvalidUTF8   = errors.New("invalid UTF-8 sequence")
	errNonASCII      = errors.New("byte outside the ASCII range")
	errUndefinedByte = errors.New("byte undefined in code page")
)

// Decoded is the text produced by a Resolver and the encoding that produced it.
type Decoded struct {
	Text     string
	Encoding string
}

// Resolver tries encodings in order until one succeeds.
type Resolver struct {
	encodings []Encoding
}

// NewResolver creates a resolver over the given candidates, tried in order.
func NewResolver(encodings ...Encoding) *Resolver {
	return &Resolver{encodings: encodings}
}

// DefaultResolver tries UTF-8, Windows-1252, ISO-8859-1 and ASCII.
func DefaultResolver() *Resolver {
	return NewResolver(UTF8, Windows1252, ISO88591, ASCII)
}

// Decode returns the text of data in the first encoding that accepts it, with
// a leading byte order mark removed. It fails with *DecodeError when no
// candidate accepts the bytes.
func (r *Resolver) Decode(data []byte) (Decoded, error) {
	var (
		attempted []string
		lastErr   error
	)

	for _, enc := range r.encodings {
		attempted = append(attempted, enc.Name)
		text, err := enc.Decode(data)
		if err != nil {
			lastErr = err
			continue
		}
		return Decoded{
			Text:     strings.TrimPrefix(text, string(byteOrderMark)),
			Encoding: enc.Name,
		}, nil
	}

	prefix := data
	if len(prefix) > DecodePrefixLen {
		prefix = prefix[:DecodePrefixLen]
	}
	return Decoded{}, &DecodeError{
		Length:    len(data),
		Prefix:    fmt.Sprintf("% x", prefix),
		Attempted: attempted,
		Err:       lastErr,
	}
}

func decodeUTF8(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", errInvalidUTF8
	}
	return string(data), nil
}

func decodeASCII(data []byte) (string, error) {
	for i, b := range data {
		if b >= utf8.RuneSelf {
			return "", fmt.Errorf("offset %d: %w", i, errNonASCII)
		}
	}
	return string(data), nil
}

// charmapEncoding wraps a single-byte code page. Bytes the code page leaves
// undefined decode to U+FFFD, which counts as a failure.
func charmapEncoding(name string, cm *charmap.Charmap) Encoding {
	return Encoding{
		Name: name,
		Decode: func(data []byte) (string, error) {
			out, err := decodeWith(cm.NewDecoder(), data)
			if err != nil {
				return "", err
			}
			if strings.ContainsRune(out, utf8.RuneError) {
				return "", errUndefinedByte
			}
			return out, nil
		},
	}
}

func decodeWith(dec *encoding.Decoder, data []byte) (string, error) {
	out, err := dec.Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
