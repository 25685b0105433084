package message

import (
	"encoding/base64"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
)

// encodedWordRe matches a single RFC 2047 encoded word: =?charset?B|Q?text?=
var encodedWordRe = regexp.MustCompile(`=\?([^?\s]+)\?([bBqQ])\?([^?\s]*)\?=`)

// encodedRun is a sequence of adjacent encoded words that share a charset.
type encodedRun struct {
	charset string
	data    []byte
}

// DecodeHeader decodes a header value that may contain MIME encoded words.
// Adjacent encoded words with the same charset are joined before charset conversion
// so that multibyte characters split across words survive. The decoded segments are
// joined with a single space. Undecodable bytes become U+FFFD; it never fails.
func DecodeHeader(value string) string {
	if !strings.Contains(value, "=?") {
		return value
	}

	matches := encodedWordRe.FindAllStringSubmatchIndex(value, -1)
	if len(matches) == 0 {
		return value
	}

	var segments []string
	var run *encodedRun

	flush := func() {
		if run != nil {
			segments = append(segments, decodeCharset(run.charset, run.data))
			run = nil
		}
	}

	last := 0
	for _, m := range matches {
		if literal := strings.TrimSpace(value[last:m[0]]); literal != "" {
			flush()
			segments = append(segments, literal)
		}

		charset := value[m[2]:m[3]]
		// RFC 2231 language suffix: charset*lang
		if i := strings.IndexByte(charset, '*'); i >= 0 {
			charset = charset[:i]
		}
		data := decodeWordText(value[m[4]:m[5]], value[m[6]:m[7]])

		if run != nil && strings.EqualFold(run.charset, charset) {
			run.data = append(run.data, data...)
		} else {
			flush()
			run = &encodedRun{charset: charset, data: data}
		}
		last = m[1]
	}
	flush()

	if literal := strings.TrimSpace(value[last:]); literal != "" {
		segments = append(segments, literal)
	}

	return strings.Join(segments, " ")
}

// decodeWordText returns the raw bytes carried by the text of an encoded word.
func decodeWordText(encoding, text string) []byte {
	if strings.EqualFold(encoding, "B") {
		if b, err := base64.StdEncoding.DecodeString(text); err == nil {
			return b
		}
		if b, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(text, "=")); err == nil {
			return b
		}
		return []byte(text)
	}
	return decodeQ(text)
}

// decodeQ decodes the "Q" encoding. Malformed escapes are kept literally.
func decodeQ(text string) []byte {
	out := make([]byte, 0, len(text))
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '_':
			out = append(out, ' ')
		case c == '=' && i+2 < len(text):
			hi, okHi := fromHex(text[i+1])
			lo, okLo := fromHex(text[i+2])
			if okHi && okLo {
				out = append(out, hi<<4|lo)
				i += 2
			} else {
				out = append(out, c)
			}
		default:
			out = append(out, c)
		}
	}
	return out
}

func fromHex(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}

// decodeCharset converts data from the named charset to UTF-8. Unknown charsets and
// conversion failures fall back to reading the bytes as UTF-8 with lossy replacement.
func decodeCharset(charset string, data []byte) string {
	name := strings.ToLower(strings.TrimSpace(charset))
	if name == "" || name == "utf-8" || name == "utf8" || name == "us-ascii" {
		return lossyUTF8(data)
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return lossyUTF8(data)
	}

	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return lossyUTF8(data)
	}
	return lossyUTF8(decoded)
}

// lossyUTF8 replaces invalid UTF-8 sequences with U+FFFD.
func lossyUTF8(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "\uFFFD")
}
