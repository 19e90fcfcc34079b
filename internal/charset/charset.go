// Package charset resolves the byte encoding of fetched HTML payloads
// and converts them to UTF-8 strings.
//
// Resolution prefers an in-document <meta charset=...> declaration and
// falls back to statistical detection (github.com/saintfish/chardet),
// mirroring how browsers treat pages served without an explicit
// charset.
package charset

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	xcharset "golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/htmlindex"
)

var metaCharset = regexp.MustCompile(`(?i)<meta[^>]+charset\s*=\s*["']?\s*([^"'\s;/>]+)`)

// Detect returns the charset name declared in a <meta> tag, or the
// best statistical guess when no declaration is present. It returns
// the empty string when neither yields a usable name and never fails.
func Detect(payload []byte) string {
	if m := metaCharset.FindSubmatch(payload); m != nil {
		name := string(m[1])
		if isASCII(name) {
			return name
		}
		return ""
	}
	best, err := chardet.NewTextDetector().DetectBest(payload)
	if err != nil || best == nil {
		return ""
	}
	return best.Charset
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// DecodeStrict decodes data as the named charset and reports failure
// when the name is unknown or the bytes are not valid in it.
func DecodeStrict(data []byte, name string) (string, bool) {
	enc, err := htmlindex.Get(strings.TrimSpace(name))
	if err != nil || enc == nil {
		return "", false
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", false
	}
	s := string(out)
	// x/text decoders substitute U+FFFD instead of failing; treat a
	// substitution that was not present in the source as a failure.
	if strings.ContainsRune(s, utf8.RuneError) && !bytes.Contains(data, []byte("�")) {
		return "", false
	}
	return s, true
}

// DecodeLenient decodes data as the named charset, substituting
// replacement characters for undecodable sequences. It fails only when
// the name does not resolve to an encoding.
func DecodeLenient(data []byte, name string) (string, bool) {
	r, err := xcharset.NewReaderLabel(strings.TrimSpace(name), bytes.NewReader(data))
	if err != nil {
		return "", false
	}
	var sb strings.Builder
	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		sb.Write(buf[:n])
		if err != nil {
			break
		}
	}
	return sb.String(), true
}

// Encode converts s from UTF-8 into the named charset. It reports
// failure when the name is unknown or s cannot be represented in it.
func Encode(s, name string) ([]byte, bool) {
	enc, err := htmlindex.Get(strings.TrimSpace(name))
	if err != nil || enc == nil {
		return nil, false
	}
	out, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, false
	}
	return out, true
}

// Resolvable reports whether data can be decoded at all: either the
// hinted charset decodes it strictly, or detection yields a known
// encoding.
func Resolvable(data []byte, hint string) bool {
	if hint != "" {
		if _, ok := DecodeStrict(data, hint); ok {
			return true
		}
	}
	name := Detect(data)
	if name == "" {
		return false
	}
	_, err := htmlindex.Get(strings.TrimSpace(name))
	return err == nil
}
