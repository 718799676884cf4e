package textutil

import (
	"path/filepath"
	"strings"
	"unicode"
)

// maxSegmentBytes keeps generated names well under common filesystem limits.
const maxSegmentBytes = 128

var unsafeNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// PathSegment maps an identifier onto a single directory or file name
// component. Case is preserved; anything other than ASCII letters, digits,
// '.', '-' and '_' becomes '_'. Leading dots are dropped so the result is
// never hidden or a parent reference. fallback is returned when nothing usable
// remains.
func PathSegment(value, fallback string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), "._")
	out = strings.TrimRight(out, "_")
	if len(out) > maxSegmentBytes {
		out = out[:maxSegmentBytes]
	}
	if out == "" {
		return fallback
	}
	return out
}

// FileName reduces a remote-supplied artifact name to a base file name.
// Directory parts are discarded, unsafe characters are replaced or removed
// and control characters are dropped. Long names are shortened while keeping
// the extension. An empty result means no usable name was supplied.
func FileName(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	name = unsafeNameReplacer.Replace(name)
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimLeft(strings.TrimSpace(name), ".")
	if len(name) <= maxSegmentBytes {
		return name
	}
	ext := filepath.Ext(name)
	if len(ext) >= maxSegmentBytes/2 {
		ext = ""
	}
	stem := strings.ToValidUTF8(name[:maxSegmentBytes-len(ext)], "")
	return stem + ext
}
