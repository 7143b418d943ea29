// Package storage persists rendered receipt PDFs.
package storage

import (
	"path"
	"strings"
	"time"
	"unicode"
)

// ObjectKey builds a filesystem- and bucket-safe key for a receipt. The
// display filename is kept verbatim elsewhere; only the key is sanitized.
func ObjectKey(recordID, studentName string, at time.Time) string {
	return path.Join(at.UTC().Format("2006/01/02"), recordID+"-"+slug(studentName)+".pdf")
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.TrimRight(b.String(), "-")
	if out == "" {
		return "receipt"
	}
	if len(out) > 60 {
		out = strings.TrimRight(out[:60], "-")
	}
	return out
}
