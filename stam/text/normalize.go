package text

import "golang.org/x/text/unicode/norm"

// NormalizeNFC returns s in Unicode normalization form C.
func NormalizeNFC(s string) string {
	return norm.NFC.String(s)
}

// IsNFC reports whether s is already in normalization form C.
func IsNFC(s string) bool {
	return norm.NFC.IsNormalString(s)
}
