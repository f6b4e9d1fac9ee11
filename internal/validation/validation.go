package validation

import (
	"errors"
	"strings"
	"unicode"
)

// ErrAssetNameEmpty is returned when nothing remains after stripping directories.
var ErrAssetNameEmpty = errors.New("asset name is required")

// ErrAssetNameTooLong is returned when the base name exceeds the maximum length.
var ErrAssetNameTooLong = errors.New("asset name too long")

// ErrAssetNameInvalidChars is returned for hidden files or disallowed characters.
var ErrAssetNameInvalidChars = errors.New("asset name contains invalid characters")

// AssetName reduces a requested static file name to its final path element so it
// cannot escape the asset directory, then restricts it to letters, digits, dot,
// hyphen and underscore. maxLen is in runes; 0 disables the check.
func AssetName(input string, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	if i := strings.LastIndexAny(s, `/\`); i >= 0 {
		s = s[i+1:]
	}
	if s == "" || s == "." || s == ".." {
		return "", ErrAssetNameEmpty
	}
	if maxLen > 0 && len([]rune(s)) > maxLen {
		return "", ErrAssetNameTooLong
	}
	if strings.HasPrefix(s, ".") {
		return "", ErrAssetNameInvalidChars
	}
	for _, c := range s {
		if !isAllowedAssetRune(c) {
			return "", ErrAssetNameInvalidChars
		}
	}
	return s, nil
}

func isAllowedAssetRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '.', '-', '_':
		return true
	}
	return false
}
