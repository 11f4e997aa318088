package gitmirror

import "strings"

const urlDirectoryReplacementRuneConstant = '_'

// URLDirectoryName maps a URL to a directory name: digits, ASCII letters, '%' and '_' are kept, everything else becomes '_'.
func URLDirectoryName(url string) string {
	var builder strings.Builder
	builder.Grow(len(url))
	for _, character := range url {
		switch {
		case character >= '0' && character <= '9',
			character >= 'a' && character <= 'z',
			character >= 'A' && character <= 'Z',
			character == '%',
			character == '_':
			builder.WriteRune(character)
		default:
			builder.WriteRune(urlDirectoryReplacementRuneConstant)
		}
	}
	return builder.String()
}
