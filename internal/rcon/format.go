package rcon

import "strings"

const colorMarker = "§"

var colorCodes = func() *strings.Replacer {
	pairs := make([]string, 0, 32)
	for _, code := range "0123456789abcdef" {
		pairs = append(pairs, colorMarker+string(code), "")
	}
	return strings.NewReplacer(pairs...)
}()

// StripColorCodes removes the sixteen §-prefixed color codes from server output.
// Other § sequences, such as bold or reset, are kept.
func StripColorCodes(text string) string {
	if !strings.Contains(text, colorMarker) {
		return text
	}
	return colorCodes.Replace(text)
}
