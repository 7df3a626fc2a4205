package llm

import (
	"regexp"
	"strings"
)

var scriptLanguages = []struct {
	name string
	re   *regexp.Regexp
}{
	{"Hindi", regexp.MustCompile(`[\x{0900}-\x{097F}]`)},
	{"Tamil", regexp.MustCompile(`[\x{0B80}-\x{0BFF}]`)},
	{"Telugu", regexp.MustCompile(`[\x{0C00}-\x{0C7F}]`)},
	{"Spanish", regexp.MustCompile(`(?i)\b(hola|gracias|buenos)\b`)},
	{"French", regexp.MustCompile(`(?i)\b(bonjour|merci|salut)\b`)},
}

// DetectLanguage guesses the reply language from script ranges and a few
// greeting words. It defaults to English.
func DetectLanguage(text string) string {
	for _, l := range scriptLanguages {
		if l.re.MatchString(text) {
			return l.name
		}
	}
	return "English"
}

// ResolveLanguage honours an explicit language and detects one when the
// requested language is empty or "auto".
func ResolveLanguage(text, requested string) string {
	requested = strings.TrimSpace(requested)
	if requested == "" || strings.EqualFold(requested, "auto") {
		return DetectLanguage(text)
	}
	return requested
}
