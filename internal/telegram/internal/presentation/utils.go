package presentation

import (
	"strings"

	"photo-intake-bot/internal/file"
)

func breakLine(n int) string {
	return strings.Repeat("\n", n)
}

func originalNames(names []string) string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, file.OriginalName(n))
	}
	return strings.Join(out, ", ")
}

func mark(flagged bool) string {
	if flagged {
		return " ⚠️"
	}
	return ""
}
