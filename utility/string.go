package utility

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ToInt converts a decimal string to an integer, truncating any fraction; 0 when unparsable.
func ToInt(s string) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return int(f)
}

func NewUUID() string {
	return uuid.New().String()
}

// Truncate shortens text to at most n runes.
func Truncate(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
