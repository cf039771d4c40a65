package report

import (
	"errors"
	"regexp"
	"strings"

	"github.com/richinex/kronologi/llm"
)

var limitPattern = regexp.MustCompile(`Limit (\d+), Requested (\d+)`)

// IsCapacityError reports whether err is a provider rejection of an
// oversized request. Adapters tag such errors with llm.ErrRequestTooLarge;
// errors from elsewhere are recognized by their text.
func IsCapacityError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, llm.ErrRequestTooLarge) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "request too large") || strings.Contains(msg, "request_too_large")
}

// ParseCapacity extracts the token limit and requested size from a
// capacity error's text. Either is "unknown" when the text does not say.
func ParseCapacity(err error) (limit, requested string) {
	if err == nil {
		return "unknown", "unknown"
	}
	m := limitPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return "unknown", "unknown"
	}
	return m[1], m[2]
}
