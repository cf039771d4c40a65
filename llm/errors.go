package llm

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownProvider is returned for a provider string no adapter serves.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrMissingAPIKey is returned when no API key is configured or exported.
	ErrMissingAPIKey = errors.New("api key not configured")

	// ErrRequestTooLarge marks a provider rejection of an oversized request.
	// Its text carries the marker the retry controller looks for.
	ErrRequestTooLarge = errors.New("429 Request too large")
)

// capacityMarkers are lowercase fragments vendors use for oversized requests.
var capacityMarkers = []string{
	"request too large",
	"request_too_large",
	"context_length_exceeded",
	"maximum context length",
	"prompt is too long",
	"too many tokens",
	"exceeds the maximum number of tokens",
}

// looksLikeCapacity reports whether a vendor message describes an
// oversized request.
func looksLikeCapacity(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range capacityMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// wrapVendorError wraps a vendor error, tagging it with ErrRequestTooLarge
// when the vendor signalled an oversized request.
func wrapVendorError(op string, capacity bool, err error) error {
	if capacity {
		return fmt.Errorf("%s: %w: %w", op, ErrRequestTooLarge, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
