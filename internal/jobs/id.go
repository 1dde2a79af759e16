package jobs

import (
	"strings"

	"github.com/google/uuid"
)

// BatchIDPrefix is prepended to every batch job ID.
const BatchIDPrefix = "batch-"

// GenerateID creates a new random job ID with the given prefix.
// The prefix should include a trailing dash, e.g. "batch-".
func GenerateID(prefix string) string {
	return prefix + uuid.NewString()
}

// NormalizeID accepts an ID with or without prefix and returns it with prefix.
func NormalizeID(id, prefix string) string {
	if strings.HasPrefix(id, prefix) {
		return id
	}
	return prefix + id
}
