package utils

import "github.com/google/uuid"

// NewID returns a random identifier used to correlate a connection across log lines.
func NewID() string {
	return uuid.NewString()
}
