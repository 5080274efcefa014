package domain

import "github.com/google/uuid"

// NewID returns a time-ordered identifier, so lexical id order follows
// creation order.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
