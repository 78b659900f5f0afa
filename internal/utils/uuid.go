package utils

import "github.com/google/uuid"

// IsUUID reports whether a path parameter parses as a UUID.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)

	return err == nil
}
