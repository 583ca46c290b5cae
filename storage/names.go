package storage

import (
	"fmt"
	"regexp"
)

// Names end up in SQL identifiers and key prefixes, neither of which can be
// parameterized, so they are restricted to a safe alphabet.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// ValidateName checks a table or collection name.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// SnapshotName returns the table and collection name for a generation.
func SnapshotName(generation uint64) string {
	return fmt.Sprintf("documents_g%06d", generation)
}
