package artifacts

import (
	"fmt"
	"strings"
)

// NotFoundError is returned when an addressed artifact does not exist.
type NotFoundError struct {
	Kind NodeKind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// ReferentialIntegrityError lists dangling back-references.
type ReferentialIntegrityError struct {
	Violations []string
}

func (e *ReferentialIntegrityError) Error() string {
	return fmt.Sprintf("referential integrity violated: %s", strings.Join(e.Violations, "; "))
}
