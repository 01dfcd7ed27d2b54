package core

import (
	"fmt"
	"strings"
)

// ValidatePoint validates a Point against the collection dimensionality.
//
// Validation rules:
//   - Vector must not be empty
//   - Vector length must equal dim
//   - Text must not be blank
//
// NOT validated:
//   - ID (assigned by the index when empty)
func ValidatePoint(point *Point, dim int) error {
	if point == nil {
		return fmt.Errorf("%w: point is nil", ErrInvalidPoint)
	}

	if len(point.Vector) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidPoint, ErrEmptyVector)
	}

	if len(point.Vector) != dim {
		return fmt.Errorf("%w: %w: got %d, want %d", ErrInvalidPoint, ErrDimensionMismatch, len(point.Vector), dim)
	}

	if strings.TrimSpace(point.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPoint, ErrEmptyContent)
	}

	return nil
}

// ValidateCollection checks that a collection name and dimension are usable.
func ValidateCollection(name string, dim int) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is empty", ErrInvalidCollection)
	}
	if dim <= 0 {
		return fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidCollection, dim)
	}
	return nil
}
