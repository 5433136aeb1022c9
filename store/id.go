package store

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ParseID validates and normalizes an externally supplied entity identifier.
// It returns the canonical lowercase hex form of the ObjectID, or
// ErrInvalidID (with the offending value attached) when the input is not a
// well-formed 24-character ObjectID hex string.
//
// Every operation that accepts a caller-supplied identifier resolves it
// through ParseID before touching a store implementation.
func ParseID(s string) (string, error) {
	oid, err := bson.ObjectIDFromHex(s)
	if err != nil {
		return "", errors.Join(ErrInvalidID, fmt.Errorf("identifier %q: %w", s, err))
	}
	return oid.Hex(), nil
}

// NewID returns a fresh store-assigned identifier in canonical hex form.
// Implementations use it when inserting new documents.
func NewID() string {
	return bson.NewObjectID().Hex()
}
