// Package id provides typed unique identifiers for git-uplink entities.
//
// ID wraps a UUID with a phantom type parameter so that identifiers of
// different entity kinds cannot be mixed up at compile time even though
// the underlying representation is identical. Values are created once at
// entity creation and are immutable afterwards.
package id

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
)

// ID is a globally unique, totally ordered identifier for entities of
// type T. The zero value is the nil identifier.
type ID[T any] struct {
	uuid uuid.UUID
}

// New returns a new random identifier.
func New[T any]() ID[T] {
	return ID[T]{uuid: uuid.New()}
}

// Parse parses an identifier from its canonical text form.
func Parse[T any](s string) (ID[T], error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ID[T]{}, fmt.Errorf("unable to parse id %q err:%w", s, err)
	}
	return ID[T]{uuid: u}, nil
}

// IsNil reports whether the identifier is the zero value.
func (i ID[T]) IsNil() bool {
	return i.uuid == uuid.Nil
}

// Compare returns -1, 0 or 1 comparing i to other byte-wise. The order is
// total and stable across processes.
func (i ID[T]) Compare(other ID[T]) int {
	return bytes.Compare(i.uuid[:], other.uuid[:])
}

// Equal reports whether two identifiers are the same value.
func (i ID[T]) Equal(other ID[T]) bool {
	return i.uuid == other.uuid
}

func (i ID[T]) String() string {
	return i.uuid.String()
}

// MarshalText implements encoding.TextMarshaler. The text form round-trips
// through Parse and UnmarshalText.
func (i ID[T]) MarshalText() ([]byte, error) {
	return []byte(i.uuid.String()), nil
}

func (i *ID[T]) UnmarshalText(data []byte) error {
	u, err := uuid.ParseBytes(data)
	if err != nil {
		return fmt.Errorf("unable to parse id %q err:%w", data, err)
	}
	i.uuid = u
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler, producing the fixed
// 16-byte form used for persisted keys.
func (i ID[T]) MarshalBinary() ([]byte, error) {
	return i.uuid.MarshalBinary()
}

func (i *ID[T]) UnmarshalBinary(data []byte) error {
	return i.uuid.UnmarshalBinary(data)
}
