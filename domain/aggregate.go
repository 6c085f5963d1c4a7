package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AggregateID identifies a BankAccount or a BankTransaction. It doubles as lock key
// and persistence key, so it is never blank.
type AggregateID string

// NewAggregateID returns a random UUID based identifier.
func NewAggregateID() AggregateID {
	return AggregateID(uuid.NewString())
}

// ParseAggregateID trims the raw value and rejects blank identifiers.
func ParseAggregateID(raw string) (AggregateID, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", ErrBlankAggregateID
	}
	return AggregateID(id), nil
}

func (id AggregateID) String() string { return string(id) }

func (id AggregateID) IsBlank() bool { return strings.TrimSpace(string(id)) == "" }

// Clock abstracts time so aggregates stay deterministic under test.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC, truncated to milliseconds to match the
// precision of the event wire format.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// FixedClock always returns the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c) }
