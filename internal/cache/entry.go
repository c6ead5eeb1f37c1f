package cache

import "time"

// Entry is a time-stamped cached value. Entries are immutable: a refresh
// replaces the entry wholesale, it never mutates Data in place.
type Entry[T any] struct {
	Data      T
	Timestamp time.Time
}

// NewEntry stamps data with now.
func NewEntry[T any](data T, now time.Time) Entry[T] {
	return Entry[T]{Data: data, Timestamp: now}
}

// IsValid returns true if the entry is younger than ttl at the given instant.
func (e Entry[T]) IsValid(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.Timestamp) < ttl
}

// Age returns how long ago the entry was stored.
func (e Entry[T]) Age(now time.Time) time.Duration {
	return now.Sub(e.Timestamp)
}
