package store

import (
	"errors"
	"fmt"
)

// ErrPageOutOfOrder is recorded when a page other than the one after the
// last merged page is requested. Pages are only ever appended in order.
var ErrPageOutOfOrder = errors.New("page does not follow the last loaded page")

// FetchError describes a failed read. List and dashboard fetches record it
// in their state; entity lookups return it.
type FetchError struct {
	Resource string
	Page     int // zero for non paginated reads
	ID       string
	Err      error
}

func (e *FetchError) Error() string {
	switch {
	case e.ID != "":
		return fmt.Sprintf("failed to fetch %s %s: %v", e.Resource, e.ID, e.Err)
	case e.Page > 0:
		return fmt.Sprintf("failed to fetch %s page %d: %v", e.Resource, e.Page, e.Err)
	default:
		return fmt.Sprintf("failed to fetch %s: %v", e.Resource, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// MutationError is returned when a write fails. Nothing was patched or
// invalidated.
type MutationError struct {
	Op  string
	ID  string
	Err error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}
