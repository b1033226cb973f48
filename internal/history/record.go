// Package history is the append-only audit log of fusion results and
// client-submitted documents. Records of both kinds share one table and are
// told apart by Kind.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrStorageUnavailable wraps every backend failure on Append or Query.
	ErrStorageUnavailable = errors.New("history storage unavailable")
	// ErrInvalidCursor is returned for a cursor this store did not issue.
	ErrInvalidCursor = errors.New("invalid pagination cursor")
	ErrInvalidKind   = errors.New("invalid record kind")
)

// Kind discriminates record types within the shared table.
type Kind string

const (
	KindFusion Kind = "fusion"
	KindCustom Kind = "custom"
)

// ParseKind accepts "fusion" and "custom". An empty string is KindFusion.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", KindFusion:
		return KindFusion, nil
	case KindCustom:
		return KindCustom, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// TimeLayout is the createdAt format: UTC with millisecond precision. It
// sorts lexicographically in time order.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Record is one stored entry.
type Record struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"type"`
	CreatedAt string          `json:"createdAt"`
	Payload   json.RawMessage `json:"data"`
}

// Query selects one page of records of a single kind, newest first.
type Query struct {
	Kind   Kind
	Limit  int
	Cursor string
}

// Page is one page of query results. NextCursor is empty on the last page.
type Page struct {
	Items      []Record `json:"items"`
	NextCursor string   `json:"nextCursor,omitempty"`
	Count      int      `json:"count"`
}

// Store is a history backend.
type Store interface {
	Put(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) (Page, error)
	Close() error
}
