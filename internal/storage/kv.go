// Package storage is the durable key-value store behind drafts, history,
// preferences and the subscription record.
package storage

import (
	"context"
	"errors"
)

var (
	ErrNotFound           = errors.New("not_found")
	ErrQuotaExceeded      = errors.New("storage_quota_exceeded")
	ErrUnsupportedVersion = errors.New("unsupported_record_version")
	ErrKindMismatch       = errors.New("record_kind_mismatch")
)

// KV is a string-keyed byte store. Get returns ErrNotFound when the key is
// absent.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Close() error
}
