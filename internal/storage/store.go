// Package storage provides the best-effort key/value Store behind sessions,
// the whitelist and game backups.
package storage

import (
	"context"

	"github.com/mroshb/group_quiz_bot/pkg/errors"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New(errors.ErrCodeNotFound, "key not found")

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Keys lists keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Ping(ctx context.Context) error
}

// IsNotFound reports whether err means the key does not exist.
func IsNotFound(err error) bool {
	return errors.HasCode(err, errors.ErrCodeNotFound)
}
