package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/taller-web/hello-client/internal/domain"
)

// Package storage keeps a local history of completed exchanges.

// Store records exchanges and lists the most recent ones.
type Store interface {
	Close() error
	Record(ex domain.Exchange) error
	// Recent returns up to limit exchanges, newest first.
	Recent(limit int) ([]domain.Exchange, error)
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	EntryTTL        time.Duration
	CleanupInterval time.Duration
}

const (
	defaultEntryTTL        = 7 * 24 * time.Hour
	defaultCleanupInterval = time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.EntryTTL <= 0 {
		opts.EntryTTL = defaultEntryTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                          { return nil }
func (noopStore) Record(domain.Exchange) error          { return nil }
func (noopStore) Recent(int) ([]domain.Exchange, error) { return nil, nil }
