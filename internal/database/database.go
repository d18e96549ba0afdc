package database

import (
	"context"
	"fmt"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

type Options struct {
	Store    string
	DSN      string
	MongoURI string
	MongoDB  string
}

// Open connects to the configured store and prepares its schema.
func Open(ctx context.Context, opts Options) (Repository, error) {
	switch opts.Store {
	case StoreMemory:
		return NewMemoryRepository(), nil
	case StorePostgres:
		repo, err := NewPgRepository(opts.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := repo.Migrate(); err != nil {
			repo.Close()
			return nil, err
		}
		return repo, nil
	case StoreMongo:
		repo, err := NewMongoRepository(ctx, opts.MongoURI, opts.MongoDB)
		if err != nil {
			return nil, err
		}
		if err := repo.EnsureIndexes(ctx); err != nil {
			repo.Close()
			return nil, err
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown store %q", opts.Store)
	}
}
