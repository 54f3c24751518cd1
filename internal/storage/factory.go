package storage

import (
	"fmt"
	"os"
	"sort"

	"knapsackga/internal/model"
)

const storeKindEnv = "KNAPSACKGA_STORE"

// DefaultStoreKind honours KNAPSACKGA_STORE and falls back to the in-memory backend.
func DefaultStoreKind() string {
	if kind := os.Getenv(storeKindEnv); kind != "" {
		return kind
	}
	return "memory"
}

func NewStore(kind, path string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(path), nil
	case "badger":
		return NewBadgerStore(path), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}

func sortNewestFirst(runs []model.RunRecord) {
	sort.SliceStable(runs, func(i, j int) bool {
		if runs[i].CreatedAtUTC == runs[j].CreatedAtUTC {
			return runs[i].ID < runs[j].ID
		}
		return runs[i].CreatedAtUTC > runs[j].CreatedAtUTC
	})
}
