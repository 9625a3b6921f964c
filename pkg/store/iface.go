// iface.go defines the StoreInterface shared by both save backends.
//
// The cmd layer accepts StoreInterface so the backend is chosen by
// configuration, and tests run the same cases against each.
package store

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// StoreInterface defines the full set of save operations.
type StoreInterface interface {
	// Close closes the database.
	Close() error

	// Save writes a new save and returns its ID.
	Save(ctx context.Context, f *SaveFile) (string, error)

	// Get loads a save by ID, or returns ErrNotFound.
	Get(ctx context.Context, id string) (*SaveFile, error)

	// Latest loads the newest save in a slot, or returns ErrNotFound.
	Latest(ctx context.Context, slot string) (*SaveFile, error)

	// ListSaves summarizes the saves in a slot (all slots when empty),
	// newest first.
	ListSaves(ctx context.Context, slot string) ([]SaveInfo, error)

	// Rotate keeps the newest keep saves in a slot and deletes the rest.
	Rotate(ctx context.Context, slot string, keep int) (int, error)
}

// Compile-time checks.
var (
	_ StoreInterface = (*Store)(nil)
	_ StoreInterface = (*BoltStore)(nil)
)

// Open opens the backend named by backend ("sqlite" or "bbolt") at path.
func Open(backend, path string) (StoreInterface, error) {
	switch backend {
	case "", "sqlite":
		return New(path)
	case "bbolt":
		return OpenBolt(path)
	}
	return nil, fmt.Errorf("unknown store backend %q", backend)
}

func sortNewestFirst(infos []SaveInfo) {
	slices.SortFunc(infos, func(a, b SaveInfo) int { return strings.Compare(b.ID, a.ID) })
}
