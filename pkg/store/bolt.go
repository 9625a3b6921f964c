package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const (
	savesBucket = "saves"
	idsBucket   = "save_ids"
)

// BoltStore keeps saves in a bbolt file. Saves are keyed slot/id so a
// prefix scan yields one slot in ULID order; save_ids maps an id back to
// its slot.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens (or creates) a bbolt-backed store at path.
func OpenBolt(path string) (*BoltStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}
	s := &BoltStore{db: db}
	if err := s.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying bbolt database.
func (s *BoltStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *BoltStore) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{savesBucket, idsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		return nil
	})
}

func saveKey(slot, id string) []byte { return []byte(slot + "/" + id) }

func slotPrefix(slot string) []byte { return []byte(slot + "/") }

// Save writes f as a new save and returns its ID.
func (s *BoltStore) Save(ctx context.Context, f *SaveFile) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := stamp(f); err != nil {
		return "", err
	}
	if strings.Contains(f.Slot, "/") {
		return "", fmt.Errorf("save slot %q must not contain '/'", f.Slot)
	}
	payload, err := json.Marshal(f)
	if err != nil {
		return "", fmt.Errorf("marshal save: %w", err)
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		ids := tx.Bucket([]byte(idsBucket))
		if ids.Get([]byte(f.ID)) != nil {
			return fmt.Errorf("save %s already exists", f.ID)
		}
		if err := tx.Bucket([]byte(savesBucket)).Put(saveKey(f.Slot, f.ID), payload); err != nil {
			return err
		}
		return ids.Put([]byte(f.ID), []byte(f.Slot))
	})
	if err != nil {
		return "", fmt.Errorf("save %s: %w", f.ID, err)
	}
	return f.ID, nil
}

// Get loads the save with the given ID.
func (s *BoltStore) Get(ctx context.Context, id string) (*SaveFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var f *SaveFile
	err := s.db.View(func(tx *bbolt.Tx) error {
		slot := tx.Bucket([]byte(idsBucket)).Get([]byte(id))
		if slot == nil {
			return ErrNotFound
		}
		payload := tx.Bucket([]byte(savesBucket)).Get(saveKey(string(slot), id))
		if payload == nil {
			return ErrNotFound
		}
		var err error
		f, err = decodeSave(payload)
		return err
	})
	return f, err
}

// Latest loads the newest save in slot.
func (s *BoltStore) Latest(ctx context.Context, slot string) (*SaveFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var f *SaveFile
	err := s.db.View(func(tx *bbolt.Tx) error {
		var last []byte
		prefix := slotPrefix(slot)
		c := tx.Bucket([]byte(savesBucket)).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			last = v
		}
		if last == nil {
			return ErrNotFound
		}
		var err error
		f, err = decodeSave(last)
		return err
	})
	return f, err
}

// ListSaves returns summaries of every save in slot, newest first. An
// empty slot lists all slots.
func (s *BoltStore) ListSaves(ctx context.Context, slot string) ([]SaveInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var infos []SaveInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		var prefix []byte
		if slot != "" {
			prefix = slotPrefix(slot)
		}
		c := tx.Bucket([]byte(savesBucket)).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			f, err := decodeSave(v)
			if err != nil {
				return err
			}
			infos = append(infos, f.Info())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(infos)
	return infos, nil
}

// Rotate deletes all but the newest keep saves in slot and returns how
// many were removed.
func (s *BoltStore) Rotate(ctx context.Context, slot string, keep int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if keep < 1 {
		return 0, fmt.Errorf("rotate %s: keep must be at least 1, got %d", slot, keep)
	}
	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		saves := tx.Bucket([]byte(savesBucket))
		ids := tx.Bucket([]byte(idsBucket))
		prefix := slotPrefix(slot)

		var keys [][]byte
		c := saves.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, bytes.Clone(k))
		}
		for len(keys) > keep {
			k := keys[0]
			keys = keys[1:]
			if err := saves.Delete(k); err != nil {
				return err
			}
			if err := ids.Delete(bytes.TrimPrefix(k, prefix)); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("rotate %s: %w", slot, err)
	}
	return removed, nil
}

func decodeSave(payload []byte) (*SaveFile, error) {
	var f SaveFile
	if err := json.Unmarshal(payload, &f); err != nil {
		return nil, fmt.Errorf("unmarshal save: %w", err)
	}
	return &f, nil
}
