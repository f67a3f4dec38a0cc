package bot

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tidwall/buntdb"
)

// StateStore persists plugin switches across restarts.
type StateStore struct {
	db *buntdb.DB
}

type storedPluginState struct {
	Enabled       bool
	UpdatedAtTime int64
}

// OpenStateStore opens the buntdb file at path; ":memory:" keeps it in memory.
func OpenStateStore(path string) (*StateStore, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open state store %s: %w", path, err)
	}
	return &StateStore{db: db}, nil
}

func pluginKey(name string) string {
	return "plugin:" + name + ":state"
}

// LoadEnabled returns the saved flag. found is false when nothing was saved.
func (s *StateStore) LoadEnabled(name string) (enabled bool, found bool, err error) {
	err = s.db.View(func(tx *buntdb.Tx) error {
		value, err := tx.Get(pluginKey(name))
		if err != nil {
			if errors.Is(err, buntdb.ErrNotFound) {
				return nil
			}
			return err
		}
		var stored storedPluginState
		if err := json.Unmarshal([]byte(value), &stored); err != nil {
			return err
		}
		enabled, found = stored.Enabled, true
		return nil
	})
	return enabled, found, err
}

func (s *StateStore) SaveEnabled(name string, enabled bool) error {
	payload, err := json.Marshal(storedPluginState{Enabled: enabled, UpdatedAtTime: time.Now().Unix()})
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, _, e := tx.Set(pluginKey(name), string(payload), nil)
		return e
	})
}

// Forget drops the saved flag of a plugin.
func (s *StateStore) Forget(name string) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(pluginKey(name))
		if err != nil && !errors.Is(err, buntdb.ErrNotFound) {
			return err
		}
		return nil
	})
}

func (s *StateStore) Close() error {
	return s.db.Close()
}
