package storage

import (
	"encoding/json"
	"errors"
	"path/filepath"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/glestaris/ice/pkg/types"
)

const (
	prefixSession  = "session:"
	prefixInstance = "instance:"
)

// BadgerStore implements Store with Badger DB
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a Badger database under dataDir
func NewBadgerStore(dataDir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(filepath.Join(filepath.Clean(dataDir), "badger"))
	opts.Logger = nil
	opts = opts.WithValueLogFileSize(1 << 24)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) put(prefix string, doc types.Document) error {
	if err := stamp(doc); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		return txn.Set([]byte(prefix+doc.Meta().ID), data)
	})
}

func (s *BadgerStore) get(prefix, kind, id string, out any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefix + id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return notFound(kind, id)
			}
			return err
		}
		return item.Value(func(v []byte) error {
			return json.Unmarshal(v, out)
		})
	})
}

func (s *BadgerStore) del(prefix, kind, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(prefix + id)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return notFound(kind, id)
			}
			return err
		}
		return txn.Delete(key)
	})
}

func (s *BadgerStore) scan(prefix string, fn func(v []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			if err := it.Item().Value(fn); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) CreateSession(session *types.Session) error {
	return s.put(prefixSession, session)
}

func (s *BadgerStore) GetSession(id string) (*types.Session, error) {
	var session types.Session
	if err := s.get(prefixSession, "session", id, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *BadgerStore) ListSessions() ([]*types.Session, error) {
	var sessions []*types.Session
	err := s.scan(prefixSession, func(v []byte) error {
		var session types.Session
		if err := json.Unmarshal(v, &session); err != nil {
			return err
		}
		sessions = append(sessions, &session)
		return nil
	})
	return sessions, err
}

func (s *BadgerStore) DeleteSession(id string) error {
	return s.del(prefixSession, "session", id)
}

func (s *BadgerStore) CreateInstance(instance *types.Instance) error {
	return s.put(prefixInstance, instance)
}

func (s *BadgerStore) GetInstance(id string) (*types.Instance, error) {
	var instance types.Instance
	if err := s.get(prefixInstance, "instance", id, &instance); err != nil {
		return nil, err
	}
	return &instance, nil
}

func (s *BadgerStore) ListInstances() ([]*types.Instance, error) {
	var instances []*types.Instance
	err := s.scan(prefixInstance, func(v []byte) error {
		var instance types.Instance
		if err := json.Unmarshal(v, &instance); err != nil {
			return err
		}
		instances = append(instances, &instance)
		return nil
	})
	return instances, err
}

func (s *BadgerStore) ListInstancesBySession(sessionID string) ([]*types.Instance, error) {
	instances, err := s.ListInstances()
	if err != nil {
		return nil, err
	}

	var filtered []*types.Instance
	for _, instance := range instances {
		if instance.SessionID == sessionID {
			filtered = append(filtered, instance)
		}
	}
	return filtered, nil
}

func (s *BadgerStore) DeleteInstance(id string) error {
	return s.del(prefixInstance, "instance", id)
}
