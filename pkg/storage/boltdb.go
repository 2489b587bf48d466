package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/glestaris/ice/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	// Bucket names
	bucketSessions  = []byte("sessions")
	bucketInstances = []byte("instances")
)

// BoltStore implements Store interface using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "registry.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketSessions, bucketInstances} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) put(bucket []byte, doc types.Document) error {
	if err := stamp(doc); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		return tx.Bucket(bucket).Put([]byte(doc.Meta().ID), data)
	})
}

func (s *BoltStore) get(bucket []byte, kind, id string, out any) error {
	return s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucket).Get([]byte(id))
		if data == nil {
			return notFound(kind, id)
		}
		return json.Unmarshal(data, out)
	})
}

func (s *BoltStore) del(bucket []byte, kind, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b.Get([]byte(id)) == nil {
			return notFound(kind, id)
		}
		return b.Delete([]byte(id))
	})
}

// Session operations
func (s *BoltStore) CreateSession(session *types.Session) error {
	return s.put(bucketSessions, session)
}

func (s *BoltStore) GetSession(id string) (*types.Session, error) {
	var session types.Session
	if err := s.get(bucketSessions, "session", id, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *BoltStore) ListSessions() ([]*types.Session, error) {
	var sessions []*types.Session
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSessions)
		return b.ForEach(func(k, v []byte) error {
			var session types.Session
			if err := json.Unmarshal(v, &session); err != nil {
				return err
			}
			sessions = append(sessions, &session)
			return nil
		})
	})
	return sessions, err
}

func (s *BoltStore) DeleteSession(id string) error {
	return s.del(bucketSessions, "session", id)
}

// Instance operations
func (s *BoltStore) CreateInstance(instance *types.Instance) error {
	return s.put(bucketInstances, instance)
}

func (s *BoltStore) GetInstance(id string) (*types.Instance, error) {
	var instance types.Instance
	if err := s.get(bucketInstances, "instance", id, &instance); err != nil {
		return nil, err
	}
	return &instance, nil
}

func (s *BoltStore) ListInstances() ([]*types.Instance, error) {
	var instances []*types.Instance
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketInstances)
		return b.ForEach(func(k, v []byte) error {
			var instance types.Instance
			if err := json.Unmarshal(v, &instance); err != nil {
				return err
			}
			instances = append(instances, &instance)
			return nil
		})
	})
	return instances, err
}

func (s *BoltStore) ListInstancesBySession(sessionID string) ([]*types.Instance, error) {
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

func (s *BoltStore) DeleteInstance(id string) error {
	return s.del(bucketInstances, "instance", id)
}
