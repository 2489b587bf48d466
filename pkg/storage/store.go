package storage

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glestaris/ice/pkg/types"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a document does not exist
var ErrNotFound = errors.New("not found")

// Backend names accepted by Open
const (
	BackendBolt   = "bolt"
	BackendBadger = "badger"
)

// Store defines the interface for registry document storage.
// Each call is atomic for the single document it touches; there are no
// multi-document transactions.
type Store interface {
	// Sessions
	CreateSession(session *types.Session) error
	GetSession(id string) (*types.Session, error)
	ListSessions() ([]*types.Session, error)
	DeleteSession(id string) error

	// Instances
	CreateInstance(instance *types.Instance) error
	GetInstance(id string) (*types.Instance, error)
	ListInstances() ([]*types.Instance, error)
	ListInstancesBySession(sessionID string) ([]*types.Instance, error)
	DeleteInstance(id string) error

	// Utility
	Close() error
}

// Open creates the store for the named backend rooted at dataDir
func Open(backend, dataDir string) (Store, error) {
	switch backend {
	case "", BackendBolt:
		return NewBoltStore(dataDir)
	case BackendBadger:
		return NewBadgerStore(dataDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// stamp assigns the server-side metadata of a document about to be written.
// Ids and creation times already set (e.g. during migration) are preserved.
func stamp(doc types.Document) error {
	meta := doc.Meta()
	now := time.Now().UTC()
	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.Created.IsZero() {
		meta.Created = now
	}
	if meta.Updated.IsZero() {
		meta.Updated = meta.Created
	}

	body, err := types.ToDocument(doc)
	if err != nil {
		return err
	}
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	sum := sha1.Sum(data)
	meta.ETag = hex.EncodeToString(sum[:])
	return nil
}

func notFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// Copy writes every document of src into dst, preserving ids and timestamps.
// Sessions are copied before instances so references resolve in dst.
func Copy(dst, src Store) (sessions, instances int, err error) {
	ss, err := src.ListSessions()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	for _, s := range ss {
		if err := dst.CreateSession(s); err != nil {
			return sessions, instances, fmt.Errorf("failed to copy session %s: %w", s.ID, err)
		}
		sessions++
	}

	is, err := src.ListInstances()
	if err != nil {
		return sessions, 0, fmt.Errorf("failed to list instances: %w", err)
	}
	for _, i := range is {
		if err := dst.CreateInstance(i); err != nil {
			return sessions, instances, fmt.Errorf("failed to copy instance %s: %w", i.ID, err)
		}
		instances++
	}
	return sessions, instances, nil
}
