package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/glestaris/ice/pkg/client"
	"github.com/glestaris/ice/pkg/log"
	"github.com/glestaris/ice/pkg/types"
	"github.com/rs/zerolog"
)

var (
	// ErrNoSession is returned by operations that need a current session
	ErrNoSession = errors.New("no current session")
	// ErrSessionActive is returned when starting over a current session
	ErrSessionActive = errors.New("a session is already active")
	// ErrForeignInstance is returned when deleting an instance that
	// belongs to another session
	ErrForeignInstance = errors.New("instance belongs to another session")
)

// Manager owns the current session of one operator process. It is created
// once, passed to whatever needs it and closed on exit.
type Manager struct {
	client *client.Client
	logger zerolog.Logger

	mu       sync.Mutex
	current  *types.Session
	retained bool
}

// NewManager creates a Manager with no current session
func NewManager(c *client.Client) *Manager {
	return &Manager{
		client: c,
		logger: log.WithComponent("session"),
	}
}

// Client returns the registry client the manager talks through
func (m *Manager) Client() *client.Client {
	return m.client
}

// Start creates a new session owned by this process. The session's
// client_ip_addr is this host's address as seen by the registry.
func (m *Manager) Start() (*types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return nil, ErrSessionActive
	}

	ip, err := m.client.GetMyIP()
	if err != nil {
		return nil, fmt.Errorf("failed to discover client address: %w", err)
	}

	id, err := m.client.SubmitSession(&types.Session{ClientIPAddr: ip})
	if err != nil {
		return nil, fmt.Errorf("failed to submit session: %w", err)
	}

	sess, err := m.client.GetSession(id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session %s: %w", id, err)
	}

	m.current = sess
	m.retained = false
	m.logger.Info().Str("session_id", id).Str("client_ip_addr", ip).Msg("Session started")
	return sess, nil
}

// Attach makes an existing session current. Attached sessions are retained:
// Close leaves them in the registry.
func (m *Manager) Attach(id string) (*types.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return nil, ErrSessionActive
	}

	sess, err := m.client.GetSession(id)
	if err != nil {
		return nil, fmt.Errorf("failed to attach to session %s: %w", id, err)
	}

	m.current = sess
	m.retained = true
	m.logger.Info().Str("session_id", id).Msg("Attached to session")
	return sess, nil
}

// Current returns the current session or nil
func (m *Manager) Current() *types.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Retained reports whether Close will leave the current session in place
func (m *Manager) Retained() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retained
}

// Retain marks the current session to outlive this process
func (m *Manager) Retain() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return ErrNoSession
	}
	m.retained = true
	return nil
}

// Close ends the current session. Unless retained, the session and all its
// instances are deleted from the registry. Close without a current session
// is a no-op.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}

	id := m.current.ID
	if !m.retained {
		if err := m.client.DeleteSession(id); err != nil {
			return fmt.Errorf("failed to delete session %s: %w", id, err)
		}
		m.logger.Info().Str("session_id", id).Msg("Session deleted")
	} else {
		m.logger.Info().Str("session_id", id).Msg("Session retained")
	}

	m.current = nil
	m.retained = false
	return nil
}

func (m *Manager) currentID() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return "", ErrNoSession
	}
	return m.current.ID, nil
}

// Instances lists the instances registered to the current session
func (m *Manager) Instances() ([]*types.Instance, error) {
	id, err := m.currentID()
	if err != nil {
		return nil, err
	}
	return m.client.ListInstances(id)
}

// Hosts returns the user@host strings of the current session's instances,
// in registry order
func (m *Manager) Hosts() ([]string, error) {
	instances, err := m.Instances()
	if err != nil {
		return nil, err
	}

	hosts := make([]string, 0, len(instances))
	for _, inst := range instances {
		hosts = append(hosts, inst.HostString())
	}
	return hosts, nil
}

// DeleteInstances deletes the given instances after checking that every one
// of them belongs to the current session. Nothing is deleted when the check
// fails.
func (m *Manager) DeleteInstances(ids ...string) error {
	sessionID, err := m.currentID()
	if err != nil {
		return err
	}

	for _, id := range ids {
		inst, err := m.client.GetInstance(id)
		if err != nil {
			return fmt.Errorf("failed to fetch instance %s: %w", id, err)
		}
		if inst.SessionID != sessionID {
			return fmt.Errorf("%s: %w", id, ErrForeignInstance)
		}
	}

	for _, id := range ids {
		if err := m.client.DeleteInstance(id); err != nil {
			return fmt.Errorf("failed to delete instance %s: %w", id, err)
		}
		logger := log.WithInstanceID(id)
		logger.Info().Str("session_id", sessionID).Msg("Instance deleted")
	}
	return nil
}

// UserData returns the bootstrap script that registers a new VM to the
// current session
func (m *Manager) UserData(tags map[string]string) (string, error) {
	m.mu.Lock()
	sess := m.current
	m.mu.Unlock()

	if sess == nil {
		return "", ErrNoSession
	}
	return m.client.CompileUserData(sess, tags)
}
