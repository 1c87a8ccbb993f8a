package connection

import (
	"context"
	"errors"
)

// ErrNotConnected is returned when no server connection is open.
var ErrNotConnected = errors.New("not connected")

// DialFunc opens a protocol client.
type DialFunc func(ctx context.Context, addr string) (*Client, error)

// Session describes the manager's current connection.
type Session struct {
	Server string `json:"server" yaml:"server"`
	User   string `json:"user,omitempty" yaml:"user,omitempty"`
}

// Manager owns the single connection of an interactive shell and tracks
// which user it is logged in as.
type Manager struct {
	dial    DialFunc
	client  *Client
	current *Session
}

// NewManager creates a connection manager that dials with Dial.
func NewManager() *Manager {
	return &Manager{dial: Dial}
}

// NewManagerWithDialer creates a connection manager using dial.
func NewManagerWithDialer(dial DialFunc) *Manager {
	return &Manager{dial: dial}
}

// Connect opens a connection to server, closing any previous one.
func (m *Manager) Connect(ctx context.Context, server string) error {
	c, err := m.dial(ctx, server)
	if err != nil {
		return err
	}
	m.Disconnect()
	m.client = c
	m.current = &Session{Server: server}
	return nil
}

// Login authenticates the current connection. A failed login keeps the
// previous user, matching the server's state.
func (m *Manager) Login(ctx context.Context, user, password string) (bool, error) {
	c, err := m.Client()
	if err != nil {
		return false, err
	}
	ok, err := c.Login(ctx, user, password)
	if err != nil {
		m.drop()
		return false, err
	}
	if ok {
		m.current.User = user
	}
	return ok, nil
}

// Client returns the open protocol client. A client that failed mid-call
// is discarded and ErrNotConnected returned.
func (m *Manager) Client() (*Client, error) {
	if m.client == nil {
		return nil, ErrNotConnected
	}
	if !m.client.Alive() {
		m.drop()
		return nil, ErrNotConnected
	}
	return m.client, nil
}

// Disconnect sends EXIT and forgets the connection.
func (m *Manager) Disconnect() {
	if m.client != nil {
		_ = m.client.Exit()
	}
	m.client = nil
	m.current = nil
}

// Current returns the current session, or nil when disconnected.
func (m *Manager) Current() *Session {
	if m.client != nil && !m.client.Alive() {
		m.drop()
	}
	return m.current
}

// IsConnected returns true if connected to a server.
func (m *Manager) IsConnected() bool {
	return m.Current() != nil
}

func (m *Manager) drop() {
	if m.client != nil {
		_ = m.client.Close()
	}
	m.client = nil
	m.current = nil
}
