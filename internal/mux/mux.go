// Package mux owns the set of live remote connections. Connections are
// reference-counted by session usage: the first acquire for a profile dials,
// later acquires share, and the release that drops the count to zero tears
// the connection down in the same operation.
package mux

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"

	"drift/internal/logging"
	"drift/internal/transport"
	"drift/internal/types"
)

var (
	ErrConnectionNotFound = errors.New("connection not found")
	ErrNotAcquired        = errors.New("connection has no outstanding references")
	ErrSuperseded         = errors.New("reconnect superseded by a newer request")
	ErrNotDisconnected    = errors.New("connection is not disconnected")
	ErrNotConnected       = errors.New("connection is not connected")
)

// ConnectError reports a failed establishment or reconnection. Detail is the
// transport's reason, surfaced to the user.
type ConnectError struct {
	ProfileName string
	Detail      string
	Err         error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s: %s", e.ProfileName, e.Detail)
}

func (e *ConnectError) Unwrap() error { return e.Err }

type Manager struct {
	mu            sync.Mutex
	transport     transport.Transport
	autoReconnect bool
	conns         map[string]*managed
	logger        logging.Logger
	newID         func() string
}

type managed struct {
	conn    types.ActiveConnection
	channel transport.Conn
	// dialGen invalidates in-flight reconnects: a newer reconnect (or a
	// release) bumps it and the stale result is discarded on arrival.
	dialGen int
}

func NewManager(t transport.Transport, autoReconnect bool, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{
		transport:     t,
		autoReconnect: autoReconnect,
		conns:         map[string]*managed{},
		logger:        logger,
		newID:         newConnectionID,
	}
}

func newConnectionID() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err)
	}
	return "conn-" + hex.EncodeToString(buf[:])
}

// Acquire returns a live connection for the profile, establishing one if no
// connected or reconnecting binding exists. The returned snapshot reflects
// the incremented session count.
func (m *Manager) Acquire(ctx context.Context, profile types.ConnectionProfile) (types.ActiveConnection, error) {
	m.mu.Lock()
	for _, mc := range m.conns {
		if mc.conn.Profile.ID != profile.ID {
			continue
		}
		switch mc.conn.Status {
		case types.ConnectionStatusConnected, types.ConnectionStatusReconnecting:
			mc.conn.SessionCount++
			out := mc.conn.Clone()
			m.mu.Unlock()
			return out, nil
		}
	}

	id := m.newID()
	mc := &managed{
		conn: types.ActiveConnection{
			ID:      id,
			Profile: profile.Clone(),
			Status:  types.ConnectionStatusConnecting,
		},
	}
	m.conns[id] = mc
	m.mu.Unlock()

	m.logger.Info("dialing", logging.F("connection", id), logging.F("host", profile.Host))
	channel, dialErr := m.transport.Dial(ctx, profile)

	m.mu.Lock()
	defer m.mu.Unlock()
	if dialErr != nil {
		delete(m.conns, id)
		m.logger.Warn("dial failed", logging.F("connection", id), logging.F("err", dialErr))
		return types.ActiveConnection{}, &ConnectError{
			ProfileName: profile.Name,
			Detail:      dialErr.Error(),
			Err:         dialErr,
		}
	}
	mc.channel = channel
	mc.conn.Status = types.ConnectionStatusConnected
	mc.conn.SessionCount = 1
	return mc.conn.Clone(), nil
}

// Release drops one session reference. At zero the connection is torn down
// and removed from the live set.
func (m *Manager) Release(connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mc, ok := m.conns[connectionID]
	if !ok {
		return ErrConnectionNotFound
	}
	if mc.conn.SessionCount <= 0 {
		return ErrNotAcquired
	}
	mc.conn.SessionCount--
	if mc.conn.SessionCount > 0 {
		return nil
	}
	mc.dialGen++
	if mc.channel != nil {
		_ = mc.channel.Close()
	}
	delete(m.conns, connectionID)
	m.logger.Info("connection torn down", logging.F("connection", connectionID))
	return nil
}

// MarkDisconnected records an unexpected loss signalled by the transport.
// Dependent sessions keep their local state and observe the new status via
// snapshots. Returns the resulting status: reconnecting when auto-reconnect
// is configured, disconnected otherwise.
func (m *Manager) MarkDisconnected(connectionID, detail string) (types.ConnectionStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mc, ok := m.conns[connectionID]
	if !ok {
		return "", ErrConnectionNotFound
	}
	if mc.channel != nil {
		_ = mc.channel.Close()
		mc.channel = nil
	}
	mc.conn.LastDisconnectDetail = detail
	if m.autoReconnect {
		mc.conn.Status = types.ConnectionStatusReconnecting
	} else {
		mc.conn.Status = types.ConnectionStatusDisconnected
	}
	m.logger.Warn("connection lost",
		logging.F("connection", connectionID),
		logging.F("detail", detail),
		logging.F("status", string(mc.conn.Status)))
	return mc.conn.Status, nil
}

// Reconnect re-establishes a disconnected connection. A newer reconnect for
// the same connection supersedes an older in-flight one; the superseded
// result is discarded on arrival. The manager never retries on its own;
// backoff and attempt counts belong to the caller.
func (m *Manager) Reconnect(ctx context.Context, connectionID string) error {
	m.mu.Lock()
	mc, ok := m.conns[connectionID]
	if !ok {
		m.mu.Unlock()
		return ErrConnectionNotFound
	}
	switch mc.conn.Status {
	case types.ConnectionStatusDisconnected, types.ConnectionStatusReconnecting:
	default:
		m.mu.Unlock()
		return ErrNotDisconnected
	}
	mc.conn.Status = types.ConnectionStatusReconnecting
	mc.dialGen++
	gen := mc.dialGen
	profile := mc.conn.Profile.Clone()
	m.mu.Unlock()

	m.logger.Info("reconnecting", logging.F("connection", connectionID))
	channel, dialErr := m.transport.Dial(ctx, profile)

	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.conns[connectionID]
	if !ok || current.dialGen != gen {
		if channel != nil {
			_ = channel.Close()
		}
		return ErrSuperseded
	}
	if dialErr != nil {
		current.conn.Status = types.ConnectionStatusDisconnected
		current.conn.LastDisconnectDetail = dialErr.Error()
		m.logger.Warn("reconnect failed", logging.F("connection", connectionID), logging.F("err", dialErr))
		return &ConnectError{ProfileName: profile.Name, Detail: dialErr.Error(), Err: dialErr}
	}
	if current.channel != nil {
		_ = current.channel.Close()
	}
	current.channel = channel
	current.conn.Status = types.ConnectionStatusConnected
	current.conn.LastDisconnectDetail = ""
	m.logger.Info("reconnected", logging.F("connection", connectionID))
	return nil
}

// Get returns a deep copy of the identified connection.
func (m *Manager) Get(connectionID string) (types.ActiveConnection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mc, ok := m.conns[connectionID]
	if !ok {
		return types.ActiveConnection{}, false
	}
	return mc.conn.Clone(), true
}

// List returns deep copies of every live connection, ordered by id.
func (m *Manager) List() []types.ActiveConnection {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.ActiveConnection, 0, len(m.conns))
	for _, mc := range m.conns {
		out = append(out, mc.conn.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Channel returns the live transport channel for file operations. It fails
// unless the connection is currently connected.
func (m *Manager) Channel(connectionID string) (transport.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mc, ok := m.conns[connectionID]
	if !ok {
		return nil, ErrConnectionNotFound
	}
	if mc.conn.Status != types.ConnectionStatusConnected || mc.channel == nil {
		return nil, ErrNotConnected
	}
	return mc.channel, nil
}
