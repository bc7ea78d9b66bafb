// Package workspace is the entry point for user actions against the state
// core. The registry owns the set of sessions, their tab order, and the
// active-session pointer; it delegates connection lifecycle to the
// multiplexer, file state to the staleness tracker, and pane mutation to the
// layout engine, then republishes immutable snapshots for rendering.
package workspace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"path"
	"sync"
	"time"

	"drift/internal/layout"
	"drift/internal/logging"
	"drift/internal/mux"
	"drift/internal/staleness"
	"drift/internal/terminal"
	"drift/internal/types"
)

type sessionState struct {
	session    types.Session
	files      *staleness.Tracker
	tree       []*types.FileEntry
	expanded   map[string]bool
	activeFile string
	layout     *layout.Layout
}

type Registry struct {
	mu        sync.Mutex
	conns     *mux.Manager
	terminals terminal.Manager
	sessions  map[string]*sessionState
	order     []string
	activeID  string
	logger    logging.Logger
	clock     func() time.Time
	newID     func(prefix string) string
}

func NewRegistry(conns *mux.Manager, terminals terminal.Manager, logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Registry{
		conns:     conns,
		terminals: terminals,
		sessions:  map[string]*sessionState{},
		logger:    logger,
		clock:     time.Now,
		newID:     newPrefixedID,
	}
}

func newPrefixedID(prefix string) string {
	var buf [6]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err)
	}
	return prefix + "-" + hex.EncodeToString(buf[:])
}

// OpenSession acquires a connection for the profile, constructs a session
// with empty file and layout state, appends it to the tab order, and makes
// it active.
func (r *Registry) OpenSession(ctx context.Context, profile types.ConnectionProfile, projectRoot string) (types.Session, error) {
	if projectRoot == "" {
		return types.Session{}, invalidError("project root is required", nil)
	}
	conn, err := r.conns.Acquire(ctx, profile)
	if err != nil {
		return types.Session{}, unavailableError("connect failed", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	session := types.Session{
		ID:           r.newID("sess"),
		ConnectionID: conn.ID,
		Profile:      profile.Clone(),
		Status:       conn.Status,
		ProjectRoot:  projectRoot,
		Name:         profile.Name + ":" + path.Base(projectRoot),
		CreatedAt:    r.clock(),
	}
	r.sessions[session.ID] = &sessionState{
		session:  session,
		files:    staleness.NewTracker(),
		expanded: map[string]bool{},
		layout:   layout.New(),
	}
	r.order = append(r.order, session.ID)
	r.activeID = session.ID
	r.logger.Info("session opened",
		logging.F("session", session.ID),
		logging.F("connection", conn.ID),
		logging.F("root", projectRoot))
	return session.Clone(), nil
}

// CloseSession releases the session's connection reference, releases its
// terminals, and removes it from the mapping and tab order. When the closed
// session was active, the session now occupying the same tab index becomes
// active, or the previous index when the closed tab was last, or none.
func (r *Registry) CloseSession(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	state, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return notFoundError("session not found", nil)
	}
	terminalIDs := append([]string(nil), state.session.TerminalIDs...)
	connectionID := state.session.ConnectionID
	delete(r.sessions, sessionID)

	idx := indexOf(r.order, sessionID)
	if idx >= 0 {
		r.order = append(r.order[:idx], r.order[idx+1:]...)
	}
	if r.activeID == sessionID {
		switch {
		case len(r.order) == 0:
			r.activeID = ""
		case idx < len(r.order):
			r.activeID = r.order[idx]
		default:
			r.activeID = r.order[len(r.order)-1]
		}
	}
	r.mu.Unlock()

	for _, terminalID := range terminalIDs {
		if err := r.terminals.Release(ctx, terminalID); err != nil {
			r.logger.Warn("terminal release failed",
				logging.F("terminal", terminalID),
				logging.F("err", err))
		}
	}
	if err := r.conns.Release(connectionID); err != nil {
		return unavailableError("connection release failed", err)
	}
	r.logger.Info("session closed", logging.F("session", sessionID))
	return nil
}

// SetActive moves the active-session pointer with no other side effects.
func (r *Registry) SetActive(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		return notFoundError("session not found", nil)
	}
	r.activeID = sessionID
	return nil
}

// Reorder replaces the tab order with a permutation of the current identity
// set. A multiset mismatch is rejected and the order left unchanged.
func (r *Registry) Reorder(newOrder []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(newOrder) != len(r.order) {
		return invalidError("order must contain every session exactly once", nil)
	}
	seen := map[string]bool{}
	for _, id := range newOrder {
		if seen[id] {
			return invalidError("duplicate session in order: "+id, nil)
		}
		if _, ok := r.sessions[id]; !ok {
			return invalidError("unknown session in order: "+id, nil)
		}
		seen[id] = true
	}
	r.order = append([]string(nil), newOrder...)
	return nil
}

// HandleConnectionLost records an unexpected transport loss and mirrors the
// resulting status into every dependent session. Local file and layout
// state is untouched.
func (r *Registry) HandleConnectionLost(connectionID, detail string) error {
	status, err := r.conns.MarkDisconnected(connectionID, detail)
	if err != nil {
		if errors.Is(err, mux.ErrConnectionNotFound) {
			return notFoundError("connection not found", err)
		}
		return unavailableError("mark disconnected failed", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, state := range r.sessions {
		if state.session.ConnectionID == connectionID {
			state.session.Status = status
		}
	}
	return nil
}

// ReconcileTarget names one open file a caller should re-stat after a
// reconnect.
type ReconcileTarget struct {
	SessionID string
	Path      string
}

// Reconnect re-establishes the connection and returns the open files of
// dependent sessions for the caller to re-validate: remote content may have
// changed during the outage, and a reconnect alone never marks files as
// changed.
func (r *Registry) Reconnect(ctx context.Context, connectionID string) ([]ReconcileTarget, error) {
	if err := r.conns.Reconnect(ctx, connectionID); err != nil {
		if errors.Is(err, mux.ErrConnectionNotFound) {
			return nil, notFoundError("connection not found", err)
		}
		if errors.Is(err, mux.ErrSuperseded) {
			return nil, nil
		}
		r.mirrorConnectionStatus(connectionID)
		return nil, unavailableError("reconnect failed", err)
	}
	r.mirrorConnectionStatus(connectionID)

	r.mu.Lock()
	defer r.mu.Unlock()
	var targets []ReconcileTarget
	for _, id := range r.order {
		state := r.sessions[id]
		if state == nil || state.session.ConnectionID != connectionID {
			continue
		}
		for _, filePath := range state.files.Paths() {
			targets = append(targets, ReconcileTarget{SessionID: id, Path: filePath})
		}
	}
	return targets, nil
}

func (r *Registry) mirrorConnectionStatus(connectionID string) {
	conn, ok := r.conns.Get(connectionID)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, state := range r.sessions {
		if state.session.ConnectionID == connectionID {
			state.session.Status = conn.Status
		}
	}
}

// Session returns a deep copy of one session record.
func (r *Registry) Session(sessionID string) (types.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.sessions[sessionID]
	if !ok {
		return types.Session{}, false
	}
	return state.session.Clone(), true
}

// Order returns the current tab order.
func (r *Registry) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// ActiveSessionID returns the active-session pointer, empty when the
// workspace is empty.
func (r *Registry) ActiveSessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeID
}

func (r *Registry) state(sessionID string) (*sessionState, error) {
	state, ok := r.sessions[sessionID]
	if !ok {
		return nil, notFoundError("session not found", nil)
	}
	return state, nil
}

func indexOf(ids []string, id string) int {
	for i, candidate := range ids {
		if candidate == id {
			return i
		}
	}
	return -1
}
