// Package terminal tracks terminal identifiers and their connection
// association. PTY creation and teardown live outside the state core; the
// registry only issues and releases the identifiers sessions hold.
package terminal

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sort"
	"sync"
)

var ErrTerminalNotFound = errors.New("terminal not found")

// Manager is the capability the workspace registry consumes. The in-core
// Registry satisfies it; a real implementation would additionally drive the
// external PTY owner.
type Manager interface {
	Create(ctx context.Context, connectionID string) (string, error)
	Release(ctx context.Context, terminalID string) error
}

type Registry struct {
	mu        sync.Mutex
	terminals map[string]string
	newID     func() string
}

func NewRegistry() *Registry {
	return &Registry{
		terminals: map[string]string{},
		newID:     newTerminalID,
	}
}

func newTerminalID() string {
	var buf [6]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err)
	}
	return "term-" + hex.EncodeToString(buf[:])
}

func (r *Registry) Create(ctx context.Context, connectionID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if connectionID == "" {
		return "", errors.New("connection id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.newID()
	r.terminals[id] = connectionID
	return id, nil
}

func (r *Registry) Release(ctx context.Context, terminalID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.terminals[terminalID]; !ok {
		return ErrTerminalNotFound
	}
	delete(r.terminals, terminalID)
	return nil
}

// Connection returns the connection a terminal is bound to.
func (r *Registry) Connection(terminalID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	connectionID, ok := r.terminals[terminalID]
	return connectionID, ok
}

// ForConnection returns the terminal ids bound to a connection, sorted.
func (r *Registry) ForConnection(connectionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for id, conn := range r.terminals {
		if conn == connectionID {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
