package workspace

import (
	"sort"

	"drift/internal/types"
)

// Snapshot publishes a deep copy of the whole workspace for rendering.
// Sessions appear in tab order; no pointer in the result aliases registry
// state.
func (r *Registry) Snapshot() types.WorkspaceSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := types.WorkspaceSnapshot{
		ActiveSessionID: r.activeID,
		Connections:     r.conns.List(),
	}
	for _, id := range r.order {
		state := r.sessions[id]
		if state == nil {
			continue
		}
		snapshot.Sessions = append(snapshot.Sessions, r.sessionSnapshotLocked(state))
	}
	return snapshot
}

// SessionSnapshot publishes a deep copy of one session's view.
func (r *Registry) SessionSnapshot(sessionID string) (types.SessionSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, err := r.state(sessionID)
	if err != nil {
		return types.SessionSnapshot{}, err
	}
	return r.sessionSnapshotLocked(state), nil
}

func (r *Registry) sessionSnapshotLocked(state *sessionState) types.SessionSnapshot {
	snapshot := types.SessionSnapshot{
		Session:    state.session.Clone(),
		OpenFiles:  state.files.List(),
		ActiveFile: state.activeFile,
		Root:       state.layout.Root(),
		Groups:     state.layout.Groups(),
	}
	if len(state.tree) > 0 {
		snapshot.Files = make([]*types.FileEntry, 0, len(state.tree))
		for _, entry := range state.tree {
			snapshot.Files = append(snapshot.Files, entry.Clone())
		}
	}
	if len(state.expanded) > 0 {
		snapshot.ExpandedPaths = make([]string, 0, len(state.expanded))
		for dir := range state.expanded {
			snapshot.ExpandedPaths = append(snapshot.ExpandedPaths, dir)
		}
		sort.Strings(snapshot.ExpandedPaths)
	}
	return snapshot
}
