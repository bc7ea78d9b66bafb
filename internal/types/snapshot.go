package types

// SessionSnapshot is the immutable per-session view published for rendering:
// the session record plus its file and layout state, deep-copied so callers
// can never observe a later mutation.
type SessionSnapshot struct {
	Session       Session                `json:"session"`
	Files         []*FileEntry           `json:"files,omitempty"`
	OpenFiles     []OpenFile             `json:"open_files,omitempty"`
	ExpandedPaths []string               `json:"expanded_paths,omitempty"`
	ActiveFile    string                 `json:"active_file,omitempty"`
	Root          *LayoutNode            `json:"root,omitempty"`
	Groups        map[string]*PanelGroup `json:"groups,omitempty"`
}

// WorkspaceSnapshot is the consolidated view of the whole workspace.
// Sessions appear in tab order.
type WorkspaceSnapshot struct {
	Sessions        []SessionSnapshot  `json:"sessions"`
	ActiveSessionID string             `json:"active_session_id,omitempty"`
	Connections     []ActiveConnection `json:"connections,omitempty"`
}

// Active returns the snapshot of the active session, if any.
func (w WorkspaceSnapshot) Active() (SessionSnapshot, bool) {
	if w.ActiveSessionID == "" {
		return SessionSnapshot{}, false
	}
	for _, s := range w.Sessions {
		if s.Session.ID == w.ActiveSessionID {
			return s, true
		}
	}
	return SessionSnapshot{}, false
}
