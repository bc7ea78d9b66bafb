package workspace

import (
	"context"

	"drift/internal/logging"
	"drift/internal/types"
)

// SplitGroup divides a group's area in the given direction and returns the
// identifier of the new empty group.
func (r *Registry) SplitGroup(sessionID, groupID string, direction types.SplitDirection) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, err := r.state(sessionID)
	if err != nil {
		return "", err
	}
	newGroupID := r.newID("grp")
	if err := state.layout.Split(groupID, direction, newGroupID); err != nil {
		return "", invalidError("split failed", err)
	}
	return newGroupID, nil
}

// ClosePanel removes a panel from the layout and releases the resource
// behind it: the open buffer for an editor panel, the terminal for a
// terminal panel.
func (r *Registry) ClosePanel(ctx context.Context, sessionID, panelID string) error {
	r.mu.Lock()
	state, err := r.state(sessionID)
	if err != nil {
		r.mu.Unlock()
		return err
	}
	var closed *types.Panel
	for _, panel := range state.layout.Panels() {
		if panel.ID == panelID {
			closed = panel
			break
		}
	}
	if closed == nil {
		r.mu.Unlock()
		return notFoundError("panel not found", nil)
	}
	if err := state.layout.ClosePanel(panelID); err != nil {
		r.mu.Unlock()
		return invalidError("panel close failed", err)
	}
	var releaseTerminal string
	switch closed.Type {
	case types.PanelTypeEditor:
		if err := state.files.Close(closed.FilePath); err == nil && state.activeFile == closed.FilePath {
			state.activeFile = ""
			if paths := state.files.Paths(); len(paths) > 0 {
				state.activeFile = paths[0]
			}
		}
	case types.PanelTypeTerminal:
		releaseTerminal = closed.TerminalID
		ids := state.session.TerminalIDs[:0]
		for _, id := range state.session.TerminalIDs {
			if id != closed.TerminalID {
				ids = append(ids, id)
			}
		}
		state.session.TerminalIDs = ids
	}
	r.mu.Unlock()

	if releaseTerminal != "" {
		if err := r.terminals.Release(ctx, releaseTerminal); err != nil {
			r.logger.Warn("terminal release failed",
				logging.F("terminal", releaseTerminal),
				logging.F("err", err))
		}
	}
	return nil
}

// MovePanel relocates a panel between groups, or within its group when the
// source and destination match.
func (r *Registry) MovePanel(sessionID, panelID, fromGroupID, toGroupID string, index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, err := r.state(sessionID)
	if err != nil {
		return err
	}
	if err := state.layout.MovePanel(panelID, fromGroupID, toGroupID, index); err != nil {
		return invalidError("move failed", err)
	}
	return nil
}

// ResizeSplit replaces the size ratios of the split node addressed by a
// child-index path from the root.
func (r *Registry) ResizeSplit(sessionID string, nodePath []int, sizes []float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, err := r.state(sessionID)
	if err != nil {
		return err
	}
	if err := state.layout.Resize(nodePath, sizes); err != nil {
		return invalidError("resize failed", err)
	}
	return nil
}

// SetActivePanel moves a group's active-panel pointer.
func (r *Registry) SetActivePanel(sessionID, groupID, panelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, err := r.state(sessionID)
	if err != nil {
		return err
	}
	if err := state.layout.SetActivePanel(groupID, panelID); err != nil {
		return invalidError("activate failed", err)
	}
	return nil
}

// OpenTerminal creates a terminal on the session's connection and places a
// panel for it. An empty groupID targets the active file's group, or the
// first group, creating the root group on an empty layout.
func (r *Registry) OpenTerminal(ctx context.Context, sessionID, groupID string) (*types.Panel, error) {
	r.mu.Lock()
	state, err := r.state(sessionID)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	connectionID := state.session.ConnectionID
	r.mu.Unlock()

	terminalID, err := r.terminals.Create(ctx, connectionID)
	if err != nil {
		return nil, unavailableError("terminal create failed", err)
	}

	r.mu.Lock()
	state, err = r.state(sessionID)
	if err != nil {
		r.mu.Unlock()
		releaseErr := r.terminals.Release(ctx, terminalID)
		if releaseErr != nil {
			r.logger.Warn("terminal release failed",
				logging.F("terminal", terminalID),
				logging.F("err", releaseErr))
		}
		return nil, err
	}
	defer r.mu.Unlock()
	if groupID == "" {
		groupID, err = r.targetGroupLocked(state)
		if err != nil {
			return nil, err
		}
	}
	panel := &types.Panel{
		ID:         r.newID("panel"),
		Type:       types.PanelTypeTerminal,
		Title:      "shell",
		TerminalID: terminalID,
	}
	if err := state.layout.AddPanel(groupID, panel); err != nil {
		return nil, invalidError("panel placement failed", err)
	}
	state.session.TerminalIDs = append(state.session.TerminalIDs, terminalID)
	return panel.Clone(), nil
}
