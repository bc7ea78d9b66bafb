package workspace

import (
	"context"
	"errors"
	"path"
	"strings"

	"drift/internal/logging"
	"drift/internal/staleness"
	"drift/internal/types"
)

// OpenFile reads the remote file and registers it as an open buffer with an
// editor panel. Opening an already-open file only focuses it.
func (r *Registry) OpenFile(ctx context.Context, sessionID, filePath string) (types.OpenFile, error) {
	r.mu.Lock()
	state, err := r.state(sessionID)
	if err != nil {
		r.mu.Unlock()
		return types.OpenFile{}, err
	}
	connectionID := state.session.ConnectionID
	if file, ok := state.files.Get(filePath); ok {
		r.focusFileLocked(state, filePath)
		r.mu.Unlock()
		return file, nil
	}
	r.mu.Unlock()

	channel, err := r.conns.Channel(connectionID)
	if err != nil {
		return types.OpenFile{}, unavailableError("connection not usable", err)
	}
	data, stat, err := channel.Read(ctx, filePath)
	if err != nil {
		return types.OpenFile{}, unavailableError("remote read failed", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	state, err = r.state(sessionID)
	if err != nil {
		return types.OpenFile{}, err
	}
	file, err := state.files.Load(filePath, string(data), detectLanguage(filePath), stat.Mtime, stat.Size)
	if err != nil {
		if errors.Is(err, staleness.ErrFileAlreadyOpen) {
			r.focusFileLocked(state, filePath)
			file, _ = state.files.Get(filePath)
			return file, nil
		}
		return types.OpenFile{}, invalidError("open failed", err)
	}

	groupID, err := r.targetGroupLocked(state)
	if err != nil {
		return types.OpenFile{}, err
	}
	panel := &types.Panel{
		ID:       r.newID("panel"),
		Type:     types.PanelTypeEditor,
		Title:    path.Base(filePath),
		FilePath: filePath,
	}
	if err := state.layout.AddPanel(groupID, panel); err != nil {
		return types.OpenFile{}, invalidError("panel placement failed", err)
	}
	state.activeFile = filePath
	return file, nil
}

// EditFile replaces the buffer content, marking it dirty. Staleness fields
// are untouched.
func (r *Registry) EditFile(sessionID, filePath, content string) (types.OpenFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, err := r.state(sessionID)
	if err != nil {
		return types.OpenFile{}, err
	}
	file, err := state.files.Edit(filePath, content)
	if err != nil {
		return types.OpenFile{}, notFoundError("file not open", err)
	}
	return file, nil
}

// SaveFile writes the buffer to the remote side and resets its staleness
// baseline. A buffer whose remote counterpart changed underneath local edits
// is refused unless force is set; the conflict is the caller's to resolve.
// An edit applied while the remote write is in flight leaves the buffer
// dirty: only the content actually written is marked saved.
func (r *Registry) SaveFile(ctx context.Context, sessionID, filePath string, force bool) (types.OpenFile, error) {
	r.mu.Lock()
	state, err := r.state(sessionID)
	if err != nil {
		r.mu.Unlock()
		return types.OpenFile{}, err
	}
	file, ok := state.files.Get(filePath)
	if !ok {
		r.mu.Unlock()
		return types.OpenFile{}, notFoundError("file not open", nil)
	}
	if file.Conflict() && !force {
		r.mu.Unlock()
		return types.OpenFile{}, conflictError("remote file changed since load", nil)
	}
	connectionID := state.session.ConnectionID
	r.mu.Unlock()

	channel, err := r.conns.Channel(connectionID)
	if err != nil {
		return types.OpenFile{}, unavailableError("connection not usable", err)
	}
	stat, err := channel.Write(ctx, filePath, []byte(file.Content))
	if err != nil {
		return types.OpenFile{}, unavailableError("remote write failed", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	state, err = r.state(sessionID)
	if err != nil {
		return types.OpenFile{}, err
	}
	saved, err := state.files.Save(filePath, file.Content, stat.Mtime, stat.Size)
	if err != nil {
		return types.OpenFile{}, notFoundError("file not open", err)
	}
	r.logger.Debug("file saved",
		logging.F("session", sessionID),
		logging.F("path", filePath))
	return saved, nil
}

// ReconcileFile polls the remote metadata for one open file and applies the
// classification. Results superseded by a newer edit, save, or poll are
// discarded; the current record is returned either way.
func (r *Registry) ReconcileFile(ctx context.Context, sessionID, filePath string) (types.OpenFile, error) {
	r.mu.Lock()
	state, err := r.state(sessionID)
	if err != nil {
		r.mu.Unlock()
		return types.OpenFile{}, err
	}
	connectionID := state.session.ConnectionID
	tracker := state.files
	r.mu.Unlock()

	seq, err := tracker.BeginCheck(filePath)
	if err != nil {
		return types.OpenFile{}, notFoundError("file not open", err)
	}
	channel, err := r.conns.Channel(connectionID)
	if err != nil {
		return types.OpenFile{}, unavailableError("connection not usable", err)
	}
	stat, err := channel.Stat(ctx, filePath)
	if err != nil {
		return types.OpenFile{}, unavailableError("remote stat failed", err)
	}
	file, err := tracker.Reconcile(filePath, seq, stat.Mtime, stat.Size, stat.Exists)
	if err != nil && !errors.Is(err, staleness.ErrCheckSuperseded) {
		return types.OpenFile{}, notFoundError("file not open", err)
	}
	return file, nil
}

// CloseFile forgets the buffer and closes its editor panel. Unsaved content
// is dropped only on this explicit user action.
func (r *Registry) CloseFile(sessionID, filePath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, err := r.state(sessionID)
	if err != nil {
		return err
	}
	if err := state.files.Close(filePath); err != nil {
		return notFoundError("file not open", err)
	}
	for _, panel := range state.layout.Panels() {
		if panel.Type == types.PanelTypeEditor && panel.FilePath == filePath {
			if err := state.layout.ClosePanel(panel.ID); err != nil {
				return invalidError("panel close failed", err)
			}
			break
		}
	}
	if state.activeFile == filePath {
		state.activeFile = ""
		if paths := state.files.Paths(); len(paths) > 0 {
			state.activeFile = paths[0]
		}
	}
	return nil
}

// ListDirectory fetches one level of the remote tree. Listing the project
// root replaces the tree; listing a nested directory populates that entry's
// children lazily and marks it expanded.
func (r *Registry) ListDirectory(ctx context.Context, sessionID, dirPath string) ([]*types.FileEntry, error) {
	r.mu.Lock()
	state, err := r.state(sessionID)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	connectionID := state.session.ConnectionID
	projectRoot := state.session.ProjectRoot
	r.mu.Unlock()

	channel, err := r.conns.Channel(connectionID)
	if err != nil {
		return nil, unavailableError("connection not usable", err)
	}
	entries, err := channel.List(ctx, dirPath)
	if err != nil {
		return nil, unavailableError("remote list failed", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	state, err = r.state(sessionID)
	if err != nil {
		return nil, err
	}
	if dirPath == projectRoot {
		state.tree = entries
	} else if target := findEntry(state.tree, dirPath); target != nil {
		target.Children = entries
	}
	state.expanded[dirPath] = true

	out := make([]*types.FileEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.Clone())
	}
	return out, nil
}

// CollapseDirectory hides a directory's children without discarding the
// cached listing.
func (r *Registry) CollapseDirectory(sessionID, dirPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, err := r.state(sessionID)
	if err != nil {
		return err
	}
	delete(state.expanded, dirPath)
	return nil
}

// SetActiveFile moves the session's active-file pointer.
func (r *Registry) SetActiveFile(sessionID, filePath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, err := r.state(sessionID)
	if err != nil {
		return err
	}
	if _, ok := state.files.Get(filePath); !ok {
		return notFoundError("file not open", nil)
	}
	r.focusFileLocked(state, filePath)
	return nil
}

func (r *Registry) focusFileLocked(state *sessionState, filePath string) {
	state.activeFile = filePath
	for _, panel := range state.layout.Panels() {
		if panel.Type == types.PanelTypeEditor && panel.FilePath == filePath {
			groupID := r.groupOfPanelLocked(state, panel.ID)
			if groupID != "" {
				_ = state.layout.SetActivePanel(groupID, panel.ID)
			}
			return
		}
	}
}

func (r *Registry) groupOfPanelLocked(state *sessionState, panelID string) string {
	for groupID, group := range state.layout.Groups() {
		for _, panel := range group.Panels {
			if panel.ID == panelID {
				return groupID
			}
		}
	}
	return ""
}

// targetGroupLocked picks the group a new panel lands in: the group of the
// active file's panel, else the first group in tree order, creating the root
// group on an empty layout.
func (r *Registry) targetGroupLocked(state *sessionState) (string, error) {
	if state.layout.Empty() {
		groupID := r.newID("grp")
		if err := state.layout.OpenRootGroup(groupID); err != nil {
			return "", invalidError("layout initialization failed", err)
		}
		return groupID, nil
	}
	if state.activeFile != "" {
		for _, panel := range state.layout.Panels() {
			if panel.Type == types.PanelTypeEditor && panel.FilePath == state.activeFile {
				if groupID := r.groupOfPanelLocked(state, panel.ID); groupID != "" {
					return groupID, nil
				}
			}
		}
	}
	ids := state.layout.GroupIDs()
	return ids[0], nil
}

func findEntry(entries []*types.FileEntry, target string) *types.FileEntry {
	for _, entry := range entries {
		if entry.Path == target {
			return entry
		}
		if entry.IsDir && strings.HasPrefix(target, entry.Path+"/") {
			if found := findEntry(entry.Children, target); found != nil {
				return found
			}
		}
	}
	return nil
}

func detectLanguage(filePath string) string {
	switch strings.ToLower(path.Ext(filePath)) {
	case ".go":
		return "go"
	case ".rs":
		return "rust"
	case ".ts", ".tsx":
		return "typescript"
	case ".js", ".jsx":
		return "javascript"
	case ".py":
		return "python"
	case ".rb":
		return "ruby"
	case ".sh":
		return "shell"
	case ".md":
		return "markdown"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".toml":
		return "toml"
	case ".html":
		return "html"
	case ".css":
		return "css"
	case ".sql":
		return "sql"
	case ".c", ".h":
		return "c"
	case ".cc", ".cpp", ".hpp":
		return "cpp"
	default:
		return ""
	}
}
