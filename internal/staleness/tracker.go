// Package staleness tracks one session's open file buffers against the
// remote metadata they were loaded from. It only detects and classifies
// drift; resolving a conflict between local and remote edits is the
// caller's decision.
package staleness

import (
	"errors"
	"sort"
	"sync"
	"time"

	"drift/internal/types"
)

var (
	ErrFileNotOpen     = errors.New("file is not open")
	ErrFileAlreadyOpen = errors.New("file is already open")
	// ErrCheckSuperseded marks a reconciliation result that arrived after a
	// newer check, edit, or save for the same file. Superseded results are
	// discarded, never applied.
	ErrCheckSuperseded = errors.New("reconciliation superseded")
)

type Tracker struct {
	mu    sync.Mutex
	files map[string]*tracked
	now   func() time.Time
}

type tracked struct {
	file types.OpenFile
	// issued and applied implement the per-file monotonic ordering guard:
	// a check begun before a later edit or save carries a sequence that is
	// already surpassed when its result arrives.
	issued  uint64
	applied uint64
}

func NewTracker() *Tracker {
	return &Tracker{files: map[string]*tracked{}, now: time.Now}
}

// SetClock overrides the reconciliation timestamp source. Intended for tests.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// Load registers a freshly read buffer. The file starts clean with no
// reconciliation record; mtime and size become the staleness baseline.
func (t *Tracker) Load(path, content, language string, mtime time.Time, size int64) (types.OpenFile, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.files[path]; ok {
		return types.OpenFile{}, ErrFileAlreadyOpen
	}
	tr := &tracked{file: types.OpenFile{
		Path:        path,
		Content:     content,
		Language:    language,
		RemoteMtime: mtime,
		RemoteSize:  size,
	}}
	t.files[path] = tr
	return tr.file.Clone(), nil
}

// Edit replaces the buffer content and marks it dirty. Staleness fields are
// untouched; in-flight checks begun before the edit are invalidated.
func (t *Tracker) Edit(path, content string) (types.OpenFile, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tr, ok := t.files[path]
	if !ok {
		return types.OpenFile{}, ErrFileNotOpen
	}
	tr.file.Content = content
	tr.file.Dirty = true
	tr.applied = tr.issued
	return tr.file.Clone(), nil
}

// BeginCheck issues the ordering token for one reconciliation poll. The
// caller stats the remote file and feeds the result to Reconcile with the
// same token.
func (t *Tracker) BeginCheck(path string) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tr, ok := t.files[path]
	if !ok {
		return 0, ErrFileNotOpen
	}
	tr.issued++
	return tr.issued, nil
}

// Reconcile applies one poll result. Results carrying a sequence at or below
// the last applied one are discarded with ErrCheckSuperseded. Repeated calls
// with unchanged server metadata leave the classification unchanged.
func (t *Tracker) Reconcile(path string, seq uint64, serverMtime time.Time, serverSize int64, serverExists bool) (types.OpenFile, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tr, ok := t.files[path]
	if !ok {
		return types.OpenFile{}, ErrFileNotOpen
	}
	if seq <= tr.applied {
		return tr.file.Clone(), ErrCheckSuperseded
	}
	tr.applied = seq

	check := types.RemoteCheck{
		LastCheckedAt: t.now(),
		ServerMtime:   serverMtime,
		ServerSize:    serverSize,
	}
	if !serverExists {
		// A missing file is reported as missing, never as merely changed.
		check.Missing = true
	} else {
		check.Changed = !serverMtime.Equal(tr.file.RemoteMtime) || serverSize != tr.file.RemoteSize
		check.UpdateAvailable = check.Changed && !tr.file.Dirty
	}
	tr.file.Check = &check
	return tr.file.Clone(), nil
}

// Save records a successful remote write of savedContent: the new server
// metadata becomes the baseline and the reconciliation record is dropped.
// The buffer is clean only if it still holds exactly what was written; an
// edit that landed while the write was in flight keeps it dirty, so no
// unsaved content is ever marked clean. Checks begun before the save are
// invalidated.
func (t *Tracker) Save(path, savedContent string, newMtime time.Time, newSize int64) (types.OpenFile, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tr, ok := t.files[path]
	if !ok {
		return types.OpenFile{}, ErrFileNotOpen
	}
	tr.file.Dirty = tr.file.Content != savedContent
	tr.file.RemoteMtime = newMtime
	tr.file.RemoteSize = newSize
	tr.file.Check = nil
	tr.applied = tr.issued
	return tr.file.Clone(), nil
}

// Close forgets the buffer. Unsaved content is the caller's to preserve.
func (t *Tracker) Close(path string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.files[path]; !ok {
		return ErrFileNotOpen
	}
	delete(t.files, path)
	return nil
}

func (t *Tracker) Get(path string) (types.OpenFile, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	tr, ok := t.files[path]
	if !ok {
		return types.OpenFile{}, false
	}
	return tr.file.Clone(), true
}

// List returns every open file ordered by path.
func (t *Tracker) List() []types.OpenFile {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]types.OpenFile, 0, len(t.files))
	for _, tr := range t.files {
		out = append(out, tr.file.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Paths returns the open file paths ordered by path.
func (t *Tracker) Paths() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.files))
	for path := range t.files {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}
