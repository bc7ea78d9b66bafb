package types

import "time"

// FileEntry mirrors one remote filesystem node at the time it was listed.
// Children is populated lazily when a directory is expanded and is nil until
// then.
type FileEntry struct {
	Path        string       `json:"path"`
	Name        string       `json:"name"`
	IsDir       bool         `json:"is_dir"`
	Size        int64        `json:"size"`
	Mtime       time.Time    `json:"mtime"`
	Permissions string       `json:"permissions,omitempty"`
	Children    []*FileEntry `json:"children,omitempty"`
}

func (e *FileEntry) Clone() *FileEntry {
	if e == nil {
		return nil
	}
	out := *e
	if e.Children != nil {
		out.Children = make([]*FileEntry, 0, len(e.Children))
		for _, child := range e.Children {
			out.Children = append(out.Children, child.Clone())
		}
	}
	return &out
}

// RemoteCheck is the result of the most recent reconciliation poll for one
// open file. A nil RemoteCheck means the file has never been reconciled
// since its baseline was taken. Missing and Changed are mutually exclusive:
// a file that no longer exists remotely is reported as missing, not changed.
type RemoteCheck struct {
	LastCheckedAt   time.Time `json:"last_checked_at"`
	ServerMtime     time.Time `json:"server_mtime"`
	ServerSize      int64     `json:"server_size"`
	Changed         bool      `json:"changed"`
	UpdateAvailable bool      `json:"update_available"`
	Missing         bool      `json:"missing"`
}

// OpenFile is a locally held editing buffer. RemoteMtime and RemoteSize are
// the remote metadata captured when the buffer was loaded (or last saved);
// staleness is always judged against that baseline.
type OpenFile struct {
	Path        string       `json:"path"`
	Content     string       `json:"content"`
	Language    string       `json:"language,omitempty"`
	Dirty       bool         `json:"dirty"`
	RemoteMtime time.Time    `json:"remote_mtime"`
	RemoteSize  int64        `json:"remote_size"`
	Check       *RemoteCheck `json:"check,omitempty"`
}

func (f OpenFile) Clone() OpenFile {
	out := f
	if f.Check != nil {
		check := *f.Check
		out.Check = &check
	}
	return out
}

// Conflict reports whether the remote file changed underneath unsaved local
// edits. Resolution is a caller decision.
func (f OpenFile) Conflict() bool {
	return f.Dirty && f.Check != nil && f.Check.Changed
}
