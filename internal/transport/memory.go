package transport

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"drift/internal/types"
)

// Memory is an in-memory transport: a set of scriptable fake hosts keyed by
// host:port. It backs tests and the offline `drift ui` preview.
type Memory struct {
	mu    sync.Mutex
	hosts map[string]*memoryHost
	now   func() time.Time
}

type memoryHost struct {
	files     map[string]*memoryFile
	dialErr   error
	dialed    int
	statErrs  map[string]error
	writeHook func(path string)
}

type memoryFile struct {
	content []byte
	mtime   time.Time
	mode    string
}

func NewMemory() *Memory {
	return &Memory{
		hosts: map[string]*memoryHost{},
		now:   time.Now,
	}
}

// SetClock overrides the clock used for write mtimes. Intended for tests.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func hostKey(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

func (m *Memory) host(key string) *memoryHost {
	h, ok := m.hosts[key]
	if !ok {
		h = &memoryHost{files: map[string]*memoryFile{}, statErrs: map[string]error{}}
		m.hosts[key] = h
	}
	return h
}

// AddHost registers a host so dials against it succeed.
func (m *Memory) AddHost(host string, port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.host(hostKey(host, port))
}

// SetDialError makes future dials to the host fail with err (nil clears).
func (m *Memory) SetDialError(host string, port int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.host(hostKey(host, port)).dialErr = err
}

// SetStatError makes stats of one remote path fail with err (nil clears).
func (m *Memory) SetStatError(host string, port int, filePath string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.host(hostKey(host, port))
	if err == nil {
		delete(h.statErrs, path.Clean(filePath))
		return
	}
	h.statErrs[path.Clean(filePath)] = err
}

// SetWriteHook runs fn just before each write to the host is applied (nil
// clears). Lets tests interleave local mutations with an in-flight remote
// write.
func (m *Memory) SetWriteHook(host string, port int, fn func(path string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.host(hostKey(host, port)).writeHook = fn
}

// PutFile creates or replaces a remote file with an explicit mtime.
func (m *Memory) PutFile(host string, port int, filePath, content string, mtime time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := m.host(hostKey(host, port))
	h.files[path.Clean(filePath)] = &memoryFile{
		content: []byte(content),
		mtime:   mtime,
		mode:    "-rw-r--r--",
	}
}

// RemoveFile deletes a remote file; later stats report it missing.
func (m *Memory) RemoveFile(host string, port int, filePath string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.host(hostKey(host, port)).files, path.Clean(filePath))
}

// DialCount reports how many times the host was dialed.
func (m *Memory) DialCount(host string, port int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.host(hostKey(host, port)).dialed
}

func (m *Memory) Dial(ctx context.Context, profile types.ConnectionProfile) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := hostKey(profile.Host, profile.Port)
	h, ok := m.hosts[key]
	if !ok {
		return nil, fmt.Errorf("unknown host %s", key)
	}
	h.dialed++
	if h.dialErr != nil {
		return nil, h.dialErr
	}
	return &memoryConn{parent: m, key: key}, nil
}

type memoryConn struct {
	parent *Memory
	key    string
	closed bool
	mu     sync.Mutex
}

func (c *memoryConn) guard() (*Memory, *memoryHost, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, nil, ErrClosed
	}
	c.parent.mu.Lock()
	return c.parent, c.parent.host(c.key), nil
}

func (c *memoryConn) List(ctx context.Context, dir string) ([]*types.FileEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parent, h, err := c.guard()
	if err != nil {
		return nil, err
	}
	defer parent.mu.Unlock()

	dir = path.Clean(dir)
	seen := map[string]*types.FileEntry{}
	for p, f := range h.files {
		if !strings.HasPrefix(p, dir+"/") && dir != "/" {
			continue
		}
		rest := strings.TrimPrefix(p, strings.TrimSuffix(dir, "/")+"/")
		if rest == "" || rest == p {
			continue
		}
		name, _, nested := strings.Cut(rest, "/")
		child := path.Join(dir, name)
		if entry, ok := seen[child]; ok {
			entry.IsDir = entry.IsDir || nested
			continue
		}
		entry := &types.FileEntry{Path: child, Name: name, IsDir: nested}
		if !nested {
			entry.Size = int64(len(f.content))
			entry.Mtime = f.mtime
			entry.Permissions = f.mode
		}
		seen[child] = entry
	}
	out := make([]*types.FileEntry, 0, len(seen))
	for _, entry := range seen {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDir != out[j].IsDir {
			return out[i].IsDir
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (c *memoryConn) Stat(ctx context.Context, filePath string) (Stat, error) {
	if err := ctx.Err(); err != nil {
		return Stat{}, err
	}
	parent, h, err := c.guard()
	if err != nil {
		return Stat{}, err
	}
	defer parent.mu.Unlock()

	filePath = path.Clean(filePath)
	if err := h.statErrs[filePath]; err != nil {
		return Stat{}, err
	}
	f, ok := h.files[filePath]
	if !ok {
		return Stat{Exists: false}, nil
	}
	return Stat{Mtime: f.mtime, Size: int64(len(f.content)), Exists: true}, nil
}

func (c *memoryConn) Read(ctx context.Context, filePath string) ([]byte, Stat, error) {
	if err := ctx.Err(); err != nil {
		return nil, Stat{}, err
	}
	parent, h, err := c.guard()
	if err != nil {
		return nil, Stat{}, err
	}
	defer parent.mu.Unlock()

	f, ok := h.files[path.Clean(filePath)]
	if !ok {
		return nil, Stat{}, errors.New("file not found: " + filePath)
	}
	content := append([]byte(nil), f.content...)
	return content, Stat{Mtime: f.mtime, Size: int64(len(content)), Exists: true}, nil
}

func (c *memoryConn) Write(ctx context.Context, filePath string, data []byte) (Stat, error) {
	if err := ctx.Err(); err != nil {
		return Stat{}, err
	}
	c.parent.mu.Lock()
	hook := c.parent.host(c.key).writeHook
	c.parent.mu.Unlock()
	if hook != nil {
		hook(path.Clean(filePath))
	}
	parent, h, err := c.guard()
	if err != nil {
		return Stat{}, err
	}
	defer parent.mu.Unlock()

	now := parent.now()
	h.files[path.Clean(filePath)] = &memoryFile{
		content: append([]byte(nil), data...),
		mtime:   now,
		mode:    "-rw-r--r--",
	}
	return Stat{Mtime: now, Size: int64(len(data)), Exists: true}, nil
}

func (c *memoryConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
