package workspace

import (
	"context"
	"errors"
	"testing"
	"time"

	"drift/internal/mux"
	"drift/internal/terminal"
	"drift/internal/transport"
	"drift/internal/types"
)

func testProfile(name, host string) types.ConnectionProfile {
	return types.ConnectionProfile{
		ID:         "prof-" + name,
		Name:       name,
		Host:       host,
		Port:       22,
		Username:   "dev",
		AuthMethod: types.AuthMethodKey,
	}
}

type testHarness struct {
	memory   *transport.Memory
	conns    *mux.Manager
	registry *Registry
}

func newHarness(t *testing.T, autoReconnect bool) *testHarness {
	t.Helper()
	memory := transport.NewMemory()
	conns := mux.NewManager(memory, autoReconnect, nil)
	return &testHarness{
		memory:   memory,
		conns:    conns,
		registry: NewRegistry(conns, terminal.NewRegistry(), nil),
	}
}

func (h *testHarness) openSession(t *testing.T, profile types.ConnectionProfile, root string) types.Session {
	t.Helper()
	session, err := h.registry.OpenSession(context.Background(), profile, root)
	if err != nil {
		t.Fatalf("open session: %v", err)
	}
	return session
}

func TestSessionsShareConnection(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)
	h.memory.AddHost("build.example.com", 22)
	profile := testProfile("build", "build.example.com")

	a := h.openSession(t, profile, "/srv/app")
	b := h.openSession(t, profile, "/srv/api")
	if a.ConnectionID != b.ConnectionID {
		t.Fatalf("sessions for one profile must share a connection: %q %q", a.ConnectionID, b.ConnectionID)
	}
	if got := h.memory.DialCount("build.example.com", 22); got != 1 {
		t.Fatalf("dial count = %d, want 1", got)
	}
	conn, ok := h.conns.Get(a.ConnectionID)
	if !ok || conn.SessionCount != 2 {
		t.Fatalf("session count = %d, want 2", conn.SessionCount)
	}

	if err := h.registry.CloseSession(ctx, a.ID); err != nil {
		t.Fatalf("close session: %v", err)
	}
	conn, ok = h.conns.Get(b.ConnectionID)
	if !ok || conn.SessionCount != 1 {
		t.Fatalf("after first close: count = %d, want 1", conn.SessionCount)
	}

	if err := h.registry.CloseSession(ctx, b.ID); err != nil {
		t.Fatalf("close session: %v", err)
	}
	if _, ok := h.conns.Get(b.ConnectionID); ok {
		t.Fatalf("connection must be torn down at zero sessions")
	}
}

func TestCloseSessionRepairsActivePointer(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)
	h.memory.AddHost("build.example.com", 22)
	profile := testProfile("build", "build.example.com")

	a := h.openSession(t, profile, "/srv/a")
	b := h.openSession(t, profile, "/srv/b")
	c := h.openSession(t, profile, "/srv/c")

	if err := h.registry.SetActive(b.ID); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if err := h.registry.CloseSession(ctx, b.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := h.registry.ActiveSessionID(); got != c.ID {
		t.Fatalf("active after closing middle tab = %q, want %q", got, c.ID)
	}

	if err := h.registry.CloseSession(ctx, c.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := h.registry.ActiveSessionID(); got != a.ID {
		t.Fatalf("active after closing last tab = %q, want %q", got, a.ID)
	}

	if err := h.registry.CloseSession(ctx, a.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := h.registry.ActiveSessionID(); got != "" {
		t.Fatalf("active in empty workspace = %q, want empty", got)
	}
}

func TestReorder(t *testing.T) {
	h := newHarness(t, false)
	h.memory.AddHost("build.example.com", 22)
	profile := testProfile("build", "build.example.com")

	a := h.openSession(t, profile, "/srv/a")
	b := h.openSession(t, profile, "/srv/b")
	c := h.openSession(t, profile, "/srv/c")

	if err := h.registry.SetActive(b.ID); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if err := h.registry.Reorder([]string{c.ID, a.ID, b.ID}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if got := h.registry.Order(); got[0] != c.ID || got[1] != a.ID || got[2] != b.ID {
		t.Fatalf("order = %v", got)
	}
	if got := h.registry.ActiveSessionID(); got != b.ID {
		t.Fatalf("reorder must not move the active pointer: %q", got)
	}

	cases := [][]string{
		{a.ID, b.ID},
		{a.ID, b.ID, b.ID},
		{a.ID, b.ID, "sess-unknown"},
	}
	for _, bad := range cases {
		if err := h.registry.Reorder(bad); err == nil {
			t.Fatalf("reorder %v must be rejected", bad)
		} else if KindOf(err) != ServiceErrorInvalid {
			t.Fatalf("reorder %v kind = %q", bad, KindOf(err))
		}
	}
	if got := h.registry.Order(); got[0] != c.ID || got[1] != a.ID || got[2] != b.ID {
		t.Fatalf("rejected reorder must leave order unchanged: %v", got)
	}
}

func TestOpenEditSaveFile(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)
	h.memory.AddHost("build.example.com", 22)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	h.memory.PutFile("build.example.com", 22, "/srv/app/main.go", "package main\n", base)
	profile := testProfile("build", "build.example.com")
	session := h.openSession(t, profile, "/srv/app")

	file, err := h.registry.OpenFile(ctx, session.ID, "/srv/app/main.go")
	if err != nil {
		t.Fatalf("open file: %v", err)
	}
	if file.Dirty || file.Language != "go" || file.Content != "package main\n" {
		t.Fatalf("opened file: %+v", file)
	}

	snapshot, err := h.registry.SessionSnapshot(session.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snapshot.Root == nil || snapshot.Root.Kind != types.LayoutNodeLeaf {
		t.Fatalf("opening the first file must create the root group")
	}
	group := snapshot.Groups[snapshot.Root.GroupID]
	if len(group.Panels) != 1 || group.Panels[0].FilePath != "/srv/app/main.go" {
		t.Fatalf("editor panel missing: %+v", group)
	}
	if snapshot.ActiveFile != "/srv/app/main.go" {
		t.Fatalf("active file = %q", snapshot.ActiveFile)
	}

	if _, err := h.registry.EditFile(session.ID, "/srv/app/main.go", "package main\n\nfunc main() {}\n"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	saved, err := h.registry.SaveFile(ctx, session.ID, "/srv/app/main.go", false)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Dirty {
		t.Fatalf("save must clear dirty")
	}
	if saved.Check != nil {
		t.Fatalf("save must clear the staleness record")
	}
}

func TestSaveRefusesConflict(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)
	h.memory.AddHost("build.example.com", 22)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	h.memory.PutFile("build.example.com", 22, "/srv/app/main.go", "v1", base)
	profile := testProfile("build", "build.example.com")
	session := h.openSession(t, profile, "/srv/app")

	if _, err := h.registry.OpenFile(ctx, session.ID, "/srv/app/main.go"); err != nil {
		t.Fatalf("open file: %v", err)
	}
	if _, err := h.registry.EditFile(session.ID, "/srv/app/main.go", "local edit"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	h.memory.PutFile("build.example.com", 22, "/srv/app/main.go", "remote edit", base.Add(time.Minute))

	file, err := h.registry.ReconcileFile(ctx, session.ID, "/srv/app/main.go")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if file.Check == nil || !file.Check.Changed || file.Check.UpdateAvailable {
		t.Fatalf("dirty buffer over changed remote must be a conflict: %+v", file.Check)
	}

	if _, err := h.registry.SaveFile(ctx, session.ID, "/srv/app/main.go", false); KindOf(err) != ServiceErrorConflict {
		t.Fatalf("save without force: %v", err)
	}
	saved, err := h.registry.SaveFile(ctx, session.ID, "/srv/app/main.go", true)
	if err != nil {
		t.Fatalf("forced save: %v", err)
	}
	if saved.Dirty || saved.Check != nil {
		t.Fatalf("forced save must reset the buffer: %+v", saved)
	}
}

func TestSaveKeepsEditDuringWriteDirty(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)
	h.memory.AddHost("build.example.com", 22)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	h.memory.PutFile("build.example.com", 22, "/srv/app/main.go", "v1", base)
	profile := testProfile("build", "build.example.com")
	session := h.openSession(t, profile, "/srv/app")

	if _, err := h.registry.OpenFile(ctx, session.ID, "/srv/app/main.go"); err != nil {
		t.Fatalf("open file: %v", err)
	}
	if _, err := h.registry.EditFile(session.ID, "/srv/app/main.go", "v2"); err != nil {
		t.Fatalf("edit: %v", err)
	}

	// Another edit lands while the save's remote write is in flight.
	h.memory.SetWriteHook("build.example.com", 22, func(string) {
		if _, err := h.registry.EditFile(session.ID, "/srv/app/main.go", "v3"); err != nil {
			t.Errorf("interleaved edit: %v", err)
		}
	})
	saved, err := h.registry.SaveFile(ctx, session.ID, "/srv/app/main.go", false)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved.Content != "v3" {
		t.Fatalf("save must not roll back the newer edit: %q", saved.Content)
	}
	if !saved.Dirty {
		t.Fatalf("buffer holding an unwritten edit must stay dirty: %+v", saved)
	}

	h.memory.SetWriteHook("build.example.com", 22, nil)
	saved, err = h.registry.SaveFile(ctx, session.ID, "/srv/app/main.go", false)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if saved.Dirty {
		t.Fatalf("save of the settled buffer must be clean: %+v", saved)
	}
}

func TestReconcileStatFailureLeavesRecord(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)
	h.memory.AddHost("build.example.com", 22)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	h.memory.PutFile("build.example.com", 22, "/srv/app/main.go", "v1", base)
	profile := testProfile("build", "build.example.com")
	session := h.openSession(t, profile, "/srv/app")

	if _, err := h.registry.OpenFile(ctx, session.ID, "/srv/app/main.go"); err != nil {
		t.Fatalf("open file: %v", err)
	}
	h.memory.SetStatError("build.example.com", 22, "/srv/app/main.go", errors.New("permission denied"))
	if _, err := h.registry.ReconcileFile(ctx, session.ID, "/srv/app/main.go"); KindOf(err) != ServiceErrorUnavailable {
		t.Fatalf("failed stat must be unavailable, got %v", err)
	}
	snapshot, err := h.registry.SessionSnapshot(session.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snapshot.OpenFiles) != 1 || snapshot.OpenFiles[0].Check != nil {
		t.Fatalf("failed poll must not leave a partial record: %+v", snapshot.OpenFiles)
	}

	h.memory.SetStatError("build.example.com", 22, "/srv/app/main.go", nil)
	file, err := h.registry.ReconcileFile(ctx, session.ID, "/srv/app/main.go")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if file.Check == nil || file.Check.Changed {
		t.Fatalf("unchanged remote after recovery: %+v", file.Check)
	}
}

func TestReconnectReturnsOpenFilesWithoutMarkingChanged(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, true)
	h.memory.AddHost("build.example.com", 22)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	h.memory.PutFile("build.example.com", 22, "/srv/app/main.go", "v1", base)
	h.memory.PutFile("build.example.com", 22, "/srv/app/go.mod", "module app\n", base)
	profile := testProfile("build", "build.example.com")
	session := h.openSession(t, profile, "/srv/app")

	for _, path := range []string{"/srv/app/main.go", "/srv/app/go.mod"} {
		if _, err := h.registry.OpenFile(ctx, session.ID, path); err != nil {
			t.Fatalf("open %s: %v", path, err)
		}
	}

	if err := h.registry.HandleConnectionLost(session.ConnectionID, "broken pipe"); err != nil {
		t.Fatalf("connection lost: %v", err)
	}
	got, _ := h.registry.Session(session.ID)
	if got.Status != types.ConnectionStatusReconnecting {
		t.Fatalf("session status after loss = %q, want reconnecting", got.Status)
	}

	targets, err := h.registry.Reconnect(ctx, session.ConnectionID)
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if len(targets) != 2 {
		t.Fatalf("targets = %v, want both open files", targets)
	}
	got, _ = h.registry.Session(session.ID)
	if got.Status != types.ConnectionStatusConnected {
		t.Fatalf("session status after reconnect = %q", got.Status)
	}

	snapshot, err := h.registry.SessionSnapshot(session.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	for _, file := range snapshot.OpenFiles {
		if file.Check != nil {
			t.Fatalf("reconnect alone must not mark %s: %+v", file.Path, file.Check)
		}
	}

	for _, target := range targets {
		if _, err := h.registry.ReconcileFile(ctx, target.SessionID, target.Path); err != nil {
			t.Fatalf("reconcile %s: %v", target.Path, err)
		}
	}
	snapshot, _ = h.registry.SessionSnapshot(session.ID)
	for _, file := range snapshot.OpenFiles {
		if file.Check == nil || file.Check.Changed {
			t.Fatalf("unchanged remote after reconcile: %+v", file.Check)
		}
	}
}

func TestConnectionLostWithoutAutoReconnect(t *testing.T) {
	h := newHarness(t, false)
	h.memory.AddHost("build.example.com", 22)
	profile := testProfile("build", "build.example.com")
	session := h.openSession(t, profile, "/srv/app")

	if err := h.registry.HandleConnectionLost(session.ConnectionID, "timeout"); err != nil {
		t.Fatalf("connection lost: %v", err)
	}
	got, _ := h.registry.Session(session.ID)
	if got.Status != types.ConnectionStatusDisconnected {
		t.Fatalf("status = %q, want disconnected", got.Status)
	}
	conn, _ := h.conns.Get(session.ConnectionID)
	if conn.LastDisconnectDetail != "timeout" {
		t.Fatalf("detail = %q", conn.LastDisconnectDetail)
	}
}

func TestClosePanelReleasesResources(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)
	h.memory.AddHost("build.example.com", 22)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	h.memory.PutFile("build.example.com", 22, "/srv/app/main.go", "v1", base)
	profile := testProfile("build", "build.example.com")
	session := h.openSession(t, profile, "/srv/app")

	if _, err := h.registry.OpenFile(ctx, session.ID, "/srv/app/main.go"); err != nil {
		t.Fatalf("open file: %v", err)
	}
	termPanel, err := h.registry.OpenTerminal(ctx, session.ID, "")
	if err != nil {
		t.Fatalf("open terminal: %v", err)
	}
	got, _ := h.registry.Session(session.ID)
	if len(got.TerminalIDs) != 1 || got.TerminalIDs[0] != termPanel.TerminalID {
		t.Fatalf("terminal ids = %v", got.TerminalIDs)
	}

	if err := h.registry.ClosePanel(ctx, session.ID, termPanel.ID); err != nil {
		t.Fatalf("close terminal panel: %v", err)
	}
	got, _ = h.registry.Session(session.ID)
	if len(got.TerminalIDs) != 0 {
		t.Fatalf("terminal id must be released: %v", got.TerminalIDs)
	}

	snapshot, _ := h.registry.SessionSnapshot(session.ID)
	editorPanel := snapshot.Groups[snapshot.Root.GroupID].Panels[0]
	if err := h.registry.ClosePanel(ctx, session.ID, editorPanel.ID); err != nil {
		t.Fatalf("close editor panel: %v", err)
	}
	snapshot, _ = h.registry.SessionSnapshot(session.ID)
	if len(snapshot.OpenFiles) != 0 {
		t.Fatalf("closing the editor panel must close the buffer: %v", snapshot.OpenFiles)
	}
	if snapshot.Root != nil {
		t.Fatalf("closing the last panel must empty the layout")
	}
}

func TestSplitAndMovePanels(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)
	h.memory.AddHost("build.example.com", 22)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	h.memory.PutFile("build.example.com", 22, "/srv/app/a.go", "a", base)
	h.memory.PutFile("build.example.com", 22, "/srv/app/b.go", "b", base)
	profile := testProfile("build", "build.example.com")
	session := h.openSession(t, profile, "/srv/app")

	if _, err := h.registry.OpenFile(ctx, session.ID, "/srv/app/a.go"); err != nil {
		t.Fatalf("open a: %v", err)
	}
	if _, err := h.registry.OpenFile(ctx, session.ID, "/srv/app/b.go"); err != nil {
		t.Fatalf("open b: %v", err)
	}

	snapshot, _ := h.registry.SessionSnapshot(session.ID)
	rootGroup := snapshot.Root.GroupID
	newGroup, err := h.registry.SplitGroup(session.ID, rootGroup, types.SplitVertical)
	if err != nil {
		t.Fatalf("split: %v", err)
	}

	var bPanel string
	for _, panel := range snapshot.Groups[rootGroup].Panels {
		if panel.FilePath == "/srv/app/b.go" {
			bPanel = panel.ID
		}
	}
	if err := h.registry.MovePanel(session.ID, bPanel, rootGroup, newGroup, 0); err != nil {
		t.Fatalf("move: %v", err)
	}

	snapshot, _ = h.registry.SessionSnapshot(session.ID)
	if snapshot.Root.Kind != types.LayoutNodeSplit || len(snapshot.Root.Children) != 2 {
		t.Fatalf("root after split: %+v", snapshot.Root)
	}
	if got := snapshot.Groups[newGroup].Panels; len(got) != 1 || got[0].FilePath != "/srv/app/b.go" {
		t.Fatalf("moved panel: %+v", got)
	}

	if err := h.registry.ResizeSplit(session.ID, nil, []float64{0.7, 0.3}); err != nil {
		t.Fatalf("resize: %v", err)
	}
	if err := h.registry.ResizeSplit(session.ID, nil, []float64{0.7, 0.7}); KindOf(err) != ServiceErrorInvalid {
		t.Fatalf("bad resize: %v", err)
	}
}

func TestListDirectoryBuildsTree(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)
	h.memory.AddHost("build.example.com", 22)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	h.memory.PutFile("build.example.com", 22, "/srv/app/main.go", "m", base)
	h.memory.PutFile("build.example.com", 22, "/srv/app/internal/core.go", "c", base)
	profile := testProfile("build", "build.example.com")
	session := h.openSession(t, profile, "/srv/app")

	entries, err := h.registry.ListDirectory(ctx, session.ID, "/srv/app")
	if err != nil {
		t.Fatalf("list root: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("root entries = %d, want 2", len(entries))
	}

	if _, err := h.registry.ListDirectory(ctx, session.ID, "/srv/app/internal"); err != nil {
		t.Fatalf("list subdir: %v", err)
	}
	snapshot, _ := h.registry.SessionSnapshot(session.ID)
	var internalDir *types.FileEntry
	for _, entry := range snapshot.Files {
		if entry.Name == "internal" {
			internalDir = entry
		}
	}
	if internalDir == nil || !internalDir.IsDir || len(internalDir.Children) != 1 {
		t.Fatalf("lazy children: %+v", internalDir)
	}
	if len(snapshot.ExpandedPaths) != 2 {
		t.Fatalf("expanded = %v", snapshot.ExpandedPaths)
	}

	if err := h.registry.CollapseDirectory(session.ID, "/srv/app/internal"); err != nil {
		t.Fatalf("collapse: %v", err)
	}
	snapshot, _ = h.registry.SessionSnapshot(session.ID)
	if len(snapshot.ExpandedPaths) != 1 {
		t.Fatalf("expanded after collapse = %v", snapshot.ExpandedPaths)
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, false)
	h.memory.AddHost("build.example.com", 22)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	h.memory.PutFile("build.example.com", 22, "/srv/app/main.go", "v1", base)
	profile := testProfile("build", "build.example.com")
	session := h.openSession(t, profile, "/srv/app")
	if _, err := h.registry.OpenFile(ctx, session.ID, "/srv/app/main.go"); err != nil {
		t.Fatalf("open file: %v", err)
	}

	before := h.registry.Snapshot()
	if _, err := h.registry.EditFile(session.ID, "/srv/app/main.go", "v2"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if before.Sessions[0].OpenFiles[0].Dirty {
		t.Fatalf("snapshot must not observe later mutations")
	}
	if got := before.Connections[0].SessionCount; got != 1 {
		t.Fatalf("snapshot connections: count = %d", got)
	}
	if _, ok := before.Active(); !ok {
		t.Fatalf("active session missing from snapshot")
	}
}
