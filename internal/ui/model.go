// Package ui renders the workspace state core as a terminal client: a tab
// strip of sessions over the active session's split-pane layout. It never
// mutates state directly; every action goes through the registry.
package ui

import (
	"context"
	"time"

	"charm.land/bubbles/v2/spinner"
	tea "charm.land/bubbletea/v2"

	"drift/internal/types"
	"drift/internal/workspace"
)

const (
	tickInterval  = 250 * time.Millisecond
	minPaneWidth  = 12
	minPaneHeight = 3
)

type tickMsg time.Time

type reconcileDoneMsg struct {
	count int
	err   error
}

type reconnectDoneMsg struct {
	connectionID string
	targets      []workspace.ReconcileTarget
	err          error
}

type copyResultMsg struct {
	err error
}

// Options carries the tunables the client honors: how often open files are
// re-statted and how hard a manual reconnect tries before giving up.
type Options struct {
	PollInterval      time.Duration
	ReconnectAttempts int
	ReconnectDelay    time.Duration
}

type Model struct {
	registry          *workspace.Registry
	snapshot          types.WorkspaceSnapshot
	width             int
	height            int
	status            string
	statusErr         bool
	focusGroup        int
	loader            spinner.Model
	pollInterval      time.Duration
	lastPoll          time.Time
	reconnectAttempts int
	reconnectDelay    time.Duration
}

func NewModel(registry *workspace.Registry, opts Options) Model {
	loader := spinner.New()
	loader.Spinner = spinner.Line
	if opts.PollInterval <= 0 {
		opts.PollInterval = 15 * time.Second
	}
	if opts.ReconnectAttempts <= 0 {
		opts.ReconnectAttempts = 1
	}
	if opts.ReconnectDelay < 0 {
		opts.ReconnectDelay = 0
	}
	return Model{
		registry:          registry,
		snapshot:          registry.Snapshot(),
		loader:            loader,
		pollInterval:      opts.PollInterval,
		reconnectAttempts: opts.ReconnectAttempts,
		reconnectDelay:    opts.ReconnectDelay,
		status:            "ready",
	}
}

func Run(registry *workspace.Registry, opts Options) error {
	model := NewModel(registry, opts)
	p := tea.NewProgram(&model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return tickCmd()
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tickMsg:
		m.snapshot = m.registry.Snapshot()
		m.loader, _ = m.loader.Update(spinner.TickMsg{Time: time.Time(msg), ID: m.loader.ID()})
		cmds := []tea.Cmd{tickCmd()}
		if cmd := m.maybePollCmd(time.Time(msg)); cmd != nil {
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	case reconcileDoneMsg:
		if msg.err != nil {
			m.setError("poll failed: " + msg.err.Error())
			return m, nil
		}
		m.snapshot = m.registry.Snapshot()
		return m, nil
	case reconnectDoneMsg:
		if msg.err != nil {
			m.setError("reconnect failed: " + msg.err.Error())
			return m, nil
		}
		m.setInfo("reconnected")
		m.snapshot = m.registry.Snapshot()
		if len(msg.targets) == 0 {
			return m, nil
		}
		return m, reconcileTargetsCmd(m.registry, msg.targets)
	case copyResultMsg:
		if msg.err != nil {
			m.setError("copy failed: " + msg.err.Error())
		} else {
			m.setInfo("path copied")
		}
		return m, nil
	case tea.KeyPressMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "tab":
		m.cycleSession(1)
		return m, nil
	case "shift+tab":
		m.cycleSession(-1)
		return m, nil
	case "o":
		m.cycleFocusGroup()
		return m, nil
	case "w":
		return m, m.closeActivePanelCmd()
	case "v":
		m.splitFocused(types.SplitVertical)
		return m, nil
	case "b":
		m.splitFocused(types.SplitHorizontal)
		return m, nil
	case "y":
		return m, m.copyActivePathCmd()
	case "R":
		return m, m.reconnectCmd()
	case "p":
		m.lastPoll = time.Time{}
		return m, nil
	}
	return m, nil
}

func (m *Model) cycleSession(delta int) {
	order := m.sessionOrder()
	if len(order) == 0 {
		return
	}
	idx := 0
	for i, id := range order {
		if id == m.snapshot.ActiveSessionID {
			idx = i
			break
		}
	}
	idx = (idx + delta + len(order)) % len(order)
	if err := m.registry.SetActive(order[idx]); err != nil {
		m.setError(err.Error())
		return
	}
	m.focusGroup = 0
	m.snapshot = m.registry.Snapshot()
}

func (m *Model) sessionOrder() []string {
	out := make([]string, 0, len(m.snapshot.Sessions))
	for _, s := range m.snapshot.Sessions {
		out = append(out, s.Session.ID)
	}
	return out
}

func (m *Model) cycleFocusGroup() {
	active, ok := m.snapshot.Active()
	if !ok || len(active.Groups) == 0 {
		return
	}
	m.focusGroup = (m.focusGroup + 1) % len(active.Groups)
}

// focusedGroupID resolves the focus index against the group ids in tree
// order, clamping when groups were closed since the last render.
func (m *Model) focusedGroupID(active types.SessionSnapshot) string {
	ids := groupIDsInOrder(active.Root)
	if len(ids) == 0 {
		return ""
	}
	if m.focusGroup >= len(ids) {
		m.focusGroup = len(ids) - 1
	}
	return ids[m.focusGroup]
}

func groupIDsInOrder(node *types.LayoutNode) []string {
	if node == nil {
		return nil
	}
	if node.Kind == types.LayoutNodeLeaf {
		return []string{node.GroupID}
	}
	var out []string
	for _, child := range node.Children {
		out = append(out, groupIDsInOrder(child)...)
	}
	return out
}

func (m *Model) splitFocused(direction types.SplitDirection) {
	active, ok := m.snapshot.Active()
	if !ok {
		return
	}
	groupID := m.focusedGroupID(active)
	if groupID == "" {
		m.setError("no group to split")
		return
	}
	if _, err := m.registry.SplitGroup(active.Session.ID, groupID, direction); err != nil {
		m.setError(err.Error())
		return
	}
	m.snapshot = m.registry.Snapshot()
}

func (m *Model) closeActivePanelCmd() tea.Cmd {
	active, ok := m.snapshot.Active()
	if !ok {
		return nil
	}
	groupID := m.focusedGroupID(active)
	group := active.Groups[groupID]
	if group == nil || group.ActivePanelID == "" {
		return nil
	}
	registry := m.registry
	sessionID := active.Session.ID
	panelID := group.ActivePanelID
	return func() tea.Msg {
		if err := registry.ClosePanel(context.Background(), sessionID, panelID); err != nil {
			return reconcileDoneMsg{err: err}
		}
		return reconcileDoneMsg{}
	}
}

func (m *Model) copyActivePathCmd() tea.Cmd {
	active, ok := m.snapshot.Active()
	if !ok || active.ActiveFile == "" {
		m.setError("no active file")
		return nil
	}
	path := active.ActiveFile
	return func() tea.Msg {
		_, err := copyTextToClipboard(path)
		return copyResultMsg{err: err}
	}
}

// reconnectCmd redials a lost connection, retrying up to the configured
// attempt count with the configured delay between tries.
func (m *Model) reconnectCmd() tea.Cmd {
	active, ok := m.snapshot.Active()
	if !ok {
		return nil
	}
	switch active.Session.Status {
	case types.ConnectionStatusDisconnected, types.ConnectionStatusReconnecting:
	default:
		m.setInfo("connection is up")
		return nil
	}
	registry := m.registry
	connectionID := active.Session.ConnectionID
	attempts := m.reconnectAttempts
	delay := m.reconnectDelay
	return func() tea.Msg {
		var targets []workspace.ReconcileTarget
		var err error
		for attempt := 0; attempt < attempts; attempt++ {
			if attempt > 0 {
				time.Sleep(delay)
			}
			targets, err = registry.Reconnect(context.Background(), connectionID)
			if err == nil {
				break
			}
		}
		return reconnectDoneMsg{connectionID: connectionID, targets: targets, err: err}
	}
}

// maybePollCmd re-stats the active session's open files once per poll
// interval.
func (m *Model) maybePollCmd(now time.Time) tea.Cmd {
	if !m.lastPoll.IsZero() && now.Sub(m.lastPoll) < m.pollInterval {
		return nil
	}
	active, ok := m.snapshot.Active()
	if !ok || len(active.OpenFiles) == 0 {
		return nil
	}
	if active.Session.Status != types.ConnectionStatusConnected {
		return nil
	}
	m.lastPoll = now
	targets := make([]workspace.ReconcileTarget, 0, len(active.OpenFiles))
	for _, file := range active.OpenFiles {
		targets = append(targets, workspace.ReconcileTarget{SessionID: active.Session.ID, Path: file.Path})
	}
	return reconcileTargetsCmd(m.registry, targets)
}

func reconcileTargetsCmd(registry *workspace.Registry, targets []workspace.ReconcileTarget) tea.Cmd {
	return func() tea.Msg {
		for _, target := range targets {
			if _, err := registry.ReconcileFile(context.Background(), target.SessionID, target.Path); err != nil {
				return reconcileDoneMsg{err: err}
			}
		}
		return reconcileDoneMsg{count: len(targets)}
	}
}

func (m *Model) setInfo(status string) {
	m.status = status
	m.statusErr = false
}

func (m *Model) setError(status string) {
	m.status = status
	m.statusErr = true
}
