package ui

import (
	"strings"

	"charm.land/lipgloss/v2"
	xansi "github.com/charmbracelet/x/ansi"
	runewidth "github.com/mattn/go-runewidth"

	"drift/internal/types"
)

func (m *Model) View() string {
	width := m.width
	height := m.height
	if width <= 0 {
		width = 80
	}
	if height <= 0 {
		height = 24
	}

	tabs := m.renderTabStrip(width)
	status := m.renderStatusLine(width)
	bodyHeight := height - lipgloss.Height(tabs) - lipgloss.Height(status)
	if bodyHeight < minPaneHeight {
		bodyHeight = minPaneHeight
	}

	active, ok := m.snapshot.Active()
	if !ok {
		empty := helpStyle.Render("No sessions. Open one with `drift connect`.")
		return lipgloss.JoinVertical(lipgloss.Left, tabs, empty, status)
	}
	body := m.renderLayout(active, width, bodyHeight)
	return lipgloss.JoinVertical(lipgloss.Left, tabs, body, status)
}

func (m *Model) renderTabStrip(width int) string {
	if len(m.snapshot.Sessions) == 0 {
		return tabStyle.Render("drift")
	}
	parts := make([]string, 0, len(m.snapshot.Sessions))
	for _, s := range m.snapshot.Sessions {
		label := s.Session.Name
		if label == "" {
			label = s.Session.ID
		}
		label = statusGlyph(s.Session.Status) + " " + label
		if s.Session.ID == m.snapshot.ActiveSessionID {
			parts = append(parts, tabActiveStyle.Render(label))
		} else {
			parts = append(parts, tabStyle.Render(label))
		}
	}
	strip := lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	return truncateLine(strip, width)
}

func statusGlyph(status types.ConnectionStatus) string {
	switch status {
	case types.ConnectionStatusConnected:
		return connectedStyle.Render("●")
	case types.ConnectionStatusReconnecting, types.ConnectionStatusConnecting:
		return reconnectingStyle.Render("◌")
	default:
		return disconnectedStyle.Render("○")
	}
}

func (m *Model) renderStatusLine(width int) string {
	active, ok := m.snapshot.Active()
	left := m.status
	if ok {
		switch active.Session.Status {
		case types.ConnectionStatusConnecting:
			left = m.loader.View() + " connecting"
		case types.ConnectionStatusReconnecting:
			left = m.loader.View() + " reconnecting"
		case types.ConnectionStatusDisconnected:
			left = "disconnected (R to reconnect)"
		}
	}
	style := statusStyle
	if m.statusErr {
		style = statusErrorStyle
	}
	help := helpStyle.Render("tab:session o:group v/b:split w:close y:copy R:reconnect q:quit")
	line := style.Render(left)
	gap := width - lipgloss.Width(line) - lipgloss.Width(help)
	if gap < 1 {
		return truncateLine(line, width)
	}
	return line + strings.Repeat(" ", gap) + help
}

func (m *Model) renderLayout(active types.SessionSnapshot, width, height int) string {
	if active.Root == nil {
		return helpStyle.Render("Empty layout. Open a file to begin.")
	}
	focused := m.focusedGroupID(active)
	return renderNode(active, active.Root, width, height, focused)
}

// renderNode recursively renders the tree, apportioning the split axis by
// the node's proportional sizes with a minimum pane size.
func renderNode(active types.SessionSnapshot, node *types.LayoutNode, width, height int, focusedGroup string) string {
	if node == nil {
		return ""
	}
	if node.Kind == types.LayoutNodeLeaf {
		return renderGroupPane(active, node.GroupID, width, height, node.GroupID == focusedGroup)
	}

	horizontal := node.Direction == types.SplitHorizontal
	total := width
	if !horizontal {
		total = height
	}
	spans := apportion(total, node.Sizes, minSpan(horizontal))
	parts := make([]string, 0, len(node.Children))
	for i, child := range node.Children {
		if horizontal {
			parts = append(parts, renderNode(active, child, spans[i], height, focusedGroup))
		} else {
			parts = append(parts, renderNode(active, child, width, spans[i], focusedGroup))
		}
	}
	if horizontal {
		return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func minSpan(horizontal bool) int {
	if horizontal {
		return minPaneWidth
	}
	return minPaneHeight
}

// apportion divides total cells by the proportional sizes, giving any
// rounding remainder to the last span.
func apportion(total int, sizes []float64, minimum int) []int {
	if len(sizes) == 0 {
		return nil
	}
	out := make([]int, len(sizes))
	used := 0
	for i, size := range sizes {
		span := int(float64(total) * size)
		if span < minimum {
			span = minimum
		}
		out[i] = span
		used += span
	}
	if rest := total - used; rest > 0 {
		out[len(out)-1] += rest
	}
	return out
}

func renderGroupPane(active types.SessionSnapshot, groupID string, width, height int, focused bool) string {
	group := active.Groups[groupID]
	border := paneStyle
	if focused {
		border = paneFocusedStyle
	}
	innerWidth := width - 2
	if innerWidth < 4 {
		innerWidth = 4
	}
	innerHeight := height - 2
	if innerHeight < 1 {
		innerHeight = 1
	}

	if group == nil || len(group.Panels) == 0 {
		body := padLines(helpStyle.Render("empty"), innerWidth, innerHeight)
		return border.Render(body)
	}

	lines := make([]string, 0, innerHeight)
	lines = append(lines, renderPanelTabs(active, group, innerWidth))
	if panel := activePanel(group); panel != nil {
		lines = append(lines, renderPanelBody(active, panel, innerWidth, innerHeight-1)...)
	}
	return border.Render(padLines(strings.Join(lines, "\n"), innerWidth, innerHeight))
}

func activePanel(group *types.PanelGroup) *types.Panel {
	for _, panel := range group.Panels {
		if panel.ID == group.ActivePanelID {
			return panel
		}
	}
	if len(group.Panels) > 0 {
		return group.Panels[0]
	}
	return nil
}

func renderPanelTabs(active types.SessionSnapshot, group *types.PanelGroup, width int) string {
	parts := make([]string, 0, len(group.Panels))
	for _, panel := range group.Panels {
		title := panelTitle(active, panel)
		if panel.ID == group.ActivePanelID {
			parts = append(parts, paneTitleStyle.Render(title))
		} else {
			parts = append(parts, helpStyle.Render(title))
		}
	}
	return truncateLine(strings.Join(parts, " │ "), width)
}

// panelTitle decorates editor titles with the buffer's dirty and conflict
// markers.
func panelTitle(active types.SessionSnapshot, panel *types.Panel) string {
	title := panel.Title
	if title == "" {
		title = panel.ID
	}
	if panel.Type != types.PanelTypeEditor {
		return title
	}
	for _, file := range active.OpenFiles {
		if file.Path != panel.FilePath {
			continue
		}
		if file.Conflict() {
			return paneConflictStyle.Render(title + " !")
		}
		if file.Dirty {
			return paneDirtyStyle.Render(title + " *")
		}
		if file.Check != nil && file.Check.UpdateAvailable {
			return paneDirtyStyle.Render(title + " ↓")
		}
		break
	}
	return title
}

func renderPanelBody(active types.SessionSnapshot, panel *types.Panel, width, height int) []string {
	if height <= 0 {
		return nil
	}
	var content string
	switch panel.Type {
	case types.PanelTypeTerminal:
		content = helpStyle.Render("terminal " + panel.TerminalID)
	case types.PanelTypeEditor:
		for _, file := range active.OpenFiles {
			if file.Path == panel.FilePath {
				content = file.Content
				break
			}
		}
	}
	lines := strings.Split(content, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if runewidth.StringWidth(line) > width {
			line = runewidth.Truncate(line, width-1, "…")
		}
		out = append(out, line)
	}
	return out
}

func truncateLine(line string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(line) <= width {
		return line
	}
	return xansi.Truncate(line, width-1, "…")
}

// padLines pads the block to exactly width x height so bordered panes line
// up when joined.
func padLines(block string, width, height int) string {
	lines := strings.Split(block, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	for i, line := range lines {
		if pad := width - lipgloss.Width(line); pad > 0 {
			lines[i] = line + strings.Repeat(" ", pad)
		}
	}
	return strings.Join(lines, "\n")
}
