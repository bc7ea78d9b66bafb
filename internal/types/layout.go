package types

type PanelType string

const (
	PanelTypeEditor   PanelType = "editor"
	PanelTypeTerminal PanelType = "terminal"
)

// Panel is one editor or terminal view. FilePath is meaningful for editor
// panels, TerminalID for terminal panels.
type Panel struct {
	ID         string    `json:"id"`
	Type       PanelType `json:"type"`
	Title      string    `json:"title"`
	FilePath   string    `json:"file_path,omitempty"`
	TerminalID string    `json:"terminal_id,omitempty"`
}

func (p *Panel) Clone() *Panel {
	if p == nil {
		return nil
	}
	out := *p
	return &out
}

// PanelGroup is an ordered sequence of panels sharing one tab strip.
// ActivePanelID, when set, references a panel present in Panels.
type PanelGroup struct {
	ID            string   `json:"id"`
	Panels        []*Panel `json:"panels"`
	ActivePanelID string   `json:"active_panel_id,omitempty"`
}

func (g *PanelGroup) Clone() *PanelGroup {
	if g == nil {
		return nil
	}
	out := &PanelGroup{ID: g.ID, ActivePanelID: g.ActivePanelID}
	out.Panels = make([]*Panel, 0, len(g.Panels))
	for _, panel := range g.Panels {
		p := *panel
		out.Panels = append(out.Panels, &p)
	}
	return out
}

type LayoutNodeKind string

const (
	LayoutNodeLeaf  LayoutNodeKind = "leaf"
	LayoutNodeSplit LayoutNodeKind = "split"
)

type SplitDirection string

const (
	SplitHorizontal SplitDirection = "horizontal"
	SplitVertical   SplitDirection = "vertical"
)

// LayoutNode is a tagged variant: a leaf references one panel group, a split
// partitions space among ordered children with proportional sizes. For every
// split node len(Sizes) == len(Children) and the sizes sum to 1.0 within
// floating tolerance.
type LayoutNode struct {
	Kind      LayoutNodeKind `json:"kind"`
	GroupID   string         `json:"group_id,omitempty"`
	Direction SplitDirection `json:"direction,omitempty"`
	Children  []*LayoutNode  `json:"children,omitempty"`
	Sizes     []float64      `json:"sizes,omitempty"`
}

func (n *LayoutNode) Clone() *LayoutNode {
	if n == nil {
		return nil
	}
	out := &LayoutNode{Kind: n.Kind, GroupID: n.GroupID, Direction: n.Direction}
	if n.Children != nil {
		out.Children = make([]*LayoutNode, 0, len(n.Children))
		for _, child := range n.Children {
			out.Children = append(out.Children, child.Clone())
		}
	}
	out.Sizes = append([]float64(nil), n.Sizes...)
	return out
}
