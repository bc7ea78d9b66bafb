// Package layout owns one session's recursive split-pane tree: a root
// LayoutNode over a mapping of panel groups. Every mutation either fails
// without touching the tree or leaves it satisfying the structural
// invariants checked by Validate.
package layout

import (
	"errors"
	"fmt"
	"sort"

	"drift/internal/types"
)

// ErrInvalidMutation rejects a mutation whose target or arguments are
// invalid. The tree is left unchanged.
var ErrInvalidMutation = errors.New("invalid layout mutation")

// SizeTolerance is the floating tolerance for proportional size sums.
const SizeTolerance = 1e-6

// Layout is not self-synchronizing; the owning registry serializes access.
type Layout struct {
	root   *types.LayoutNode
	groups map[string]*types.PanelGroup
}

func New() *Layout {
	return &Layout{groups: map[string]*types.PanelGroup{}}
}

// Root returns a deep copy of the tree; nil for an empty layout.
func (l *Layout) Root() *types.LayoutNode {
	return l.root.Clone()
}

// Groups returns deep copies of every panel group.
func (l *Layout) Groups() map[string]*types.PanelGroup {
	out := make(map[string]*types.PanelGroup, len(l.groups))
	for id, group := range l.groups {
		out[id] = group.Clone()
	}
	return out
}

func (l *Layout) Group(id string) (*types.PanelGroup, bool) {
	group, ok := l.groups[id]
	if !ok {
		return nil, false
	}
	return group.Clone(), true
}

// Empty reports whether the layout has no visible groups. An empty layout is
// valid and is where every session starts.
func (l *Layout) Empty() bool {
	return l.root == nil
}

// GroupIDs returns the group identities in depth-first tree order.
func (l *Layout) GroupIDs() []string {
	var out []string
	var walk func(node *types.LayoutNode)
	walk = func(node *types.LayoutNode) {
		if node == nil {
			return
		}
		if node.Kind == types.LayoutNodeLeaf {
			out = append(out, node.GroupID)
			return
		}
		for _, child := range node.Children {
			walk(child)
		}
	}
	walk(l.root)
	return out
}

// AddPanel appends a panel to the group and makes it the group's active
// panel. With an empty groupID on an empty layout, a root leaf is created
// for the given newGroupID.
func (l *Layout) AddPanel(groupID string, panel *types.Panel) error {
	if panel == nil || panel.ID == "" {
		return fmt.Errorf("%w: panel is required", ErrInvalidMutation)
	}
	if l.findPanelGroup(panel.ID) != "" {
		return fmt.Errorf("%w: panel %s already placed", ErrInvalidMutation, panel.ID)
	}
	group, ok := l.groups[groupID]
	if !ok {
		return fmt.Errorf("%w: unknown group %s", ErrInvalidMutation, groupID)
	}
	p := *panel
	group.Panels = append(group.Panels, &p)
	group.ActivePanelID = p.ID
	l.mustValidate()
	return nil
}

// OpenRootGroup creates the initial leaf for an empty layout.
func (l *Layout) OpenRootGroup(groupID string) error {
	if groupID == "" {
		return fmt.Errorf("%w: group id is required", ErrInvalidMutation)
	}
	if l.root != nil {
		return fmt.Errorf("%w: layout already has a root", ErrInvalidMutation)
	}
	l.groups[groupID] = &types.PanelGroup{ID: groupID}
	l.root = &types.LayoutNode{Kind: types.LayoutNodeLeaf, GroupID: groupID}
	l.mustValidate()
	return nil
}

// Split replaces the leaf for groupID with a split of the given direction
// holding the original leaf and a new empty group, sized evenly.
func (l *Layout) Split(groupID string, direction types.SplitDirection, newGroupID string) error {
	switch direction {
	case types.SplitHorizontal, types.SplitVertical:
	default:
		return fmt.Errorf("%w: unknown direction %q", ErrInvalidMutation, direction)
	}
	if newGroupID == "" || newGroupID == groupID {
		return fmt.Errorf("%w: new group id is required", ErrInvalidMutation)
	}
	if _, exists := l.groups[newGroupID]; exists {
		return fmt.Errorf("%w: group %s already exists", ErrInvalidMutation, newGroupID)
	}
	if _, ok := l.groups[groupID]; !ok {
		return fmt.Errorf("%w: unknown group %s", ErrInvalidMutation, groupID)
	}

	replaced := false
	var replace func(node *types.LayoutNode) *types.LayoutNode
	replace = func(node *types.LayoutNode) *types.LayoutNode {
		if node == nil {
			return nil
		}
		if node.Kind == types.LayoutNodeLeaf {
			if node.GroupID != groupID {
				return node
			}
			replaced = true
			return &types.LayoutNode{
				Kind:      types.LayoutNodeSplit,
				Direction: direction,
				Children: []*types.LayoutNode{
					{Kind: types.LayoutNodeLeaf, GroupID: groupID},
					{Kind: types.LayoutNodeLeaf, GroupID: newGroupID},
				},
				Sizes: []float64{0.5, 0.5},
			}
		}
		for i, child := range node.Children {
			node.Children[i] = replace(child)
		}
		return node
	}
	l.root = replace(l.root)
	if !replaced {
		return fmt.Errorf("%w: group %s is not a leaf", ErrInvalidMutation, groupID)
	}
	l.groups[newGroupID] = &types.PanelGroup{ID: newGroupID}
	l.mustValidate()
	return nil
}

// ClosePanel removes the panel from its group. A group left empty loses its
// leaf; singleton splits collapse recursively up to the root, and sizes are
// renormalized. Closing the only panel of a single-leaf root yields an
// empty layout.
func (l *Layout) ClosePanel(panelID string) error {
	groupID := l.findPanelGroup(panelID)
	if groupID == "" {
		return fmt.Errorf("%w: unknown panel %s", ErrInvalidMutation, panelID)
	}
	group := l.groups[groupID]
	l.removeFromGroup(group, panelID)
	if len(group.Panels) == 0 {
		l.dropGroup(groupID)
	}
	l.mustValidate()
	return nil
}

// MovePanel removes the panel from one group and inserts it at index in
// another. An emptied source group collapses as in ClosePanel.
func (l *Layout) MovePanel(panelID, fromGroupID, toGroupID string, index int) error {
	from, ok := l.groups[fromGroupID]
	if !ok {
		return fmt.Errorf("%w: unknown group %s", ErrInvalidMutation, fromGroupID)
	}
	to, ok := l.groups[toGroupID]
	if !ok {
		return fmt.Errorf("%w: unknown group %s", ErrInvalidMutation, toGroupID)
	}
	var panel *types.Panel
	for _, p := range from.Panels {
		if p.ID == panelID {
			panel = p
			break
		}
	}
	if panel == nil {
		return fmt.Errorf("%w: panel %s is not in group %s", ErrInvalidMutation, panelID, fromGroupID)
	}
	limit := len(to.Panels)
	if fromGroupID == toGroupID {
		limit--
	}
	if index < 0 || index > limit {
		return fmt.Errorf("%w: index %d out of range", ErrInvalidMutation, index)
	}

	l.removeFromGroup(from, panelID)
	to.Panels = append(to.Panels, nil)
	copy(to.Panels[index+1:], to.Panels[index:])
	to.Panels[index] = panel
	to.ActivePanelID = panel.ID
	if fromGroupID != toGroupID && len(from.Panels) == 0 {
		l.dropGroup(fromGroupID)
	}
	l.mustValidate()
	return nil
}

// Resize replaces the proportional sizes of the split node addressed by a
// child-index path from the root. The new sizes must match the child count
// and sum to 1.0 within tolerance; otherwise the tree is left unchanged.
func (l *Layout) Resize(path []int, sizes []float64) error {
	node := l.root
	for _, idx := range path {
		if node == nil || node.Kind != types.LayoutNodeSplit || idx < 0 || idx >= len(node.Children) {
			return fmt.Errorf("%w: no split node at path %v", ErrInvalidMutation, path)
		}
		node = node.Children[idx]
	}
	if node == nil || node.Kind != types.LayoutNodeSplit {
		return fmt.Errorf("%w: no split node at path %v", ErrInvalidMutation, path)
	}
	if len(sizes) != len(node.Children) {
		return fmt.Errorf("%w: %d sizes for %d children", ErrInvalidMutation, len(sizes), len(node.Children))
	}
	var sum float64
	for _, size := range sizes {
		if size < 0 {
			return fmt.Errorf("%w: negative size", ErrInvalidMutation)
		}
		sum += size
	}
	if sum < 1-SizeTolerance || sum > 1+SizeTolerance {
		return fmt.Errorf("%w: sizes sum to %v", ErrInvalidMutation, sum)
	}
	node.Sizes = append([]float64(nil), sizes...)
	l.mustValidate()
	return nil
}

// SetActivePanel marks the group's active panel.
func (l *Layout) SetActivePanel(groupID, panelID string) error {
	group, ok := l.groups[groupID]
	if !ok {
		return fmt.Errorf("%w: unknown group %s", ErrInvalidMutation, groupID)
	}
	for _, p := range group.Panels {
		if p.ID == panelID {
			group.ActivePanelID = panelID
			return nil
		}
	}
	return fmt.Errorf("%w: panel %s is not in group %s", ErrInvalidMutation, panelID, groupID)
}

// Panels returns deep copies of every panel across groups, ordered by id.
func (l *Layout) Panels() []*types.Panel {
	var out []*types.Panel
	for _, group := range l.groups {
		for _, panel := range group.Panels {
			p := *panel
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (l *Layout) findPanelGroup(panelID string) string {
	for id, group := range l.groups {
		for _, panel := range group.Panels {
			if panel.ID == panelID {
				return id
			}
		}
	}
	return ""
}

func (l *Layout) removeFromGroup(group *types.PanelGroup, panelID string) {
	idx := -1
	for i, panel := range group.Panels {
		if panel.ID == panelID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	group.Panels = append(group.Panels[:idx], group.Panels[idx+1:]...)
	if group.ActivePanelID == panelID {
		group.ActivePanelID = ""
		if len(group.Panels) > 0 {
			next := idx
			if next >= len(group.Panels) {
				next = len(group.Panels) - 1
			}
			group.ActivePanelID = group.Panels[next].ID
		}
	}
}

// dropGroup removes the group's leaf from the tree and collapses any splits
// left with a single child.
func (l *Layout) dropGroup(groupID string) {
	delete(l.groups, groupID)
	l.root = removeLeaf(l.root, groupID)
}

func removeLeaf(node *types.LayoutNode, groupID string) *types.LayoutNode {
	if node == nil {
		return nil
	}
	if node.Kind == types.LayoutNodeLeaf {
		if node.GroupID == groupID {
			return nil
		}
		return node
	}
	children := node.Children[:0]
	sizes := node.Sizes[:0]
	for i, child := range node.Children {
		kept := removeLeaf(child, groupID)
		if kept == nil {
			continue
		}
		children = append(children, kept)
		sizes = append(sizes, node.Sizes[i])
	}
	switch len(children) {
	case 0:
		return nil
	case 1:
		return children[0]
	}
	node.Children = children
	node.Sizes = normalizeSizes(sizes)
	return node
}

func normalizeSizes(sizes []float64) []float64 {
	var sum float64
	for _, size := range sizes {
		sum += size
	}
	out := make([]float64, len(sizes))
	if sum <= 0 {
		even := 1.0 / float64(len(sizes))
		for i := range out {
			out[i] = even
		}
		return out
	}
	for i, size := range sizes {
		out[i] = size / sum
	}
	return out
}

func (l *Layout) mustValidate() {
	if err := l.Validate(); err != nil {
		panic("layout invariant violated: " + err.Error())
	}
}
