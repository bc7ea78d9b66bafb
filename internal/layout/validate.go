package layout

import (
	"fmt"
	"math"

	"drift/internal/types"
)

// Validate re-checks the whole tree's structural invariants: size/children
// parity and unit sums on every split, no orphan leaf references, every
// group referenced by exactly one leaf, active panels present in their
// groups, and panel references matching panel types. It runs after every
// mutation and is callable from tests directly.
func (l *Layout) Validate() error {
	if l.root == nil {
		if len(l.groups) != 0 {
			return fmt.Errorf("empty tree with %d groups", len(l.groups))
		}
		return nil
	}

	refs := map[string]int{}
	seen := map[*types.LayoutNode]bool{}
	if err := validateNode(l.root, l.groups, refs, seen); err != nil {
		return err
	}
	for id := range l.groups {
		switch refs[id] {
		case 0:
			return fmt.Errorf("group %s referenced by no leaf", id)
		case 1:
		default:
			return fmt.Errorf("group %s referenced by %d leaves", id, refs[id])
		}
	}

	for id, group := range l.groups {
		if group.ID != id {
			return fmt.Errorf("group %s keyed under %s", group.ID, id)
		}
		if group.ActivePanelID != "" {
			found := false
			for _, panel := range group.Panels {
				if panel.ID == group.ActivePanelID {
					found = true
					break
				}
			}
			if !found {
				return fmt.Errorf("group %s active panel %s not present", id, group.ActivePanelID)
			}
		}
		for _, panel := range group.Panels {
			switch panel.Type {
			case types.PanelTypeEditor:
				if panel.FilePath == "" {
					return fmt.Errorf("editor panel %s has no file path", panel.ID)
				}
			case types.PanelTypeTerminal:
				if panel.TerminalID == "" {
					return fmt.Errorf("terminal panel %s has no terminal id", panel.ID)
				}
			default:
				return fmt.Errorf("panel %s has unknown type %q", panel.ID, panel.Type)
			}
		}
	}
	return nil
}

func validateNode(node *types.LayoutNode, groups map[string]*types.PanelGroup, refs map[string]int, seen map[*types.LayoutNode]bool) error {
	if seen[node] {
		return fmt.Errorf("cycle at node referencing %q", node.GroupID)
	}
	seen[node] = true

	switch node.Kind {
	case types.LayoutNodeLeaf:
		if _, ok := groups[node.GroupID]; !ok {
			return fmt.Errorf("leaf references missing group %s", node.GroupID)
		}
		refs[node.GroupID]++
		return nil
	case types.LayoutNodeSplit:
		if len(node.Children) < 2 {
			return fmt.Errorf("split with %d children", len(node.Children))
		}
		if len(node.Sizes) != len(node.Children) {
			return fmt.Errorf("split has %d sizes for %d children", len(node.Sizes), len(node.Children))
		}
		var sum float64
		for _, size := range node.Sizes {
			if size < 0 {
				return fmt.Errorf("split has negative size %v", size)
			}
			sum += size
		}
		if math.Abs(sum-1) > SizeTolerance {
			return fmt.Errorf("split sizes sum to %v", sum)
		}
		for _, child := range node.Children {
			if child == nil {
				return fmt.Errorf("split has nil child")
			}
			if err := validateNode(child, groups, refs, seen); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("node has unknown kind %q", node.Kind)
	}
}
