package layout

import (
	"errors"
	"math"
	"testing"

	"drift/internal/types"
)

func editorPanel(id, path string) *types.Panel {
	return &types.Panel{ID: id, Type: types.PanelTypeEditor, Title: path, FilePath: path}
}

func terminalPanel(id, termID string) *types.Panel {
	return &types.Panel{ID: id, Type: types.PanelTypeTerminal, Title: "shell", TerminalID: termID}
}

func newSingleGroupLayout(t *testing.T) *Layout {
	t.Helper()
	l := New()
	if err := l.OpenRootGroup("g1"); err != nil {
		t.Fatalf("open root: %v", err)
	}
	if err := l.AddPanel("g1", editorPanel("p1", "/main.go")); err != nil {
		t.Fatalf("add panel: %v", err)
	}
	return l
}

func TestEmptyLayoutIsValid(t *testing.T) {
	l := New()
	if err := l.Validate(); err != nil {
		t.Fatalf("empty layout must be valid: %v", err)
	}
	if !l.Empty() {
		t.Fatalf("expected empty layout")
	}
}

func TestSplitCreatesEvenPair(t *testing.T) {
	l := newSingleGroupLayout(t)
	if err := l.Split("g1", types.SplitVertical, "g2"); err != nil {
		t.Fatalf("split: %v", err)
	}
	root := l.Root()
	if root.Kind != types.LayoutNodeSplit || root.Direction != types.SplitVertical {
		t.Fatalf("unexpected root: %+v", root)
	}
	if len(root.Children) != 2 {
		t.Fatalf("children: %d", len(root.Children))
	}
	if root.Children[0].GroupID != "g1" || root.Children[1].GroupID != "g2" {
		t.Fatalf("child order: %s %s", root.Children[0].GroupID, root.Children[1].GroupID)
	}
	if root.Sizes[0] != 0.5 || root.Sizes[1] != 0.5 {
		t.Fatalf("sizes: %v", root.Sizes)
	}
}

func TestSplitUnknownGroupFails(t *testing.T) {
	l := newSingleGroupLayout(t)
	if err := l.Split("nope", types.SplitVertical, "g2"); !errors.Is(err, ErrInvalidMutation) {
		t.Fatalf("expected invalid mutation, got %v", err)
	}
	if err := l.Split("g1", "diagonal", "g2"); !errors.Is(err, ErrInvalidMutation) {
		t.Fatalf("expected invalid mutation, got %v", err)
	}
	if root := l.Root(); root.Kind != types.LayoutNodeLeaf {
		t.Fatalf("failed split must not mutate the tree")
	}
}

func TestCloseLastPanelEmptiesLayout(t *testing.T) {
	l := newSingleGroupLayout(t)
	if err := l.ClosePanel("p1"); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !l.Empty() {
		t.Fatalf("expected empty layout")
	}
	if len(l.Groups()) != 0 {
		t.Fatalf("expected no groups")
	}
	if err := l.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestCloseCollapsesSingletonSplit(t *testing.T) {
	l := newSingleGroupLayout(t)
	if err := l.Split("g1", types.SplitVertical, "g2"); err != nil {
		t.Fatalf("split: %v", err)
	}
	if err := l.AddPanel("g2", terminalPanel("p2", "term-1")); err != nil {
		t.Fatalf("add panel: %v", err)
	}
	if err := l.ClosePanel("p2"); err != nil {
		t.Fatalf("close: %v", err)
	}
	root := l.Root()
	if root.Kind != types.LayoutNodeLeaf || root.GroupID != "g1" {
		t.Fatalf("expected collapse back to leaf g1, got %+v", root)
	}
	if _, ok := l.Group("g2"); ok {
		t.Fatalf("emptied group must be removed")
	}
}

func TestCloseRenormalizesNestedSizes(t *testing.T) {
	l := newSingleGroupLayout(t)
	if err := l.Split("g1", types.SplitVertical, "g2"); err != nil {
		t.Fatalf("split: %v", err)
	}
	if err := l.AddPanel("g2", editorPanel("p2", "/b.go")); err != nil {
		t.Fatalf("add panel: %v", err)
	}
	if err := l.Split("g2", types.SplitHorizontal, "g3"); err != nil {
		t.Fatalf("nested split: %v", err)
	}
	if err := l.AddPanel("g3", editorPanel("p3", "/c.go")); err != nil {
		t.Fatalf("add panel: %v", err)
	}
	if err := l.Resize([]int{}, []float64{0.7, 0.3}); err != nil {
		t.Fatalf("resize: %v", err)
	}

	if err := l.ClosePanel("p1"); err != nil {
		t.Fatalf("close: %v", err)
	}
	// Removing g1 from the root pair promotes the nested split to root.
	root := l.Root()
	if root.Kind != types.LayoutNodeSplit || root.Direction != types.SplitHorizontal {
		t.Fatalf("expected promoted nested split, got %+v", root)
	}
	var sum float64
	for _, size := range root.Sizes {
		sum += size
	}
	if math.Abs(sum-1) > SizeTolerance {
		t.Fatalf("sizes must renormalize, sum %v", sum)
	}
	if err := l.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestResizeValidation(t *testing.T) {
	l := newSingleGroupLayout(t)
	if err := l.Split("g1", types.SplitVertical, "g2"); err != nil {
		t.Fatalf("split: %v", err)
	}

	if err := l.Resize([]int{}, []float64{0.6, 0.4}); err != nil {
		t.Fatalf("resize: %v", err)
	}
	root := l.Root()
	if root.Sizes[0] != 0.6 || root.Sizes[1] != 0.4 {
		t.Fatalf("sizes: %v", root.Sizes)
	}

	for _, bad := range [][]float64{
		{0.6, 0.6},
		{1.0},
		{0.5, 0.25, 0.25},
		{-0.5, 1.5},
	} {
		if err := l.Resize([]int{}, bad); !errors.Is(err, ErrInvalidMutation) {
			t.Fatalf("sizes %v: expected invalid mutation, got %v", bad, err)
		}
	}
	root = l.Root()
	if root.Sizes[0] != 0.6 || root.Sizes[1] != 0.4 {
		t.Fatalf("failed resize must not mutate sizes: %v", root.Sizes)
	}

	if err := l.Resize([]int{0}, []float64{1.0}); !errors.Is(err, ErrInvalidMutation) {
		t.Fatalf("leaf path: expected invalid mutation, got %v", err)
	}
	if err := l.Resize([]int{5}, []float64{1.0}); !errors.Is(err, ErrInvalidMutation) {
		t.Fatalf("bad path: expected invalid mutation, got %v", err)
	}
}

func TestMovePanel(t *testing.T) {
	l := newSingleGroupLayout(t)
	if err := l.AddPanel("g1", editorPanel("p2", "/b.go")); err != nil {
		t.Fatalf("add panel: %v", err)
	}
	if err := l.Split("g1", types.SplitVertical, "g2"); err != nil {
		t.Fatalf("split: %v", err)
	}
	if err := l.AddPanel("g2", terminalPanel("p3", "term-1")); err != nil {
		t.Fatalf("add panel: %v", err)
	}

	if err := l.MovePanel("p1", "g1", "g2", 0); err != nil {
		t.Fatalf("move: %v", err)
	}
	g2, _ := l.Group("g2")
	if len(g2.Panels) != 2 || g2.Panels[0].ID != "p1" {
		t.Fatalf("unexpected destination order: %+v", g2.Panels)
	}
	if g2.ActivePanelID != "p1" {
		t.Fatalf("moved panel should be active, got %s", g2.ActivePanelID)
	}

	if err := l.MovePanel("p1", "g1", "g2", 0); !errors.Is(err, ErrInvalidMutation) {
		t.Fatalf("move of departed panel: %v", err)
	}
	if err := l.MovePanel("p2", "g1", "g2", 5); !errors.Is(err, ErrInvalidMutation) {
		t.Fatalf("out of range index: %v", err)
	}

	// Moving the last panel out of g1 collapses its leaf.
	if err := l.MovePanel("p2", "g1", "g2", 2); err != nil {
		t.Fatalf("move: %v", err)
	}
	root := l.Root()
	if root.Kind != types.LayoutNodeLeaf || root.GroupID != "g2" {
		t.Fatalf("expected collapse to g2, got %+v", root)
	}
}

func TestActivePanelFollowsRemoval(t *testing.T) {
	l := newSingleGroupLayout(t)
	if err := l.AddPanel("g1", editorPanel("p2", "/b.go")); err != nil {
		t.Fatalf("add panel: %v", err)
	}
	if err := l.AddPanel("g1", editorPanel("p3", "/c.go")); err != nil {
		t.Fatalf("add panel: %v", err)
	}
	if err := l.SetActivePanel("g1", "p2"); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if err := l.ClosePanel("p2"); err != nil {
		t.Fatalf("close: %v", err)
	}
	g1, _ := l.Group("g1")
	if g1.ActivePanelID != "p3" {
		t.Fatalf("active should move to the panel at the same index, got %s", g1.ActivePanelID)
	}
	if err := l.SetActivePanel("g1", "p2"); !errors.Is(err, ErrInvalidMutation) {
		t.Fatalf("set active on removed panel: %v", err)
	}
}

func TestInvariantsHoldAcrossMutationSequence(t *testing.T) {
	l := New()
	if err := l.OpenRootGroup("g1"); err != nil {
		t.Fatalf("open root: %v", err)
	}
	if err := l.AddPanel("g1", editorPanel("p1", "/a.go")); err != nil {
		t.Fatalf("add: %v", err)
	}
	steps := []func() error{
		func() error { return l.Split("g1", types.SplitVertical, "g2") },
		func() error { return l.AddPanel("g2", editorPanel("p2", "/b.go")) },
		func() error { return l.Split("g2", types.SplitHorizontal, "g3") },
		func() error { return l.AddPanel("g3", terminalPanel("p3", "t1")) },
		func() error { return l.Resize([]int{}, []float64{0.3, 0.7}) },
		func() error { return l.MovePanel("p2", "g2", "g1", 1) },
		func() error { return l.ClosePanel("p3") },
		func() error { return l.ClosePanel("p1") },
		func() error { return l.ClosePanel("p2") },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if err := l.Validate(); err != nil {
			t.Fatalf("step %d broke invariants: %v", i, err)
		}
	}
	if !l.Empty() {
		t.Fatalf("expected empty layout after closing everything")
	}
}
