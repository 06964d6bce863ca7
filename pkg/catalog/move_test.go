package catalog_test

import (
	"fmt"
	"slices"
	"testing"

	"pgregory.net/rapid"

	"github.com/Tailormap/tailormap-viewer-sub000/pkg/catalog"
	"github.com/Tailormap/tailormap-viewer-sub000/pkg/testutil"
)

func folderMove(id, from, to string, pos catalog.Position, sibling string) catalog.MoveIntent {
	return catalog.MoveIntent{
		NodeID: id, Node: catalog.Container(),
		FromParent: from, ToParent: to,
		Position:  pos,
		SiblingID: sibling, Sibling: catalog.Container(),
	}
}

func TestMoveFolderInside(t *testing.T) {
	f := testutil.Sample()
	out, changed := catalog.Move(f, folderMove("1", "root", "2", catalog.Inside, "2"))
	if !changed {
		t.Fatal("move reported no change")
	}
	testutil.AssertChildren(t, out, "root", "2", "3")
	testutil.AssertChildren(t, out, "2", "1")
	testutil.AssertChildren(t, out, "1", "1_1", "1_2")
	testutil.AssertValid(t, out)

	// input untouched
	testutil.AssertChildren(t, f, "root", "1", "2", "3")
	testutil.AssertChildren(t, f, "2")
}

func TestMoveReorderAtRoot(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		pos     catalog.Position
		sibling string
		want    []string
	}{
		{"1 after 2", "1", catalog.After, "2", []string{"2", "1", "3"}},
		{"1 before 3", "1", catalog.Before, "3", []string{"2", "1", "3"}},
		{"1 after 3", "1", catalog.After, "3", []string{"2", "3", "1"}},
		{"3 before 1", "3", catalog.Before, "1", []string{"3", "1", "2"}},
		{"3 after 1", "3", catalog.After, "1", []string{"1", "3", "2"}},
		{"2 before 1", "2", catalog.Before, "1", []string{"2", "1", "3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, changed := catalog.Move(testutil.Sample(), folderMove(tt.id, "root", "root", tt.pos, tt.sibling))
			if !changed {
				t.Fatal("move reported no change")
			}
			testutil.AssertChildren(t, out, "root", tt.want...)
		})
	}
}

func TestMoveItemAfterItemInOtherFolder(t *testing.T) {
	f := testutil.Sample()
	out, changed := catalog.Move(f, catalog.MoveIntent{
		NodeID: "s1", Node: catalog.Item(catalog.KindGeoService),
		FromParent: "1_1", ToParent: "1_2",
		Position:  catalog.After,
		SiblingID: "f2", Sibling: catalog.Item(catalog.KindFeatureSource),
	})
	if !changed {
		t.Fatal("move reported no change")
	}
	testutil.AssertItems(t, out, "1_1", "s2", "s3")
	testutil.AssertItems(t, out, "1_2", "f1", "f2", "s1", "f3")
	n, _ := out.Node("1_2")
	if n.Items[2].Kind != catalog.KindGeoService {
		t.Errorf("moved item kind = %s, want %s", n.Items[2].Kind, catalog.KindGeoService)
	}
}

func TestMoveItemWithinFolder(t *testing.T) {
	svc := catalog.Item(catalog.KindGeoService)
	tests := []struct {
		name    string
		id      string
		pos     catalog.Position
		sibling string
		want    []string
	}{
		{"s1 after s2", "s1", catalog.After, "s2", []string{"s2", "s1", "s3"}},
		{"s3 before s1", "s3", catalog.Before, "s1", []string{"s3", "s1", "s2"}},
		{"s1 after s3", "s1", catalog.After, "s3", []string{"s2", "s3", "s1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, changed := catalog.Move(testutil.Sample(), catalog.MoveIntent{
				NodeID: tt.id, Node: svc, FromParent: "1_1", ToParent: "1_1",
				Position: tt.pos, SiblingID: tt.sibling, Sibling: svc,
			})
			if !changed {
				t.Fatal("move reported no change")
			}
			testutil.AssertItems(t, out, "1_1", tt.want...)
		})
	}
}

func TestMoveItemInsideFolderAppends(t *testing.T) {
	out, changed := catalog.Move(testutil.Sample(), catalog.MoveIntent{
		NodeID: "f1", Node: catalog.Item(catalog.KindFeatureSource),
		FromParent: "1_2", ToParent: "1_1",
		Position:  catalog.Inside,
		SiblingID: "1_1", Sibling: catalog.Container(),
	})
	if !changed {
		t.Fatal("move reported no change")
	}
	testutil.AssertItems(t, out, "1_1", "s1", "s2", "s3", "f1")
	testutil.AssertItems(t, out, "1_2", "f2", "f3")
}

func TestMoveFindsParentsWhenOmitted(t *testing.T) {
	out, changed := catalog.Move(testutil.Sample(), folderMove("1_2", "", "", catalog.Before, "2"))
	if !changed {
		t.Fatal("move reported no change")
	}
	testutil.AssertChildren(t, out, "root", "1", "1_2", "2", "3")
	testutil.AssertChildren(t, out, "1", "1_1")
}

func TestMoveCrossKind(t *testing.T) {
	t.Run("folder next to items goes to end of children", func(t *testing.T) {
		f := testutil.Sample()
		out, changed := catalog.Move(f, catalog.MoveIntent{
			NodeID: "3", Node: catalog.Container(),
			FromParent: "root", ToParent: "1_1",
			Position:  catalog.Before,
			SiblingID: "s2", Sibling: catalog.Item(catalog.KindGeoService),
		})
		if !changed {
			t.Fatal("move reported no change")
		}
		testutil.AssertChildren(t, out, "root", "1", "2")
		testutil.AssertChildren(t, out, "1_1", "3")
		testutil.AssertItems(t, out, "1_1", "s1", "s2", "s3")

		out, _ = catalog.Move(out, catalog.MoveIntent{
			NodeID: "2", Node: catalog.Container(),
			FromParent: "root", ToParent: "1_1",
			Position:  catalog.Before,
			SiblingID: "s1", Sibling: catalog.Item(catalog.KindGeoService),
		})
		testutil.AssertChildren(t, out, "1_1", "3", "2")
	})

	t.Run("item next to folders goes to front of items", func(t *testing.T) {
		svc := catalog.Item(catalog.KindGeoService)
		out, changed := catalog.Move(testutil.Sample(), catalog.MoveIntent{
			NodeID: "s1", Node: svc,
			FromParent: "1_1", ToParent: "1",
			Position:  catalog.After,
			SiblingID: "1_2", Sibling: catalog.Container(),
		})
		if !changed {
			t.Fatal("move reported no change")
		}
		testutil.AssertItems(t, out, "1", "s1")
		testutil.AssertItems(t, out, "1_1", "s2", "s3")
		testutil.AssertChildren(t, out, "1", "1_1", "1_2")

		out, _ = catalog.Move(out, catalog.MoveIntent{
			NodeID: "s3", Node: svc,
			FromParent: "1_1", ToParent: "1",
			Position:  catalog.After,
			SiblingID: "1_2", Sibling: catalog.Container(),
		})
		testutil.AssertItems(t, out, "1", "s3", "s1")
	})
}

func TestMoveIllegal(t *testing.T) {
	svc := catalog.Item(catalog.KindGeoService)
	tests := []struct {
		name string
		in   catalog.MoveIntent
	}{
		{"folder inside own child", folderMove("1", "root", "1_1", catalog.Inside, "1_1")},
		{"folder inside itself", folderMove("1", "root", "1", catalog.Inside, "1")},
		{"folder after itself", folderMove("2", "root", "root", catalog.After, "2")},
		{"folder next to own descendant", folderMove("1", "root", "1", catalog.Before, "1_2")},
		{"inside an item", catalog.MoveIntent{
			NodeID: "s1", Node: svc, FromParent: "1_1", Position: catalog.Inside,
			SiblingID: "s2", Sibling: svc,
		}},
		{"folder inside an item", catalog.MoveIntent{
			NodeID: "2", Node: catalog.Container(), FromParent: "root", Position: catalog.Inside,
			SiblingID: "s2", Sibling: svc,
		}},
		{"unknown destination", folderMove("2", "root", "nope", catalog.Inside, "nope")},
		{"unknown folder", folderMove("nope", "root", "2", catalog.Inside, "2")},
		{"unknown kind", catalog.MoveIntent{
			NodeID: "s1", Node: catalog.Item("LAYER"), Position: catalog.Inside,
			SiblingID: "2", Sibling: catalog.Container(),
		}},
		{"unknown position", folderMove("2", "root", "root", "around", "3")},
		{"already in place", folderMove("3", "root", "root", catalog.After, "2")},
		{"root next to its child", folderMove("root", "", "", catalog.After, "1")},
		{"folder before sibling of another folder", folderMove("3", "root", "1", catalog.Before, "2")},
		{"item after sibling of another folder", catalog.MoveIntent{
			NodeID: "s1", Node: svc, FromParent: "1_1", ToParent: "2", Position: catalog.After,
			SiblingID: "s2", Sibling: svc,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := testutil.Sample()
			out, changed := catalog.Move(f, tt.in)
			if changed {
				t.Fatalf("illegal move %+v reported a change", tt.in)
			}
			testutil.AssertSameFolders(t, f, out)
			testutil.AssertChildren(t, out, "root", "1", "2", "3")
		})
	}
}

func TestMoveIsCopyOnWrite(t *testing.T) {
	f := testutil.Sample()
	out, _ := catalog.Move(f, folderMove("1", "root", "2", catalog.Inside, "2"))

	replaced := map[string]bool{}
	for i := range f.Nodes {
		if f.Nodes[i] != out.Nodes[i] {
			replaced[f.Nodes[i].ID] = true
		}
	}
	if len(replaced) != 2 || !replaced["root"] || !replaced["2"] {
		t.Errorf("replaced folders = %v, want root and 2", replaced)
	}
	if &f.Services[0] != &out.Services[0] {
		t.Error("services slice was copied")
	}
}

// A folder moved inside itself or any of its descendants never changes the
// forest, whatever its shape.
func TestMoveIntoDescendantIsRejected_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := testutil.DefaultConfig()
		cfg.Seed = rapid.Int64Range(1, 1<<40).Draw(t, "seed")
		size := rapid.IntRange(1, 25).Draw(t, "size")
		f := testutil.New(cfg).Random(size, 3, 3)

		moved := f.Nodes[rapid.IntRange(0, size-1).Draw(t, "moved")]
		below := descendants(f, moved.ID)
		below = append(below, moved.ID)
		target := below[rapid.IntRange(0, len(below)-1).Draw(t, "target")]

		out, changed := catalog.Move(f, folderMove(moved.ID, "", target, catalog.Inside, target))
		if changed {
			t.Fatalf("moving %s inside %s changed the forest", moved.ID, target)
		}
		for i := range f.Nodes {
			if f.Nodes[i] != out.Nodes[i] {
				t.Fatalf("folder %s replaced", f.Nodes[i].ID)
			}
		}
	})
}

// Any accepted move keeps the forest a valid single-rooted tree and keeps
// every item reference exactly once.
func TestMoveKeepsForestValid_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cfg := testutil.DefaultConfig()
		cfg.Seed = rapid.Int64Range(1, 1<<40).Draw(t, "seed")
		size := rapid.IntRange(2, 20).Draw(t, "size")
		f := testutil.New(cfg).Random(size, 4, 4)
		before := allItems(f)

		moved := f.Nodes[rapid.IntRange(0, size-1).Draw(t, "moved")]
		sibling := f.Nodes[rapid.IntRange(0, size-1).Draw(t, "sibling")]
		pos := rapid.SampledFrom([]catalog.Position{catalog.Before, catalog.After, catalog.Inside}).Draw(t, "pos")

		out, changed := catalog.Move(f, folderMove(moved.ID, "", "", pos, sibling.ID))
		if !changed {
			return
		}
		if err := catalog.Validate(out); err != nil {
			t.Fatalf("move %s %s %s broke the forest: %v", moved.ID, pos, sibling.ID, err)
		}
		if got := allItems(out); !slices.Equal(got, before) {
			t.Fatalf("items changed: %v -> %v", before, got)
		}
	})
}

func descendants(f catalog.Forest, id string) []string {
	var out []string
	n, _ := f.Node(id)
	if n == nil {
		return nil
	}
	for _, c := range n.Children {
		out = append(out, c)
		out = append(out, descendants(f, c)...)
	}
	return out
}

func allItems(f catalog.Forest) []string {
	var out []string
	for _, n := range f.Nodes {
		for _, it := range n.Items {
			out = append(out, fmt.Sprintf("%s/%s", it.Kind, it.ID))
		}
	}
	slices.Sort(out)
	return out
}
