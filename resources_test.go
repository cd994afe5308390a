package pe

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"

	"github.com/wanglei-coder/pefeatures/internal/petest"
)

const rsrcBase = 0x4000

func resourceImage(nodes []*petest.ResourceNode) []byte {
	tree := petest.ResourceTree(rsrcBase, nodes)
	b := petest.New(false)
	b.AddSection(".text", 0x1000, make([]byte, 0x10))
	b.AddSection(".rsrc", rsrcBase, tree)
	b.SetDirectory(petest.DirResource, rsrcBase, uint32(len(tree)))
	return b.Bytes()
}

func leaf(lang uint32, data []byte) *petest.ResourceNode {
	return &petest.ResourceNode{ID: lang, Data: data}
}

func TestFile_Resources(t *testing.T) {
	tests := []struct {
		name       string
		nodes      []*petest.ResourceNode
		wantLeaves int
		truncated  bool
	}{
		{
			name: "one type two ids one language",
			nodes: []*petest.ResourceNode{
				{ID: 3, Children: []*petest.ResourceNode{
					{ID: 1, Children: []*petest.ResourceNode{leaf(0x409, []byte("icon one"))}},
					{ID: 2, Children: []*petest.ResourceNode{leaf(0x409, []byte("icon two"))}},
				}},
			},
			wantLeaves: 2,
		},
		{
			name: "named type",
			nodes: []*petest.ResourceNode{
				{Name: "PAYLOAD", Children: []*petest.ResourceNode{
					{ID: 101, Children: []*petest.ResourceNode{leaf(0, bytes.Repeat([]byte{0xaa}, 64))}},
				}},
				{ID: 10, Children: []*petest.ResourceNode{
					{ID: 1, Children: []*petest.ResourceNode{leaf(0x409, []byte{1, 2, 3})}},
				}},
			},
			wantLeaves: 2,
		},
		{
			name: "broken sibling subtree",
			nodes: []*petest.ResourceNode{
				{ID: 3, Children: []*petest.ResourceNode{
					{ID: 1, Children: []*petest.ResourceNode{leaf(0x409, []byte("kept"))}},
				}},
				{ID: 5, BrokenDir: true},
				{ID: 6, Children: []*petest.ResourceNode{
					{ID: 1, Children: []*petest.ResourceNode{leaf(0x409, []byte("kept too"))}},
				}},
			},
			wantLeaves: 2,
			truncated:  true,
		},
		{
			name: "unresolvable payload dropped",
			nodes: []*petest.ResourceNode{
				{ID: 3, Children: []*petest.ResourceNode{
					{ID: 1, Children: []*petest.ResourceNode{
						leaf(0x409, []byte("good")),
						{ID: 0x407, Data: []byte("bad"), DataRVA: 0x9000},
					}},
				}},
			},
			wantLeaves: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := mustParse(t, resourceImage(tt.nodes), nil)
			root, err := f.Resources()
			if err != nil {
				t.Fatalf("Resources() error = %v", err)
			}
			if got := len(root.Leaves()); got != tt.wantLeaves {
				t.Errorf("len(Leaves()) = %d, want %d", got, tt.wantLeaves)
			}
			if root.Truncated != tt.truncated {
				t.Errorf("Truncated = %v, want %v", root.Truncated, tt.truncated)
			}
		})
	}
}

func TestFile_ResourceLeaf(t *testing.T) {
	payload := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	nodes := []*petest.ResourceNode{
		{Name: "CUSTOM", Children: []*petest.ResourceNode{
			{ID: 7, Children: []*petest.ResourceNode{leaf(0x0c09, payload)}},
		}},
	}
	f := mustParse(t, resourceImage(nodes), nil)
	root, err := f.Resources()
	if err != nil {
		t.Fatal(err)
	}

	if got := GetResourceTypeName(root.Entries[0]); got != "CUSTOM" {
		t.Errorf("GetResourceTypeName() = %q, want CUSTOM", got)
	}
	leaves := root.Leaves()
	if len(leaves) != 1 {
		t.Fatalf("len(Leaves()) = %d, want 1", len(leaves))
	}
	l := leaves[0]
	if l.Lang != 0x09 || l.SubLang != 0x03 {
		t.Errorf("Lang = 0x%x, SubLang = 0x%x", l.Lang, l.SubLang)
	}
	if l.Struct.Size != uint32(len(payload)) || l.Entropy != 3 {
		t.Errorf("Size = %d, Entropy = %v", l.Struct.Size, l.Entropy)
	}
	data, err := f.ResourceData(l)
	if err != nil || !bytes.Equal(data, payload) {
		t.Errorf("ResourceData() = %v, %v", data, err)
	}
}

func TestFile_ResourcesBounds(t *testing.T) {
	deep := []*petest.ResourceNode{
		{ID: 3, Children: []*petest.ResourceNode{
			{ID: 1, Children: []*petest.ResourceNode{leaf(0x409, []byte("x"))}},
		}},
	}

	t.Run("depth", func(t *testing.T) {
		f := mustParse(t, resourceImage(deep), &Options{MaxResourceDepth: 2})
		root, err := f.Resources()
		if err != nil {
			t.Fatal(err)
		}
		if n := len(root.Leaves()); n != 0 {
			t.Errorf("len(Leaves()) = %d, want 0", n)
		}
	})

	t.Run("entries", func(t *testing.T) {
		f := mustParse(t, resourceImage(deep), &Options{MaxResourceLeaves: 1, MaxResourceEntries: 1})
		root, err := f.Resources()
		if err != nil {
			t.Fatal(err)
		}
		if n := len(root.Leaves()); n != 1 {
			t.Errorf("len(Leaves()) = %d, want 1", n)
		}
	})

	t.Run("self reference", func(t *testing.T) {
		tree := make([]byte, 24)
		binary.LittleEndian.PutUint16(tree[14:], 1)
		binary.LittleEndian.PutUint32(tree[16:], 3)
		binary.LittleEndian.PutUint32(tree[20:], 0x80000000)

		b := petest.New(false)
		b.AddSection(".rsrc", rsrcBase, tree)
		b.SetDirectory(petest.DirResource, rsrcBase, uint32(len(tree)))
		f := mustParse(t, b.Bytes(), nil)

		root, err := f.Resources()
		if err != nil {
			t.Fatal(err)
		}
		if len(root.Entries) != 0 || !root.Truncated {
			t.Errorf("Resources() = %+v", root)
		}
	})

	t.Run("unresolvable root", func(t *testing.T) {
		b := petest.New(false).AddSection(".text", 0x1000, make([]byte, 0x10))
		b.SetDirectory(petest.DirResource, 0x7000, 0x100)
		f := mustParse(t, b.Bytes(), nil)
		if _, err := f.Resources(); !errors.Is(err, ErrUnresolvableRva) {
			t.Errorf("Resources() error = %v, want ErrUnresolvableRva", err)
		}
	})

	t.Run("absent", func(t *testing.T) {
		f := mustParse(t, petest.New(false).AddSection(".text", 0x1000, make([]byte, 0x10)).Bytes(), nil)
		root, err := f.Resources()
		if root != nil || err != nil {
			t.Errorf("Resources() = %v, %v, want nil, nil", root, err)
		}
		if root.Leaves() != nil {
			t.Error("nil directory has leaves")
		}
	})
}

func TestResourceDirectory_LanguageLeaves(t *testing.T) {
	oddDepths := func() []*petest.ResourceNode {
		return []*petest.ResourceNode{
			leaf(3, []byte("type level")),
			{ID: 4, Children: []*petest.ResourceNode{leaf(1, []byte("id level"))}},
			{ID: 5, Children: []*petest.ResourceNode{
				{ID: 1, Children: []*petest.ResourceNode{
					{ID: 0x409, Children: []*petest.ResourceNode{leaf(0, []byte("fourth level"))}},
				}},
			}},
		}
	}

	tests := []struct {
		name          string
		nodes         []*petest.ResourceNode
		wantLeaves    int
		wantLanguages []string
	}{
		{
			name:       "leaves at depth one two and four",
			nodes:      oddDepths(),
			wantLeaves: 3,
		},
		{
			name: "language directory ends the walk",
			nodes: append([]*petest.ResourceNode{
				{ID: 2, Children: []*petest.ResourceNode{
					{ID: 1, Children: []*petest.ResourceNode{leaf(0x409, []byte("before"))}},
				}},
			}, append(oddDepths(), &petest.ResourceNode{ID: 6, Children: []*petest.ResourceNode{
				{ID: 1, Children: []*petest.ResourceNode{leaf(0x409, []byte("after"))}},
			}})...),
			wantLeaves:    5,
			wantLanguages: []string{"before"},
		},
		{
			name: "one type two ids",
			nodes: []*petest.ResourceNode{
				{ID: 3, Children: []*petest.ResourceNode{
					{ID: 1, Children: []*petest.ResourceNode{leaf(0x409, []byte("one"))}},
					{ID: 2, Children: []*petest.ResourceNode{leaf(0x409, []byte("two"))}},
				}},
			},
			wantLeaves:    2,
			wantLanguages: []string{"one", "two"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := mustParse(t, resourceImage(tt.nodes), nil)
			root, err := f.Resources()
			if err != nil {
				t.Fatal(err)
			}
			if got := len(root.Leaves()); got != tt.wantLeaves {
				t.Errorf("len(Leaves()) = %d, want %d", got, tt.wantLeaves)
			}
			got := root.LanguageLeaves()
			if len(got) != len(tt.wantLanguages) {
				t.Fatalf("len(LanguageLeaves()) = %d, want %d", len(got), len(tt.wantLanguages))
			}
			for i, l := range got {
				data, err := f.ResourceData(l)
				if err != nil || string(data) != tt.wantLanguages[i] {
					t.Errorf("LanguageLeaves()[%d] = %q, %v, want %q", i, data, err, tt.wantLanguages[i])
				}
			}
		})
	}

	var nilDir *ResourceDirectory
	if nilDir.LanguageLeaves() != nil {
		t.Error("nil directory has language leaves")
	}
}
