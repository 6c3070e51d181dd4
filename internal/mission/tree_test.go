package mission

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetRootOnce(t *testing.T) {
	tree := NewAgentTree()
	root := Node{ID: NewAgentID(), Kind: KindNode, Task: "root task"}
	require.NoError(t, tree.SetRoot(root))

	err := tree.SetRoot(Node{ID: NewAgentID(), Kind: KindNode, Task: "second root"})
	require.ErrorIs(t, err, ErrRootAlreadyExists)

	got, ok := tree.Root()
	require.True(t, ok)
	require.Equal(t, root.ID, got.ID)
}

func TestAddChildRequiresExistingParent(t *testing.T) {
	tree := NewAgentTree()
	err := tree.AddChild(NewAgentID(), Node{ID: NewAgentID(), Kind: KindLeaf})
	require.Error(t, err)
	var notFound ErrParentNotFound
	require.ErrorAs(t, err, &notFound)
}

func TestAddChildRejectsDuplicateID(t *testing.T) {
	tree := NewAgentTree()
	root := Node{ID: NewAgentID(), Kind: KindNode}
	require.NoError(t, tree.SetRoot(root))

	dup := Node{ID: root.ID, Kind: KindLeaf}
	err := tree.AddChild(root.ID, dup)
	var exists ErrAgentAlreadyExists
	require.ErrorAs(t, err, &exists)
}

func TestChildrenReturnedInInsertionOrder(t *testing.T) {
	tree := NewAgentTree()
	root := Node{ID: NewAgentID(), Kind: KindNode}
	require.NoError(t, tree.SetRoot(root))

	var ids []AgentID
	for i := 0; i < 3; i++ {
		id := NewAgentID()
		ids = append(ids, id)
		require.NoError(t, tree.AddChild(root.ID, Node{ID: id, Kind: KindLeaf}))
	}

	children := tree.Children(root.ID)
	require.Len(t, children, 3)
	for i, c := range children {
		require.Equal(t, ids[i], c.ID)
		require.Equal(t, root.ID, c.ParentID)
	}
}

func TestFindByKind(t *testing.T) {
	tree := NewAgentTree()
	root := Node{ID: NewAgentID(), Kind: KindNode}
	require.NoError(t, tree.SetRoot(root))

	leaf1 := Node{ID: NewAgentID(), Kind: KindLeaf}
	leaf2 := Node{ID: NewAgentID(), Kind: KindLeaf}
	require.NoError(t, tree.AddChild(root.ID, leaf1))
	require.NoError(t, tree.AddChild(root.ID, leaf2))

	leaves := tree.FindByKind(KindLeaf)
	require.Len(t, leaves, 2)

	nodes := tree.FindByKind(KindNode)
	require.Len(t, nodes, 1)
}

func TestLenCountsAllNodes(t *testing.T) {
	tree := NewAgentTree()
	require.Equal(t, 0, tree.Len())

	root := Node{ID: NewAgentID(), Kind: KindNode}
	require.NoError(t, tree.SetRoot(root))
	require.NoError(t, tree.AddChild(root.ID, Node{ID: NewAgentID(), Kind: KindLeaf}))

	require.Equal(t, 2, tree.Len())
}

func TestGetUnknownIDReturnsFalse(t *testing.T) {
	tree := NewAgentTree()
	_, ok := tree.Get(NewAgentID())
	require.False(t, ok)
}
