package mem

import (
	"context"
	"fmt"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/warriorguo/canvasflow/types"
)

func TestGraphNodesAndEdges(t *testing.T) {
	ctx := context.Background()
	g := NewGraph()

	textID, err := g.AddNode(ctx, types.NodeText, types.Position{X: 0, Y: 0}, types.Data{types.KeyContent: "a dog"})
	assert.Nil(t, err)
	configID, err := g.AddNode(ctx, types.NodeImageConfig, types.Position{X: 400, Y: 0}, types.Data{types.KeyAutoExecute: true})
	assert.Nil(t, err)

	edgeID, err := g.AddEdge(ctx, types.EdgeSpec{Source: textID, Target: configID, Kind: types.EdgePromptOrder, Order: 1})
	assert.Nil(t, err)
	assert.NotEmpty(t, edgeID)

	_, err = g.AddEdge(ctx, types.EdgeSpec{Source: "missing", Target: configID})
	assert.True(t, errors.IsNotFound(err))

	nodes, err := g.Nodes(ctx)
	assert.Nil(t, err)
	assert.Equal(t, 2, len(nodes))
	assert.Equal(t, textID, nodes[0].ID)
	assert.Equal(t, configID, nodes[1].ID)

	edges, err := g.Edges(ctx)
	assert.Nil(t, err)
	assert.Equal(t, 1, len(edges))
	assert.Equal(t, types.EdgePromptOrder, edges[0].Kind)
	assert.Equal(t, 1, edges[0].Order)

	// snapshots are detached from the graph
	nodes[0].Data.Set(types.KeyContent, "a cat")
	node, err := g.Node(ctx, textID)
	assert.Nil(t, err)
	assert.Equal(t, "a dog", node.Data[types.KeyContent])

	_, err = g.Node(ctx, "missing")
	assert.True(t, errors.IsNotFound(err))
}

func TestGraphChangeSubscription(t *testing.T) {
	ctx := context.Background()
	g := NewGraph()

	id, err := g.AddNode(ctx, types.NodeImage, types.Position{}, types.Data{types.KeyLoading: true})
	assert.Nil(t, err)

	seen := make([]*types.Node, 0)
	unsubscribe := g.OnNodeChange(id, func(node *types.Node) {
		seen = append(seen, node)
	})
	assert.Equal(t, 1, g.Subscriptions())

	assert.Nil(t, g.UpdateNode(ctx, id, types.Data{types.KeyURL: "sim://image/1"}))
	assert.Nil(t, g.UpdateNode(ctx, id, types.Data{types.KeyLoading: false}))
	assert.Equal(t, 2, len(seen))
	assert.Equal(t, "sim://image/1", seen[1].Data[types.KeyURL])
	assert.Equal(t, false, seen[1].Data[types.KeyLoading])

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, g.Subscriptions())
	assert.Equal(t, 1, g.Unsubscribes())

	assert.Nil(t, g.UpdateNode(ctx, id, types.Data{types.KeyError: "boom"}))
	assert.Equal(t, 2, len(seen))

	assert.True(t, errors.IsNotFound(g.UpdateNode(ctx, "missing", types.Data{})))
}

func TestGraphErrHandler(t *testing.T) {
	g := NewGraphWithErrHandler(func() error {
		return fmt.Errorf("graph unavailable")
	})
	_, err := g.AddNode(context.Background(), types.NodeText, types.Position{}, nil)
	assert.NotNil(t, err)
	assert.Equal(t, 0, g.NodeCount())
}
