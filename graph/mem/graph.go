package mem

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/warriorguo/canvasflow/types"
)

var (
	_ types.Graph = &Graph{}
)

func NewGraph() *Graph {
	return NewGraphWithErrHandler(defaultNoErr)
}

func NewGraphWithErrHandler(errHandler func() error) *Graph {
	return &Graph{
		nodes:          make(map[string]*types.Node),
		subs:           make(map[string]map[uint64]func(*types.Node)),
		mockErrHandler: errHandler,
	}
}

func defaultNoErr() error {
	return nil
}

/**
 * Graph is an in-memory canvas. Change callbacks run synchronously on the
 * goroutine calling UpdateNode, after the graph lock is released.
 */
type Graph struct {
	mu sync.RWMutex

	mockErrHandler func() error

	nodes     map[string]*types.Node
	nodeOrder []string
	edges     []*types.Edge

	subMu  sync.Mutex
	subSeq uint64
	subs   map[string]map[uint64]func(*types.Node)
	unsubs int
}

func newID(prefix string) string {
	return prefix + "_" + uuid.New().String()
}

func (g *Graph) AddNode(ctx context.Context, kind types.NodeKind, pos types.Position, data types.Data) (string, error) {
	if err := g.mockErrHandler(); err != nil {
		return "", errors.Trace(err)
	}

	node := &types.Node{
		ID:       newID("node"),
		Kind:     kind,
		Position: pos,
		Data:     data.Clone(),
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[node.ID] = node
	g.nodeOrder = append(g.nodeOrder, node.ID)
	return node.ID, nil
}

func (g *Graph) AddEdge(ctx context.Context, spec types.EdgeSpec) (string, error) {
	if err := g.mockErrHandler(); err != nil {
		return "", errors.Trace(err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.nodes[spec.Source]; !exists {
		return "", errors.NotFoundf("edge source %s", spec.Source)
	}
	if _, exists := g.nodes[spec.Target]; !exists {
		return "", errors.NotFoundf("edge target %s", spec.Target)
	}

	edge := &types.Edge{
		ID:           newID("edge"),
		Source:       spec.Source,
		Target:       spec.Target,
		SourceHandle: spec.SourceHandle,
		TargetHandle: spec.TargetHandle,
		Kind:         spec.Kind,
		Order:        spec.Order,
	}
	g.edges = append(g.edges, edge)
	return edge.ID, nil
}

func (g *Graph) Node(ctx context.Context, id string) (*types.Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	node, exists := g.nodes[id]
	if !exists {
		return nil, errors.NotFoundf("node %s", id)
	}
	return node.Clone(), nil
}

// Nodes returns snapshots in creation order.
func (g *Graph) Nodes(ctx context.Context) ([]*types.Node, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes := make([]*types.Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		nodes = append(nodes, g.nodes[id].Clone())
	}
	return nodes, nil
}

func (g *Graph) Edges(ctx context.Context) ([]*types.Edge, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	edges := make([]*types.Edge, 0, len(g.edges))
	for _, e := range g.edges {
		c := *e
		edges = append(edges, &c)
	}
	return edges, nil
}

func (g *Graph) UpdateNode(ctx context.Context, id string, data types.Data) error {
	if err := g.mockErrHandler(); err != nil {
		return errors.Trace(err)
	}

	g.mu.Lock()
	node, exists := g.nodes[id]
	if !exists {
		g.mu.Unlock()
		return errors.NotFoundf("node %s", id)
	}
	node.Data.Merge(data)
	snapshot := node.Clone()
	g.mu.Unlock()

	for _, cb := range g.callbacks(id) {
		cb(snapshot.Clone())
	}
	return nil
}

func (g *Graph) OnNodeChange(id string, callback func(node *types.Node)) func() {
	g.subMu.Lock()
	defer g.subMu.Unlock()

	g.subSeq++
	seq := g.subSeq
	if g.subs[id] == nil {
		g.subs[id] = make(map[uint64]func(*types.Node))
	}
	g.subs[id][seq] = callback

	var once sync.Once
	return func() {
		once.Do(func() {
			g.subMu.Lock()
			defer g.subMu.Unlock()

			delete(g.subs[id], seq)
			if len(g.subs[id]) == 0 {
				delete(g.subs, id)
			}
			g.unsubs++
		})
	}
}

func (g *Graph) callbacks(id string) []func(*types.Node) {
	g.subMu.Lock()
	defer g.subMu.Unlock()

	cbs := make([]func(*types.Node), 0, len(g.subs[id]))
	for _, cb := range g.subs[id] {
		cbs = append(cbs, cb)
	}
	return cbs
}

// Subscriptions counts live change subscriptions across all nodes.
func (g *Graph) Subscriptions() int {
	g.subMu.Lock()
	defer g.subMu.Unlock()

	n := 0
	for _, m := range g.subs {
		n += len(m)
	}
	return n
}

// Unsubscribes counts how many subscriptions have been released so far.
func (g *Graph) Unsubscribes() int {
	g.subMu.Lock()
	defer g.subMu.Unlock()
	return g.unsubs
}

// NodeCount is a cheap len(Nodes()).
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodeOrder)
}
