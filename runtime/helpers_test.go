package runtime

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/warriorguo/canvasflow/graph/mem"
	"github.com/warriorguo/canvasflow/store"
	"github.com/warriorguo/canvasflow/types"
)

/**
 * countingGraph counts raw unsubscribe calls, without the once guard of the
 * mem graph, so a double release would show up.
 */
type countingGraph struct {
	*mem.Graph

	mu             sync.Mutex
	subscribeCalls int
	releaseCalls   int
}

func newCountingGraph() *countingGraph {
	return &countingGraph{Graph: mem.NewGraph()}
}

func (g *countingGraph) OnNodeChange(id string, callback func(node *types.Node)) func() {
	g.mu.Lock()
	g.subscribeCalls++
	g.mu.Unlock()

	unsubscribe := g.Graph.OnNodeChange(id, callback)
	return func() {
		g.mu.Lock()
		g.releaseCalls++
		g.mu.Unlock()
		unsubscribe()
	}
}

func (g *countingGraph) counts() (subscribes, releases int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.subscribeCalls, g.releaseCalls
}

func testOptions() *types.Options {
	opts := types.NewOptions()
	opts.StageTimeout = 5 * time.Second
	return opts
}

func newTestOrchestrator(g types.Graph, completer types.ChatCompleter, s store.Store, opts *types.Options) *orchestrator {
	if opts == nil {
		opts = testOptions()
	}
	return newOrchestrator(g, completer, s, opts)
}

/**
 * testBackend plays the generation backend by hand so a test decides when
 * each stage finishes.
 */
type testBackend struct {
	t *testing.T
	g types.Graph
}

func (b *testBackend) findNode(match func(n *types.Node) bool) *types.Node {
	nodes, err := b.g.Nodes(context.Background())
	require.Nil(b.t, err)
	for _, n := range nodes {
		if match(n) {
			return n
		}
	}
	return nil
}

func labelIs(kind types.NodeKind, label string) func(n *types.Node) bool {
	return func(n *types.Node) bool {
		l, _ := n.Data.GetString(types.KeyLabel)
		return n.Kind == kind && l == label
	}
}

func labelHasPrefix(kind types.NodeKind, prefix string) func(n *types.Node) bool {
	return func(n *types.Node) bool {
		l, _ := n.Data.GetString(types.KeyLabel)
		return n.Kind == kind && strings.HasPrefix(l, prefix)
	}
}

func (b *testBackend) waitNode(match func(n *types.Node) bool) *types.Node {
	var found *types.Node
	require.Eventually(b.t, func() bool {
		found = b.findNode(match)
		return found != nil
	}, 3*time.Second, time.Millisecond)
	return found
}

func (b *testBackend) waitConfig(kind types.NodeKind, label string) *types.Node {
	return b.waitNode(labelIs(kind, label))
}

// startOutput reports the output node of config while it is still loading.
func (b *testBackend) startOutput(config *types.Node, kind types.NodeKind) string {
	ctx := context.Background()
	pos := types.Position{X: config.Position.X + 400, Y: config.Position.Y}
	outputID, err := b.g.AddNode(ctx, kind, pos, types.Data{types.KeyLoading: true})
	require.Nil(b.t, err)
	_, err = b.g.AddEdge(ctx, types.EdgeSpec{Source: config.ID, Target: outputID})
	require.Nil(b.t, err)
	require.Nil(b.t, b.g.UpdateNode(ctx, config.ID, types.Data{
		types.KeyExecuted:     true,
		types.KeyOutputNodeID: outputID,
	}))
	return outputID
}

func (b *testBackend) finishOutput(outputID string) {
	require.Nil(b.t, b.g.UpdateNode(context.Background(), outputID, types.Data{
		types.KeyURL:     "test://" + outputID,
		types.KeyLoading: false,
	}))
}

func (b *testBackend) complete(kind types.NodeKind, label string) string {
	config := b.waitConfig(kind, label)
	outputKind := types.NodeImage
	if kind == types.NodeVideoConfig {
		outputKind = types.NodeVideo
	}
	outputID := b.startOutput(config, outputKind)
	b.finishOutput(outputID)
	return outputID
}

func (b *testBackend) fail(kind types.NodeKind, label, msg string) {
	config := b.waitConfig(kind, label)
	require.Nil(b.t, b.g.UpdateNode(context.Background(), config.ID, types.Data{types.KeyError: msg}))
}

type execOutcome struct {
	result *types.Result
	err    error
}

func executeAsync(o *orchestrator, plan *types.Plan, pos types.Position) <-chan execOutcome {
	ch := make(chan execOutcome, 1)
	go func() {
		result, err := o.ExecuteWorkflow(context.Background(), plan, pos)
		ch <- execOutcome{result, err}
	}()
	return ch
}

func awaitExec(t *testing.T, ch <-chan execOutcome) execOutcome {
	select {
	case out := <-ch:
		return out
	case <-time.After(5 * time.Second):
		t.Fatal("execution did not return")
	}
	return execOutcome{}
}

func stepEntries(p *types.Progress) []types.LogEntry {
	entries := make([]types.LogEntry, 0)
	for _, e := range p.Log {
		if e.Step > 0 {
			entries = append(entries, e)
		}
	}
	return entries
}

func nodesOfKind(t *testing.T, g types.Graph, kind types.NodeKind) []*types.Node {
	nodes, err := g.Nodes(context.Background())
	require.Nil(t, err)
	matched := make([]*types.Node, 0)
	for _, n := range nodes {
		if n.Kind == kind {
			matched = append(matched, n)
		}
	}
	return matched
}

func hasLog(p *types.Progress, typ types.LogType, substr string) bool {
	for _, e := range p.Log {
		if e.Type == typ && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}
