package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/juju/errors"

	"github.com/warriorguo/canvasflow/types"
	"github.com/warriorguo/canvasflow/utils"
)

// RenderGraph renders every node and edge of graph as Graphviz DOT.
func RenderGraph(ctx context.Context, graph types.Graph) (string, error) {
	nodes, edges, err := readGraph(ctx, graph)
	if err != nil {
		return "", errors.Trace(err)
	}
	r := newGraphRenderer(nodes)
	return r.generateDOT("canvas", nil, edges), nil
}

// renderResult renders the nodes created by one execution, one cluster per stage.
func renderResult(ctx context.Context, graph types.Graph, result *types.Result) (string, error) {
	if result == nil {
		return "", errors.NotValidf("nil result")
	}
	nodes, edges, err := readGraph(ctx, graph)
	if err != nil {
		return "", errors.Trace(err)
	}
	r := newGraphRenderer(nodes)
	return r.generateDOT(result.SessionID, result.Stages, edges), nil
}

func readGraph(ctx context.Context, graph types.Graph) (map[string]*types.Node, []*types.Edge, error) {
	nodeList, err := graph.Nodes(ctx)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	edges, err := graph.Edges(ctx)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	nodes := make(map[string]*types.Node, len(nodeList))
	for _, n := range nodeList {
		nodes[n.ID] = n
	}
	return nodes, edges, nil
}

func newGraphRenderer(nodes map[string]*types.Node) *graphRenderer {
	return &graphRenderer{nodes: nodes, drawn: make(map[string]bool), sb: &strings.Builder{}}
}

type graphRenderer struct {
	nodes map[string]*types.Node
	drawn map[string]bool
	sb    *strings.Builder
}

/**
 * generateDOT draws stages as clusters. With no stages every node of the
 * graph is drawn, otherwise only the stage nodes and the edges between them.
 */
func (d *graphRenderer) generateDOT(name string, stages []*types.StageResult, edges []*types.Edge) string {
	d.write("digraph D {")
	d.write("rankdir=LR")

	if len(stages) == 0 {
		for _, id := range utils.SortedKeys(d.nodes) {
			d.drawNode(id)
		}
	}
	for _, stage := range stages {
		ids := append(append([]string{}, stage.NodeIDs...), stage.OutputNodeID)
		d.write("subgraph cluster_%s {", idString(stage.Name))
		d.write("style=filled")
		d.write("color=lightgrey")
		for _, id := range utils.UniqueSlice(ids) {
			if id != "" {
				d.drawNode(id)
			}
		}
		d.write("label=%s", quoteString(stage.Name))
		d.write("}")
	}

	d.drawLinks(edges)
	d.write("label=%s", quoteString(name))
	d.write("}")
	return d.sb.String()
}

// nodeColor is white for prompts and untouched configs, yellow while the
// backend works, green when done and red on error.
func nodeColor(n *types.Node) string {
	if msg, _ := n.Data.GetString(types.KeyError); msg != "" {
		return "red"
	}
	switch {
	case n.Kind.IsConfig():
		if executed, _ := n.Data.GetBool(types.KeyExecuted); executed {
			return "green"
		}
		if auto, _ := n.Data.GetBool(types.KeyAutoExecute); auto {
			return "yellow"
		}
	case n.Kind.IsOutput():
		if loading, _ := n.Data.GetBool(types.KeyLoading); loading {
			return "yellow"
		}
		if url, _ := n.Data.GetString(types.KeyURL); url != "" {
			return "green"
		}
	}
	return "white"
}

func nodeLabel(n *types.Node) string {
	if label, _ := n.Data.GetString(types.KeyLabel); label != "" {
		return fmt.Sprintf("%s\\n%s", n.Kind, label)
	}
	return string(n.Kind)
}

func packToComment(data types.Data) string {
	s, _ := json.Marshal(data)
	return formatNL(addSlashes(string(s)))
}

func (d *graphRenderer) drawNode(id string) {
	n, exists := d.nodes[id]
	if !exists || d.drawn[id] {
		return
	}
	d.drawn[id] = true

	shape := "record"
	if n.Kind == types.NodeText {
		shape = "note"
	}
	d.write("%s [label=%s shape=%q style=\"filled\" fillcolor=%q comment=\"%s\"]",
		idString(id), quoteString(nodeLabel(n)), shape, nodeColor(n), packToComment(n.Data))
}

func (d *graphRenderer) drawLinks(edges []*types.Edge) {
	for _, e := range edges {
		if !d.drawn[e.Source] || !d.drawn[e.Target] {
			continue
		}
		if e.Kind == types.EdgePlain {
			d.write("%s -> %s", idString(e.Source), idString(e.Target))
			continue
		}
		d.write("%s -> %s [label=%s]", idString(e.Source), idString(e.Target),
			quoteString(fmt.Sprintf("%s #%d", e.Kind, e.Order)))
	}
}

func (d *graphRenderer) write(format string, s ...any) {
	d.sb.WriteString(fmt.Sprintf(format+"\n", s...))
}

var (
	slashesToken = []string{"\\", "\"", "'", " "}
)

func addSlashes(s string) string {
	for _, token := range slashesToken {
		s = strings.ReplaceAll(s, token, "\\"+token)
	}
	return s
}

func formatNL(s string) string {
	return strings.ReplaceAll(s, "\n", "\\n")
}

func quoteString(s string) string {
	return "\"" + strings.ReplaceAll(s, "\"", "\\\"") + "\""
}

var idleChars = []string{" ", "'", "\"", "(", ")", "*", "&", "^", "%", "$", "#", "@", "!", "?", "<", ">", "[", "]", "{", "}", ".", "-"}

func idString(s string) string {
	for _, ch := range idleChars {
		s = strings.ReplaceAll(s, ch, "_")
	}
	return s
}
