package runtime

import (
	"context"

	"github.com/juju/errors"
	"github.com/warriorguo/canvasflow/types"
)

/**
 * stageBuilder only creates nodes and edges. Edges always point from a node
 * created earlier to one created later, so the graph stays acyclic.
 */
type stageBuilder struct {
	graph types.Graph
	opts  *types.Options
}

func newStageBuilder(graph types.Graph, opts *types.Options) *stageBuilder {
	return &stageBuilder{graph: graph, opts: opts}
}

func (b *stageBuilder) buildPromptStage(ctx context.Context, text, label string, pos types.Position) (string, error) {
	data := types.Data{types.KeyContent: text}
	if label != "" {
		data.Set(types.KeyLabel, label)
	}
	id, err := b.graph.AddNode(ctx, types.NodeText, pos, data)
	if err != nil {
		return "", errors.Annotatef(err, "create prompt node %q", label)
	}
	return id, nil
}

func (b *stageBuilder) buildGenerationStage(ctx context.Context, kind types.NodeKind, label string, pos types.Position, autoExecute bool) (string, error) {
	if !kind.IsConfig() {
		return "", errors.NotValidf("generation stage of kind %q", kind)
	}

	data := types.Data{types.KeyAutoExecute: autoExecute}
	if label != "" {
		data.Set(types.KeyLabel, label)
	}
	switch kind {
	case types.NodeImageConfig:
		if b.opts.ImageModel != "" {
			data.Set(types.KeyModel, b.opts.ImageModel)
		}
		if b.opts.ImageSize != "" {
			data.Set(types.KeySize, b.opts.ImageSize)
		}
	case types.NodeVideoConfig:
		if b.opts.VideoModel != "" {
			data.Set(types.KeyModel, b.opts.VideoModel)
		}
	}

	id, err := b.graph.AddNode(ctx, kind, pos, data)
	if err != nil {
		return "", errors.Annotatef(err, "create %s node %q", kind, label)
	}
	return id, nil
}

func (b *stageBuilder) wire(ctx context.Context, source, target string, kind types.EdgeKind, order int) (string, error) {
	spec := types.EdgeSpec{
		Source:       source,
		Target:       target,
		SourceHandle: types.HandleRight,
		TargetHandle: types.HandleLeft,
		Kind:         kind,
	}
	if kind != types.EdgePlain {
		spec.Order = order
	}
	id, err := b.graph.AddEdge(ctx, spec)
	if err != nil {
		return "", errors.Annotatef(err, "connect %s -> %s", source, target)
	}
	return id, nil
}
