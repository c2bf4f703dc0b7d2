package canvasflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warriorguo/canvasflow/graph/mem"
	"github.com/warriorguo/canvasflow/llm"
	"github.com/warriorguo/canvasflow/simulator"
	"github.com/warriorguo/canvasflow/types"
)

const storyboardAnswer = "Here is the plan:\n```json\n" + `{
  "workflow_type": "storyboard",
  "description": "a knight crossing a forest",
  "character": {"name": "Knight", "description": "silver armor, red cape"},
  "shots": [
    {"title": "Forest gate", "prompt": "the knight stands at the forest gate"},
    {"title": "River", "prompt": "the knight crosses a river"},
    {"title": "Castle", "prompt": "the knight reaches the castle"}
  ]
}` + "\n```"

func newSimulated(t *testing.T, completer types.ChatCompleter) (types.Orchestrator, *mem.Graph) {
	g := mem.NewGraph()
	sim := simulator.New(g, simulator.NewOptions(
		simulator.WithLatency(5*time.Millisecond),
		simulator.WithPollInterval(5*time.Millisecond)))
	t.Cleanup(func() { sim.Close(context.Background()) })

	orch, err := NewOrchestrator(g, completer, testOptions()...)
	require.Nil(t, err)
	return orch, g
}

func testOptions() []types.Option {
	return []types.Option{
		types.EnableMemStore(),
		types.WithStageTimeout(5 * time.Second),
		types.WithImageModel("sim-image", "1024x1024"),
		types.WithVideoModel("sim-video"),
	}
}

func TestNewOrchestratorNilGraph(t *testing.T) {
	_, err := NewOrchestrator(nil, llm.NewHeuristic())
	assert.NotNil(t, err)
}

func TestStoryboardEndToEnd(t *testing.T) {
	ctx := context.Background()
	completer := llm.NewScripted(storyboardAnswer)
	orch, g := newSimulated(t, completer)

	plan, result, err := orch.Run(ctx, "画一个骑士穿过森林的分镜", types.Position{X: 100, Y: 100})
	require.Nil(t, err)
	require.Equal(t, types.Storyboard, plan.WorkflowType)
	require.Equal(t, 3, len(plan.Shots))
	require.Equal(t, 1, len(completer.Requests()))
	assert.Equal(t, "gpt-4o", completer.Requests()[0].Model)

	// character stage plus one stage per shot
	require.Equal(t, 4, len(result.Stages))
	for _, stage := range result.Stages {
		assert.NotEmpty(t, stage.OutputNodeID, stage.Name)
	}

	progress := orch.Progress()
	assert.Equal(t, types.Finished, progress.Status)
	assert.Equal(t, 8, progress.TotalSteps)
	assert.Equal(t, progress.TotalSteps, progress.CurrentStep)

	character := result.Stage("character")
	require.NotNil(t, character)
	edges, err := g.Edges(ctx)
	require.Nil(t, err)
	imageRefs := 0
	for _, e := range edges {
		if e.Kind == types.EdgeImageOrder {
			assert.Equal(t, character.OutputNodeID, e.Source)
			assert.Equal(t, 1, e.Order)
			imageRefs++
		}
	}
	assert.Equal(t, 3, imageRefs)

	configs := 0
	nodes, err := g.Nodes(ctx)
	require.Nil(t, err)
	for _, n := range nodes {
		if n.Kind == types.NodeImageConfig {
			configs++
			model, _ := n.Data.GetString(types.KeyModel)
			size, _ := n.Data.GetString(types.KeySize)
			assert.Equal(t, "sim-image", model)
			assert.Equal(t, "1024x1024", size)
		}
	}
	assert.Equal(t, 4, configs)

	record, err := orch.GetSessionRecord(ctx, result.SessionID)
	require.Nil(t, err)
	assert.Equal(t, types.Finished, record.Status)
	assert.Equal(t, types.Storyboard, record.Plan.WorkflowType)

	dot, err := orch.RenderResult(ctx, result)
	require.Nil(t, err)
	assert.Contains(t, dot, "cluster_character")
	assert.Contains(t, dot, "cluster_shot_3")
}

func TestVideoEndToEnd(t *testing.T) {
	ctx := context.Background()
	orch, g := newSimulated(t, llm.NewHeuristic())

	plan, result, err := orch.Run(ctx, "画一只猫，然后变成视频", types.Position{})
	require.Nil(t, err)
	assert.Equal(t, types.TextToImageToVideo, plan.WorkflowType)

	video := result.Stage("video")
	require.NotNil(t, video)
	require.Equal(t, 1, len(video.NodeIDs))

	config, err := g.Node(ctx, video.NodeIDs[0])
	require.Nil(t, err)
	assert.Equal(t, types.NodeVideoConfig, config.Kind)
	model, _ := config.Data.GetString(types.KeyModel)
	assert.Equal(t, "sim-video", model)
	assert.Equal(t, 4, orch.Progress().TotalSteps)
}
