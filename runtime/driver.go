package runtime

import (
	"context"

	"github.com/juju/errors"
	"github.com/warriorguo/canvasflow/types"
)

const (
	stagePrompt         = "prompt"
	stageImage          = "image"
	stageVideoPrompt    = "video_prompt"
	stageVideo          = "video"
	stageCharacter      = "character"
	stageShotNamePrefix = "shot_"
)

type driver interface {
	workflowType() types.WorkflowType
	// totalSteps is known before anything is created.
	totalSteps() int
	run(e *execution) error
}

// selectDriver never fails, an unknown or missing type runs as text_to_image.
func selectDriver(plan *types.Plan) driver {
	switch plan.WorkflowType {
	case types.Storyboard:
		return &storyboardDriver{plan: plan}
	case types.TextToImageToVideo:
		return &videoDriver{plan: plan}
	}
	return &singleDriver{plan: plan}
}

/**
 * execution carries the state of one driver run: the stages created so far
 * and the session progress is reported to.
 */
type execution struct {
	ctx      context.Context
	sess     *session
	builder  *stageBuilder
	observer *observer
	opts     *types.Options
	origin   types.Position
	result   *types.Result
}

func (e *execution) stage(name string) *types.StageResult {
	if st := e.result.Stage(name); st != nil {
		return st
	}
	st := &types.StageResult{Name: name, NodeIDs: make([]string, 0)}
	e.result.Stages = append(e.result.Stages, st)
	return st
}

func (e *execution) checkAbandoned() error {
	if e.sess.isAbandoned() {
		return errors.Trace(types.ErrAbandoned)
	}
	return errors.Trace(e.ctx.Err())
}

func (e *execution) logf(typ types.LogType, format string, args ...any) {
	e.sess.addLog(typ, format, args...)
}

func (e *execution) createPrompt(stageName, text, label string, pos types.Position) (string, error) {
	if err := e.checkAbandoned(); err != nil {
		return "", err
	}
	step := e.sess.nextStep()
	id, err := e.builder.buildPromptStage(e.ctx, text, label, pos)
	if err != nil {
		e.sess.stepLog(step, types.LogError, "failed to create prompt node %q: %v", label, err)
		return "", errors.Trace(err)
	}
	st := e.stage(stageName)
	st.NodeIDs = append(st.NodeIDs, id)
	e.sess.stepLog(step, types.LogInfo, "created prompt node %s (%s)", id, label)
	return id, nil
}

func (e *execution) createConfig(stageName string, kind types.NodeKind, label string, pos types.Position) (string, error) {
	if err := e.checkAbandoned(); err != nil {
		return "", err
	}
	step := e.sess.nextStep()
	id, err := e.builder.buildGenerationStage(e.ctx, kind, label, pos, true)
	if err != nil {
		e.sess.stepLog(step, types.LogError, "failed to create %s node %q: %v", kind, label, err)
		return "", errors.Trace(err)
	}
	st := e.stage(stageName)
	st.NodeIDs = append(st.NodeIDs, id)
	e.sess.stepLog(step, types.LogInfo, "created %s node %s (%s)", kind, id, label)
	return id, nil
}

func (e *execution) connect(stageName, source, target string, kind types.EdgeKind, order int) error {
	id, err := e.builder.wire(e.ctx, source, target, kind, order)
	if err != nil {
		e.logf(types.LogError, "failed to connect %s -> %s: %v", source, target, err)
		return errors.Trace(err)
	}
	st := e.stage(stageName)
	st.EdgeIDs = append(st.EdgeIDs, id)
	return nil
}

/**
 * awaitOutput waits for configID to report its output node, then for that
 * node to become ready. The resolved node is recorded on the stage.
 */
func (e *execution) awaitOutput(stageName, configID string) (*types.Node, error) {
	outputID, err := await(e.ctx, e.sess.abandoned(), e.observer.awaitConfigOutput(e.ctx, configID))
	if err != nil {
		return nil, errors.Trace(err)
	}
	e.stage(stageName).OutputNodeID = outputID

	node, err := await(e.ctx, e.sess.abandoned(), e.observer.awaitOutputReady(e.ctx, outputID))
	if err != nil {
		return nil, errors.Trace(err)
	}
	return node, nil
}

// columnRight places the next column one spacing right of the resolved node.
func (e *execution) columnRight(node *types.Node, fallback types.Position) float64 {
	if node == nil {
		return fallback.X + e.opts.ColumnSpacing
	}
	return node.Position.X + e.opts.ColumnSpacing
}
