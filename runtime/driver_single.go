package runtime

import (
	"github.com/juju/errors"
	"github.com/warriorguo/canvasflow/types"
)

/**
 * singleDriver creates prompt -> imageConfig and returns right away,
 * the backend picks the config up through autoExecute.
 */
type singleDriver struct {
	plan *types.Plan
}

func (d *singleDriver) workflowType() types.WorkflowType { return types.TextToImage }

func (d *singleDriver) totalSteps() int { return 2 }

func (d *singleDriver) run(e *execution) error {
	e.logf(types.LogInfo, "starting text-to-image workflow")
	if err := d.execute(e); err != nil {
		e.logf(types.LogError, "text-to-image workflow failed: %v", err)
		return errors.Trace(err)
	}
	e.logf(types.LogSuccess, "text-to-image workflow started")
	return nil
}

func (d *singleDriver) execute(e *execution) error {
	promptPos := e.origin
	textID, err := e.createPrompt(stagePrompt, d.plan.ImagePrompt, "Image prompt", promptPos)
	if err != nil {
		return err
	}

	configPos := types.Position{X: promptPos.X + e.opts.ColumnSpacing, Y: promptPos.Y}
	configID, err := e.createConfig(stageImage, types.NodeImageConfig, "Text to image", configPos)
	if err != nil {
		return err
	}
	return e.connect(stageImage, textID, configID, types.EdgePlain, 0)
}
