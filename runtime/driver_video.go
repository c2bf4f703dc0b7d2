package runtime

import (
	"github.com/juju/errors"
	"github.com/warriorguo/canvasflow/types"
)

/**
 * videoDriver chains image -> video. The video config is only created once
 * the image output is ready, and its reference edge starts at the resolved
 * image node, not at the image config.
 */
type videoDriver struct {
	plan *types.Plan
}

func (d *videoDriver) workflowType() types.WorkflowType { return types.TextToImageToVideo }

func (d *videoDriver) totalSteps() int { return 4 }

func (d *videoDriver) run(e *execution) error {
	e.logf(types.LogInfo, "starting text-to-image-to-video workflow")
	if err := d.execute(e); err != nil {
		e.logf(types.LogError, "text-to-image-to-video workflow failed: %v", err)
		return errors.Trace(err)
	}
	e.logf(types.LogSuccess, "text-to-image-to-video workflow finished")
	return nil
}

func (d *videoDriver) execute(e *execution) error {
	origin := e.origin
	row := e.opts.VideoRowSpacing

	imageTextID, err := e.createPrompt(stagePrompt, d.plan.ImagePrompt, "Image prompt", origin)
	if err != nil {
		return err
	}
	videoTextID, err := e.createPrompt(stageVideoPrompt, d.videoPrompt(), "Video prompt",
		types.Position{X: origin.X, Y: origin.Y + row})
	if err != nil {
		return err
	}

	imageConfigID, err := e.createConfig(stageImage, types.NodeImageConfig, "Text to image",
		types.Position{X: origin.X + e.opts.ColumnSpacing, Y: origin.Y})
	if err != nil {
		return err
	}
	if err := e.connect(stageImage, imageTextID, imageConfigID, types.EdgePlain, 0); err != nil {
		return err
	}

	e.logf(types.LogInfo, "waiting for image generation...")
	image, err := e.awaitOutput(stageImage, imageConfigID)
	if err != nil {
		return err
	}
	e.logf(types.LogSuccess, "image generated: %s", image.ID)

	videoConfigID, err := e.createConfig(stageVideo, types.NodeVideoConfig, "Image to video",
		types.Position{X: e.columnRight(image, origin), Y: origin.Y + row})
	if err != nil {
		return err
	}
	if err := e.connect(stageVideo, videoTextID, videoConfigID, types.EdgePromptOrder, 1); err != nil {
		return err
	}
	return e.connect(stageVideo, image.ID, videoConfigID, types.EdgeImageOrder, 1)
}

// videoPrompt falls back to the image prompt so the video config always has a prompt input.
func (d *videoDriver) videoPrompt() string {
	if d.plan.VideoPrompt != "" {
		return d.plan.VideoPrompt
	}
	return d.plan.ImagePrompt
}
