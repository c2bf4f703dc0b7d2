package runtime

import (
	"fmt"

	"github.com/juju/errors"
	"github.com/warriorguo/canvasflow/types"
)

const defaultCharacterName = "character"

/**
 * storyboardDriver generates a character reference first, then every shot
 * in order, each shot referencing the character image. A shot's nodes are
 * only created after the previous shot's output is ready.
 */
type storyboardDriver struct {
	plan *types.Plan
}

func (d *storyboardDriver) workflowType() types.WorkflowType { return types.Storyboard }

func (d *storyboardDriver) totalSteps() int { return 2 + 2*len(d.plan.Shots) }

func shotStageName(i int) string {
	return fmt.Sprintf("%s%d", stageShotNamePrefix, i+1)
}

func (d *storyboardDriver) character() (name, description string) {
	name = defaultCharacterName
	if c := d.plan.Character; c != nil {
		if c.Name != "" {
			name = c.Name
		}
		description = c.Description
	}
	return name, description
}

func (d *storyboardDriver) run(e *execution) error {
	name, _ := d.character()
	e.logf(types.LogInfo, "starting storyboard workflow: %s, %d shots", name, len(d.plan.Shots))
	if err := d.execute(e); err != nil {
		e.logf(types.LogError, "storyboard workflow failed: %v", err)
		return errors.Trace(err)
	}
	e.logf(types.LogSuccess, "storyboard workflow finished, %d shots generated", len(d.plan.Shots))
	return nil
}

func (d *storyboardDriver) execute(e *execution) error {
	origin := e.origin
	name, description := d.character()

	characterTextID, err := e.createPrompt(stageCharacter, fmt.Sprintf("%s: %s", name, description),
		fmt.Sprintf("Character: %s", name), origin)
	if err != nil {
		return err
	}
	characterConfigID, err := e.createConfig(stageCharacter, types.NodeImageConfig, "Character reference",
		types.Position{X: origin.X + e.opts.ColumnSpacing, Y: origin.Y})
	if err != nil {
		return err
	}
	if err := e.connect(stageCharacter, characterTextID, characterConfigID, types.EdgePlain, 0); err != nil {
		return err
	}

	e.logf(types.LogInfo, "waiting for character reference generation...")
	character, err := e.awaitOutput(stageCharacter, characterConfigID)
	if err != nil {
		return err
	}
	e.logf(types.LogSuccess, "character reference generated: %s", character.ID)

	for i, shot := range d.plan.Shots {
		if err := d.runShot(e, i, shot, character.ID); err != nil {
			return err
		}
	}
	return nil
}

func (d *storyboardDriver) runShot(e *execution, i int, shot types.Shot, characterID string) error {
	stageName := shotStageName(i)
	y := e.origin.Y + float64(i+1)*e.opts.StoryboardRowSpacing

	textID, err := e.createPrompt(stageName, shot.Prompt, fmt.Sprintf("Shot %d: %s", i+1, shot.Title),
		types.Position{X: e.origin.X, Y: y})
	if err != nil {
		return err
	}
	configID, err := e.createConfig(stageName, types.NodeImageConfig, fmt.Sprintf("Shot %d", i+1),
		types.Position{X: e.origin.X + e.opts.ColumnSpacing, Y: y})
	if err != nil {
		return err
	}
	if err := e.connect(stageName, textID, configID, types.EdgePromptOrder, 1); err != nil {
		return err
	}
	if err := e.connect(stageName, characterID, configID, types.EdgeImageOrder, 1); err != nil {
		return err
	}

	e.logf(types.LogInfo, "waiting for shot %d generation...", i+1)
	if _, err := e.awaitOutput(stageName, configID); err != nil {
		return err
	}
	e.logf(types.LogSuccess, "shot %d generated", i+1)
	return nil
}
