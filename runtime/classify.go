package runtime

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/juju/errors"
	"github.com/warriorguo/canvasflow/types"
)

const intentInstruction = `You are a workflow analysis assistant. Decide which workflow the user needs and write the prompts for it.

Workflow types:
1. text_to_image - the user wants a single image (default).
2. text_to_image_to_video - the user wants an image turned into a video (keywords such as "video", "animate", "视频", "动画", "动起来").
3. storyboard - the user wants a storyboard or several scenes (keywords such as "storyboard", "scene 1", "shot", "分镜", "场景一", "镜头", or a description of consecutive scenes).

Return JSON:
{
  "workflow_type": "text_to_image | text_to_image_to_video | storyboard",
  "description": "short description",
  "image_prompt": "refined image prompt (text_to_image, text_to_image_to_video)",
  "video_prompt": "how the picture moves: camera, subject motion, mood (text_to_image_to_video only)",
  "character": {"name": "character name", "description": "detailed appearance, used for the reference image (storyboard only)"},
  "shots": [{"title": "shot title", "prompt": "full description of the shot, naming the character (storyboard only)"}]
}

Prompt guidelines:
- image_prompt expands the user input with details, art style and lighting.
- character.description must be detailed enough to keep the character consistent across shots.
- every shots[].prompt includes the character name.

Return pure JSON and nothing else.`

type classifier struct {
	completer types.ChatCompleter
	model     string
}

func newClassifier(completer types.ChatCompleter, model string) *classifier {
	return &classifier{completer: completer, model: model}
}

func (c *classifier) complete(ctx context.Context, text string) (string, error) {
	if c.completer == nil {
		return "", errors.New("no chat completer configured")
	}
	stream, err := c.completer.StreamChat(ctx, &types.ChatRequest{
		Model: c.model,
		Messages: []types.ChatMessage{
			{Role: types.RoleSystem, Content: intentInstruction},
			{Role: types.RoleUser, Content: text},
		},
	})
	if err != nil {
		return "", errors.Trace(err)
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.Annotate(err, "read completion stream")
		}
		sb.WriteString(chunk)
	}
	return sb.String(), nil
}

/**
 * classify returns a ClassificationError on any failure, the caller decides
 * to fall back to the default plan.
 */
func (c *classifier) classify(ctx context.Context, text string) (*types.Plan, error) {
	response, err := c.complete(ctx, text)
	if err != nil {
		return nil, types.NewClassificationError(err)
	}
	plan, err := parsePlan(response)
	if err != nil {
		return nil, err
	}
	return normalizePlan(plan, text), nil
}

func parsePlan(response string) (*types.Plan, error) {
	raw, ok := extractJSONObject(response)
	if !ok {
		return nil, types.NewClassificationErrorf("no JSON object in classification response")
	}
	plan := &types.Plan{}
	if err := json.Unmarshal([]byte(raw), plan); err != nil {
		return nil, types.NewClassificationError(errors.Annotate(err, "parse classification"))
	}
	return plan, nil
}

/**
 * extractJSONObject returns the first balanced top-level {...} in s. Braces
 * inside JSON strings are skipped. Nothing is repaired: an unbalanced object
 * is reported as not found.
 */
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func defaultPlan(text string) *types.Plan {
	return &types.Plan{WorkflowType: types.TextToImage, ImagePrompt: text}
}

func normalizePlan(plan *types.Plan, text string) *types.Plan {
	if plan.WorkflowType == "" {
		plan.WorkflowType = types.TextToImage
	}
	if plan.WorkflowType != types.Storyboard && plan.ImagePrompt == "" {
		plan.ImagePrompt = text
	}
	return plan
}
