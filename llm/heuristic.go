package llm

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/juju/errors"

	"github.com/warriorguo/canvasflow/types"
)

var (
	_ types.ChatCompleter = &Heuristic{}
)

var (
	videoKeywords      = []string{"视频", "动画", "动起来", "video", "animate", "animation"}
	storyboardKeywords = []string{"分镜", "场景一", "镜头", "storyboard", "scene 1", "shot 1"}

	shotMarker = regexp.MustCompile(`(?i)(?:分镜|镜头|场景|shot|scene)\s*[0-9一二三四五六七八九十]+\s*[:：]`)
)

const chunkSize = 16

/**
 * Heuristic answers the classification request offline by keyword matching.
 * It speaks the same JSON plan an LLM is asked for, streamed in small
 * chunks, so the whole analysis path runs without a network.
 */
type Heuristic struct{}

func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

func (h *Heuristic) StreamChat(ctx context.Context, req *types.ChatRequest) (types.ChatStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}

	text := ""
	for _, m := range req.Messages {
		if m.Role == types.RoleUser {
			text = m.Content
		}
	}
	b, err := json.Marshal(Classify(text))
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &chunkStream{chunks: splitChunks(string(b), chunkSize)}, nil
}

func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Classify maps text to a plan using keywords only.
func Classify(text string) *types.Plan {
	text = strings.TrimSpace(text)
	switch {
	case containsAny(text, storyboardKeywords) || len(shotMarker.FindAllStringIndex(text, -1)) > 1:
		return storyboardPlan(text)
	case containsAny(text, videoKeywords):
		return &types.Plan{
			WorkflowType: types.TextToImageToVideo,
			Description:  text,
			ImagePrompt:  text,
			VideoPrompt:  text,
		}
	}
	return &types.Plan{WorkflowType: types.TextToImage, Description: text, ImagePrompt: text}
}

func trimPunct(s string) string {
	return strings.Trim(s, " \t\r\n。.;；,，:：")
}

/**
 * storyboardPlan treats the text before the first shot marker as the
 * character and every marked segment as one shot.
 */
func storyboardPlan(text string) *types.Plan {
	plan := &types.Plan{WorkflowType: types.Storyboard, Description: text}

	locs := shotMarker.FindAllStringIndex(text, -1)
	intro := text
	if len(locs) > 0 {
		intro = text[:locs[0][0]]
	}
	intro = trimPunct(intro)
	if intro == "" {
		intro = text
	}
	plan.Character = &types.Character{Name: intro, Description: intro}

	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		title := trimPunct(text[loc[1]:end])
		if title == "" {
			continue
		}
		plan.Shots = append(plan.Shots, types.Shot{Title: title, Prompt: intro + ": " + title})
	}
	if len(plan.Shots) == 0 {
		plan.Shots = []types.Shot{{Title: intro, Prompt: text}}
	}
	return plan
}
