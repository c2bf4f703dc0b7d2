package types

type Character struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Shot struct {
	Title  string `json:"title"`
	Prompt string `json:"prompt"`
}

// Plan is the structured intent returned by the classifier.
type Plan struct {
	WorkflowType WorkflowType `json:"workflow_type"`
	Description  string       `json:"description,omitempty"`

	ImagePrompt string `json:"image_prompt,omitempty"`
	VideoPrompt string `json:"video_prompt,omitempty"`

	Character *Character `json:"character,omitempty"`
	Shots     []Shot     `json:"shots,omitempty"`
}

type StageResult struct {
	Name    string   `json:"name"`
	NodeIDs []string `json:"nodeIds"`
	EdgeIDs []string `json:"edgeIds,omitempty"`
	// OutputNodeID is the backend-produced node resolved for this stage, if awaited.
	OutputNodeID string `json:"outputNodeId,omitempty"`
}

/**
 * Result groups the created node and edge IDs by stage. It is returned on
 * failure as well, holding every stage that got at least one node.
 */
type Result struct {
	SessionID    string         `json:"sessionId"`
	WorkflowType WorkflowType   `json:"workflowType"`
	Stages       []*StageResult `json:"stages"`
}

func (r *Result) Stage(name string) *StageResult {
	if r == nil {
		return nil
	}
	for _, s := range r.Stages {
		if s.Name == name {
			return s
		}
	}
	return nil
}

func (r *Result) NodeIDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0)
	for _, s := range r.Stages {
		ids = append(ids, s.NodeIDs...)
		if s.OutputNodeID != "" {
			ids = append(ids, s.OutputNodeID)
		}
	}
	return ids
}
