package types

import (
	"context"
	"time"
)

type Orchestrator interface {
	/**
	 * AnalyzeIntent never fails: a classification that can not be parsed
	 * degrades to a text_to_image plan using text as the prompt.
	 */
	AnalyzeIntent(ctx context.Context, text string) *Plan
	/**
	 * ExecuteWorkflow abandons any previous execution, runs the driver
	 * selected by plan.WorkflowType and returns the created IDs. On error
	 * the partial Result is returned along with the first error.
	 */
	ExecuteWorkflow(ctx context.Context, plan *Plan, pos Position) (*Result, error)
	Run(ctx context.Context, text string, pos Position) (*Plan, *Result, error)
	CreateTextToImage(ctx context.Context, prompt string, pos Position) (*Result, error)

	Progress() *Progress
	/**
	 * Reset releases every pending wait and clears progress unconditionally.
	 */
	Reset()

	RenderResult(ctx context.Context, result *Result) (string, error)
	GetSessionRecord(ctx context.Context, sessionID string) (*SessionRecord, error)
	ListSessions(ctx context.Context) ([]string, error)
}

type SessionRecord struct {
	SessionID string         `json:"sessionId"`
	Plan      *Plan          `json:"plan,omitempty"`
	Status    StatusType     `json:"status"`
	Error     string         `json:"error,omitempty"`
	Stages    []*StageResult `json:"stages,omitempty"`
	Log       []LogEntry     `json:"log,omitempty"`
	StartTime time.Time      `json:"startTime"`
	EndTime   time.Time      `json:"endTime"`
}
