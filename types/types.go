package types

import (
	"time"

	"github.com/juju/errors"
)

type StatusType int32

const (
	None      StatusType = 0
	Analyzing StatusType = 1
	Running   StatusType = 2
	Abandoned StatusType = 3
	Failed    StatusType = 5
	Finished  StatusType = 10
)

func (s StatusType) String() string {
	switch s {
	case Analyzing:
		return "analyzing"
	case Running:
		return "running"
	case Abandoned:
		return "abandoned"
	case Failed:
		return "failed"
	case Finished:
		return "finished"
	}
	return "none"
}

func (s StatusType) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *StatusType) UnmarshalText(b []byte) error {
	for _, st := range []StatusType{None, Analyzing, Running, Abandoned, Failed, Finished} {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return errors.NotValidf("status %q", string(b))
}

type WorkflowType string

const (
	TextToImage        WorkflowType = "text_to_image"
	TextToImageToVideo WorkflowType = "text_to_image_to_video"
	Storyboard         WorkflowType = "storyboard"
)

type LogType string

const (
	LogInfo    LogType = "info"
	LogSuccess LogType = "success"
	LogError   LogType = "error"
)

type LogEntry struct {
	Type    LogType `json:"type"`
	Message string  `json:"message"`
	// Step is set on entries that record a stage creation.
	Step      int       `json:"step,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Progress struct {
	SessionID   string     `json:"sessionId"`
	Status      StatusType `json:"status"`
	IsAnalyzing bool       `json:"isAnalyzing"`
	IsExecuting bool       `json:"isExecuting"`
	CurrentStep int        `json:"currentStep"`
	TotalSteps  int        `json:"totalSteps"`
	LastError   string     `json:"lastError,omitempty"`
	Log         []LogEntry `json:"log"`
}
