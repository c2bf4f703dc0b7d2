package runtime

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/warriorguo/canvasflow/types"
)

/**
 * session holds the progress of one execution. A new session replaces the
 * current one on every ExecuteWorkflow and on Reset, the replaced session is
 * abandoned: its waits are released and its drivers stop at the next step.
 */
type session struct {
	mu sync.RWMutex

	id          string
	status      types.StatusType
	isAnalyzing bool
	isExecuting bool
	currentStep int
	totalSteps  int
	lastErr     error
	entries     []types.LogEntry
	startTime   time.Time
	endTime     time.Time

	waits       *waitRegistry
	abandonOnce sync.Once
	abandonCh   chan struct{}
}

func newSession() *session {
	return &session{
		id:        uuid.New().String(),
		waits:     newWaitRegistry(),
		abandonCh: make(chan struct{}),
	}
}

func (s *session) logger() *log.Entry {
	return log.WithField("session", s.id)
}

func (s *session) addLog(typ types.LogType, format string, args ...any) {
	s.appendLog(0, typ, fmt.Sprintf(format, args...))
}

func (s *session) appendLog(step int, typ types.LogType, msg string) {
	s.mu.Lock()
	s.entries = append(s.entries, types.LogEntry{Type: typ, Message: msg, Step: step, Timestamp: time.Now()})
	s.mu.Unlock()

	l := s.logger()
	if step > 0 {
		l = l.WithField("step", step)
	}
	switch typ {
	case types.LogError:
		l.Error(msg)
	case types.LogSuccess:
		l.Info(msg)
	default:
		l.Debug(msg)
	}
}

// nextStep advances currentStep by one, it never goes back.
func (s *session) nextStep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentStep++
	return s.currentStep
}

func (s *session) stepLog(step int, typ types.LogType, format string, args ...any) {
	s.appendLog(step, typ, fmt.Sprintf(format, args...))
}

func (s *session) setAnalyzing(analyzing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.isAnalyzing = analyzing
	if analyzing && s.status == types.None {
		s.status = types.Analyzing
	} else if !analyzing && s.status == types.Analyzing {
		s.status = types.None
	}
}

func (s *session) begin(totalSteps int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status = types.Running
	s.isExecuting = true
	s.totalSteps = totalSteps
	s.startTime = time.Now()
}

func (s *session) finish(err error) types.StatusType {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.isExecuting = false
	s.endTime = time.Now()
	s.lastErr = err
	switch {
	case err == nil:
		s.status = types.Finished
	case types.IsAbandoned(err):
		s.status = types.Abandoned
	default:
		s.status = types.Failed
	}
	return s.status
}

func (s *session) abandoned() <-chan struct{} {
	return s.abandonCh
}

func (s *session) isAbandoned() bool {
	select {
	case <-s.abandonCh:
		return true
	default:
		return false
	}
}

// abandon releases every pending wait, their futures stay unsettled.
func (s *session) abandon() {
	s.abandonOnce.Do(func() {
		close(s.abandonCh)
	})
	if n := s.waits.cancelAll(); n > 0 {
		s.logger().Debugf("released %d pending waits", n)
	}
}

func (s *session) progress() *types.Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := &types.Progress{
		SessionID:   s.id,
		Status:      s.status,
		IsAnalyzing: s.isAnalyzing,
		IsExecuting: s.isExecuting,
		CurrentStep: s.currentStep,
		TotalSteps:  s.totalSteps,
		Log:         append([]types.LogEntry(nil), s.entries...),
	}
	if s.lastErr != nil {
		p.LastError = s.lastErr.Error()
	}
	return p
}

func (s *session) record(plan *types.Plan, result *types.Result) *types.SessionRecord {
	p := s.progress()

	s.mu.RLock()
	defer s.mu.RUnlock()
	r := &types.SessionRecord{
		SessionID: s.id,
		Plan:      plan,
		Status:    p.Status,
		Error:     p.LastError,
		Log:       p.Log,
		StartTime: s.startTime,
		EndTime:   s.endTime,
	}
	if result != nil {
		r.Stages = result.Stages
	}
	return r
}
