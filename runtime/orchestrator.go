package runtime

import (
	"context"
	"sync"

	"github.com/juju/errors"

	"github.com/warriorguo/canvasflow/store"
	"github.com/warriorguo/canvasflow/types"
)

var (
	_ types.Orchestrator = &orchestrator{}
)

/**
 * NewOrchestrator binds one orchestrator to graph. completer may be nil, every
 * analysis then falls back to the default plan. s may be nil, nothing is
 * recorded then.
 */
func NewOrchestrator(graph types.Graph, completer types.ChatCompleter, s store.Store, opts *types.Options) types.Orchestrator {
	return newOrchestrator(graph, completer, s, opts)
}

func newOrchestrator(graph types.Graph, completer types.ChatCompleter, s store.Store, opts *types.Options) *orchestrator {
	if opts == nil {
		opts = types.NewOptions()
	}
	return &orchestrator{
		graph:      graph,
		opts:       opts,
		builder:    newStageBuilder(graph, opts),
		classifier: newClassifier(completer, opts.ChatModel),
		recorder:   newRecorder(s),
		metrics:    newMetrics(),
		sess:       newSession(),
	}
}

type orchestrator struct {
	graph      types.Graph
	opts       *types.Options
	builder    *stageBuilder
	classifier *classifier
	recorder   *recorder
	metrics    *metrics

	mu   sync.Mutex
	sess *session
}

func (o *orchestrator) current() *session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sess
}

// replaceSession installs a fresh session and abandons the previous one.
func (o *orchestrator) replaceSession() *session {
	o.mu.Lock()
	old := o.sess
	o.sess = newSession()
	sess := o.sess
	o.mu.Unlock()

	old.abandon()
	return sess
}

func (o *orchestrator) AnalyzeIntent(ctx context.Context, text string) *types.Plan {
	sess := o.current()
	sess.setAnalyzing(true)
	defer sess.setAnalyzing(false)

	plan, err := o.classifier.classify(ctx, text)
	if err != nil {
		sess.addLog(types.LogError, "intent analysis failed: %v", err)
		return defaultPlan(text)
	}
	sess.addLog(types.LogInfo, "intent analyzed: %s", plan.WorkflowType)
	return plan
}

func (o *orchestrator) ExecuteWorkflow(ctx context.Context, plan *types.Plan, pos types.Position) (*types.Result, error) {
	if plan == nil {
		return nil, errors.NotValidf("nil plan")
	}

	sess := o.replaceSession()
	d := selectDriver(plan)
	result := &types.Result{
		SessionID:    sess.id,
		WorkflowType: d.workflowType(),
		Stages:       make([]*types.StageResult, 0),
	}
	e := &execution{
		ctx:      ctx,
		sess:     sess,
		builder:  o.builder,
		observer: newObserver(o.graph, o.opts.StageTimeout, sess.waits, sess.addLog, o.metrics),
		opts:     o.opts,
		origin:   pos,
		result:   result,
	}

	sess.begin(d.totalSteps())
	o.recorder.save(ctx, sess.record(plan, result))

	err := func() error {
		defer sess.waits.cancelAll()
		return d.run(e)
	}()

	status := sess.finish(err)
	o.metrics.workflowDone(ctx, d.workflowType(), status)
	o.recorder.save(context.WithoutCancel(ctx), sess.record(plan, result))
	if err != nil {
		return result, errors.Trace(err)
	}
	return result, nil
}

func (o *orchestrator) Run(ctx context.Context, text string, pos types.Position) (*types.Plan, *types.Result, error) {
	plan := o.AnalyzeIntent(ctx, text)
	result, err := o.ExecuteWorkflow(ctx, plan, pos)
	return plan, result, errors.Trace(err)
}

func (o *orchestrator) CreateTextToImage(ctx context.Context, prompt string, pos types.Position) (*types.Result, error) {
	result, err := o.ExecuteWorkflow(ctx, &types.Plan{WorkflowType: types.TextToImage, ImagePrompt: prompt}, pos)
	return result, errors.Trace(err)
}

func (o *orchestrator) Progress() *types.Progress {
	return o.current().progress()
}

func (o *orchestrator) Reset() {
	o.replaceSession()
}

func (o *orchestrator) RenderResult(ctx context.Context, result *types.Result) (string, error) {
	dot, err := renderResult(ctx, o.graph, result)
	return dot, errors.Trace(err)
}

func (o *orchestrator) GetSessionRecord(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
	record, err := o.recorder.load(ctx, sessionID)
	return record, errors.Trace(err)
}

func (o *orchestrator) ListSessions(ctx context.Context) ([]string, error) {
	ids, err := o.recorder.list(ctx)
	return ids, errors.Trace(err)
}
