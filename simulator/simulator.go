package simulator

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"

	"github.com/warriorguo/canvasflow/types"
)

// Job is one config node picked up by the simulator, with its merged inputs.
type Job struct {
	ConfigID string         `json:"configId"`
	Kind     types.NodeKind `json:"kind"`
	Label    string         `json:"label,omitempty"`
	Model    string         `json:"model,omitempty"`
	// Prompt joins the text inputs, ordered edges first by ascending order.
	Prompt string `json:"prompt"`
	// References are the IDs of the image inputs in merge order.
	References []string `json:"references,omitempty"`
	OutputID   string   `json:"outputId,omitempty"`
	Error      string   `json:"error,omitempty"`
}

/**
 * Simulator stands in for the generation backend: it watches the graph for
 * auto-executing config nodes whose inputs are ready, creates their output
 * node and publishes a url after Latency. It only talks to the graph.
 */
type Simulator struct {
	graph types.Graph
	opts  *Options

	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	exitCh  chan struct{}

	wp *workerpool.WorkerPool

	mu sync.Mutex
	// inbound edge count of each pending config at the previous scan
	edgeCounts map[string]int
	dispatched map[string]bool
	jobs       []*Job
}

func New(graph types.Graph, opts *Options) *Simulator {
	if opts == nil {
		opts = NewOptions()
	}
	s := &Simulator{
		graph:      graph,
		opts:       opts,
		wp:         workerpool.New(max(opts.MaxConcurrency, 1)),
		edgeCounts: make(map[string]int),
		dispatched: make(map[string]bool),
	}
	s.ctx, s.cancel = context.WithCancel(opts.Ctx)
	s.running.Store(true)

	if opts.AutoStart {
		s.asyncRun()
	}
	return s
}

func (s *Simulator) asyncRun() {
	s.exitCh = make(chan struct{})

	go func() {
		defer close(s.exitCh)

		ticker := time.NewTicker(s.opts.PollInterval)
		defer ticker.Stop()

		for s.running.Load() {
			if _, err := s.RunOnce(s.ctx); err != nil && s.ctx.Err() == nil {
				log.Errorf("simulator scan failed: %v", err)
			}
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

/**
 * RunOnce scans the graph and dispatches the config nodes that are ready.
 * A config is only dispatched once its inbound edge count was the same on
 * two consecutive scans, its edges are created right after the node.
 */
func (s *Simulator) RunOnce(ctx context.Context) (int, error) {
	if !s.running.Load() {
		return 0, errors.MethodNotAllowedf("simulator closed")
	}

	nodes, err := s.graph.Nodes(ctx)
	if err != nil {
		return 0, errors.Trace(err)
	}
	edges, err := s.graph.Edges(ctx)
	if err != nil {
		return 0, errors.Trace(err)
	}

	byID := make(map[string]*types.Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	inbound := make(map[string][]*types.Edge)
	for _, e := range edges {
		inbound[e.Target] = append(inbound[e.Target], e)
	}

	ready := make([]*Job, 0)
	s.mu.Lock()
	for _, n := range nodes {
		if !s.pending(n) {
			continue
		}
		count := len(inbound[n.ID])
		prev, seen := s.edgeCounts[n.ID]
		s.edgeCounts[n.ID] = count
		if !seen || prev != count {
			continue
		}
		job, ok := prepareJob(n, inbound[n.ID], byID)
		if !ok {
			continue
		}
		if len(ready) >= s.opts.MaxConcurrency {
			break
		}
		s.dispatched[n.ID] = true
		delete(s.edgeCounts, n.ID)
		s.jobs = append(s.jobs, job)
		ready = append(ready, job)
	}
	s.mu.Unlock()

	for _, job := range ready {
		log.Debugf("simulator dispatch %s %s: %q", job.Kind, job.ConfigID, job.Prompt)
		if s.opts.TaskRunAsync {
			s.wp.Submit(func() {
				s.execute(s.ctx, job, s.opts.Latency)
			})
		} else {
			s.execute(ctx, job, 0)
		}
	}
	return len(ready), nil
}

// pending must be called with s.mu held.
func (s *Simulator) pending(n *types.Node) bool {
	if n.Kind != types.NodeImageConfig && n.Kind != types.NodeVideoConfig {
		return false
	}
	if s.dispatched[n.ID] {
		return false
	}
	auto, _ := n.Data.GetBool(types.KeyAutoExecute)
	executed, _ := n.Data.GetBool(types.KeyExecuted)
	msg, _ := n.Data.GetString(types.KeyError)
	return auto && !executed && msg == ""
}

func edgeRank(e *types.Edge) int {
	if e.Kind == types.EdgePlain {
		return int(^uint(0) >> 1)
	}
	return e.Order
}

/**
 * prepareJob merges the inputs of config. Text sources become the prompt,
 * image sources the references. An image source that is not ready yet
 * keeps the whole job waiting.
 */
func prepareJob(config *types.Node, edges []*types.Edge, byID map[string]*types.Node) (*Job, bool) {
	ordered := append([]*types.Edge(nil), edges...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return edgeRank(ordered[i]) < edgeRank(ordered[j])
	})

	prompts := make([]string, 0)
	job := &Job{ConfigID: config.ID, Kind: config.Kind, References: make([]string, 0)}
	job.Label, _ = config.Data.GetString(types.KeyLabel)
	job.Model, _ = config.Data.GetString(types.KeyModel)

	for _, e := range ordered {
		src, exists := byID[e.Source]
		if !exists {
			return nil, false
		}
		switch {
		case src.Kind == types.NodeText:
			if content, _ := src.Data.GetString(types.KeyContent); content != "" {
				prompts = append(prompts, content)
			}
		case src.Kind.IsOutput():
			url, _ := src.Data.GetString(types.KeyURL)
			loading, _ := src.Data.GetBool(types.KeyLoading)
			if url == "" || loading {
				return nil, false
			}
			job.References = append(job.References, src.ID)
		}
	}
	job.Prompt = strings.Join(prompts, "\n")

	if config.Kind == types.NodeVideoConfig {
		return job, len(job.References) > 0
	}
	return job, len(prompts) > 0 || len(job.References) > 0
}

func outputKind(kind types.NodeKind) types.NodeKind {
	if kind == types.NodeVideoConfig {
		return types.NodeVideo
	}
	return types.NodeImage
}

func (s *Simulator) execute(ctx context.Context, job *Job, latency time.Duration) {
	if err := s.generate(ctx, job, latency); err != nil && ctx.Err() == nil {
		log.Errorf("simulator job %s failed: %v", job.ConfigID, err)
	}
}

func (s *Simulator) generate(ctx context.Context, job *Job, latency time.Duration) error {
	if s.opts.Fail != nil {
		if msg := s.opts.Fail(job); msg != "" {
			s.setJobError(job, msg)
			return errors.Trace(s.graph.UpdateNode(ctx, job.ConfigID, types.Data{types.KeyError: msg}))
		}
	}

	config, err := s.graph.Node(ctx, job.ConfigID)
	if err != nil {
		return errors.Trace(err)
	}
	pos := types.Position{X: config.Position.X + s.opts.ColumnSpacing, Y: config.Position.Y}
	outputID, err := s.graph.AddNode(ctx, outputKind(job.Kind), pos, types.Data{
		types.KeyLabel:   job.Label,
		types.KeyLoading: true,
	})
	if err != nil {
		return errors.Trace(err)
	}
	s.setJobOutput(job, outputID)

	if _, err := s.graph.AddEdge(ctx, types.EdgeSpec{
		Source:       job.ConfigID,
		Target:       outputID,
		SourceHandle: types.HandleRight,
		TargetHandle: types.HandleLeft,
	}); err != nil {
		return errors.Trace(err)
	}
	if err := s.graph.UpdateNode(ctx, job.ConfigID, types.Data{
		types.KeyExecuted:     true,
		types.KeyOutputNodeID: outputID,
	}); err != nil {
		return errors.Trace(err)
	}

	if s.opts.Stall != nil && s.opts.Stall(job) {
		log.Debugf("simulator job %s stalls", job.ConfigID)
		return nil
	}
	if latency > 0 {
		select {
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		case <-time.After(latency):
		}
	}

	return errors.Trace(s.graph.UpdateNode(ctx, outputID, types.Data{
		types.KeyURL:     s.opts.URLPrefix + outputID,
		types.KeyLoading: false,
	}))
}

func (s *Simulator) setJobError(job *Job, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.Error = msg
}

func (s *Simulator) setJobOutput(job *Job, outputID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.OutputID = outputID
}

// Jobs returns copies of every dispatched job in dispatch order.
func (s *Simulator) Jobs() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		c := *job
		c.References = append([]string(nil), job.References...)
		jobs = append(jobs, c)
	}
	return jobs
}

// Close stops scanning and waits for the jobs in flight.
func (s *Simulator) Close(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	s.cancel()
	if s.exitCh != nil {
		select {
		case <-s.exitCh:
		case <-ctx.Done():
			return errors.Trace(ctx.Err())
		}
	}
	s.wp.StopWait()
	return nil
}
