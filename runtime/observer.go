package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/warriorguo/canvasflow/types"
)

type pendingWait struct {
	id       uint64
	nodeID   string
	deadline time.Time

	mu          sync.Mutex
	closed      bool
	timer       *time.Timer
	unsubscribe func()
}

func (w *pendingWait) arm(timeout time.Duration, onTimeout func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.timer = time.AfterFunc(timeout, onTimeout)
}

// attach reports false when the wait was released before the subscription
// landed, the caller then owns unsubscribe.
func (w *pendingWait) attach(unsubscribe func()) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return false
	}
	w.unsubscribe = unsubscribe
	return true
}

// release stops the timer and drops the subscription. Only the first call
// releases anything.
func (w *pendingWait) release() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return false
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	if w.unsubscribe != nil {
		w.unsubscribe()
	}
	return true
}

type waitRegistry struct {
	mu    sync.Mutex
	seq   uint64
	waits map[uint64]*pendingWait
}

func newWaitRegistry() *waitRegistry {
	return &waitRegistry{waits: make(map[uint64]*pendingWait)}
}

func (r *waitRegistry) add(nodeID string, timeout time.Duration) *pendingWait {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	w := &pendingWait{id: r.seq, nodeID: nodeID, deadline: time.Now().Add(timeout)}
	r.waits[w.id] = w
	return w
}

func (r *waitRegistry) remove(w *pendingWait) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.waits, w.id)
}

// cancelAll releases every pending wait without settling its future.
func (r *waitRegistry) cancelAll() int {
	r.mu.Lock()
	waits := r.waits
	r.waits = make(map[uint64]*pendingWait)
	r.mu.Unlock()

	n := 0
	for _, w := range waits {
		if w.release() {
			n++
		}
	}
	return n
}

func (r *waitRegistry) size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waits)
}

type checkFunc[T any] func(node *types.Node) (value T, done bool, err error)

type observer struct {
	graph   types.Graph
	timeout time.Duration
	waits   *waitRegistry
	logf    func(typ types.LogType, format string, args ...any)
	metrics *metrics
}

func newObserver(graph types.Graph, timeout time.Duration, waits *waitRegistry, logf func(types.LogType, string, ...any), m *metrics) *observer {
	return &observer{graph: graph, timeout: timeout, waits: waits, logf: logf, metrics: m}
}

func configOutputCheck(node *types.Node) (string, bool, error) {
	if msg, _ := node.Data.GetString(types.KeyError); msg != "" {
		return "", true, types.NewBackendError(node.ID, msg)
	}
	executed, _ := node.Data.GetBool(types.KeyExecuted)
	outputID, _ := node.Data.GetString(types.KeyOutputNodeID)
	if executed && outputID != "" {
		return outputID, true, nil
	}
	return "", false, nil
}

func outputReadyCheck(node *types.Node) (*types.Node, bool, error) {
	if msg, _ := node.Data.GetString(types.KeyError); msg != "" {
		return nil, true, types.NewBackendError(node.ID, msg)
	}
	url, _ := node.Data.GetString(types.KeyURL)
	loading, _ := node.Data.GetBool(types.KeyLoading)
	if url != "" && !loading {
		return node, true, nil
	}
	return nil, false, nil
}

func (o *observer) awaitConfigOutput(ctx context.Context, nodeID string) *future[string] {
	return observe(ctx, o, "config", nodeID, configOutputCheck, func(outputID string) {
		o.logf(types.LogSuccess, "config node %s finished, output node: %s", nodeID, outputID)
	})
}

func (o *observer) awaitOutputReady(ctx context.Context, nodeID string) *future[*types.Node] {
	return observe(ctx, o, "output", nodeID, outputReadyCheck, func(*types.Node) {
		o.logf(types.LogSuccess, "output node %s ready", nodeID)
	})
}

/**
 * observe checks the node once and returns a settled future when the check
 * already holds, without subscribing. Otherwise exactly one subscription is
 * registered and released on resolve, reject, timeout or cancelAll.
 */
func observe[T any](ctx context.Context, o *observer, what, nodeID string, check checkFunc[T], onResolve func(T)) *future[T] {
	f := newFuture[T]()
	start := time.Now()

	settle := func(value T, err error) {
		if f.settle(value, err) {
			o.metrics.waitDone(ctx, what, err, time.Since(start))
			if err == nil {
				onResolve(value)
			}
		}
	}

	// a missing node is treated as not ready yet
	if node, err := o.graph.Node(ctx, nodeID); err == nil {
		if value, done, cerr := check(node); done {
			settle(value, cerr)
			return f
		}
	}

	w := o.waits.add(nodeID, o.timeout)
	evaluate := func(node *types.Node) {
		if node == nil {
			return
		}
		value, done, err := check(node)
		if !done || !w.release() {
			return
		}
		o.waits.remove(w)
		settle(value, err)
	}

	w.arm(o.timeout, func() {
		if !w.release() {
			return
		}
		o.waits.remove(w)
		var zero T
		settle(zero, types.NewStageTimeoutError(nodeID, o.timeout, "%s node %s timed out after %v", what, nodeID, o.timeout))
	})

	unsubscribe := o.graph.OnNodeChange(nodeID, evaluate)
	if !w.attach(unsubscribe) {
		unsubscribe()
		return f
	}

	// a mutation may have landed between the first read and the subscription
	if node, err := o.graph.Node(ctx, nodeID); err == nil {
		evaluate(node)
	}
	return f
}
