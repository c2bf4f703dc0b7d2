package runtime

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warriorguo/canvasflow/types"
)

func newTestObserver(g types.Graph, timeout time.Duration) (*observer, *session) {
	sess := newSession()
	return newObserver(g, timeout, sess.waits, sess.addLog, newMetrics()), sess
}

func addConfigNode(t *testing.T, g types.Graph, data types.Data) string {
	data.Set(types.KeyAutoExecute, true)
	id, err := g.AddNode(context.Background(), types.NodeImageConfig, types.Position{}, data)
	require.Nil(t, err)
	return id
}

func TestObserverImmediateResolve(t *testing.T) {
	ctx := context.Background()
	g := newCountingGraph()
	o, sess := newTestObserver(g, time.Minute)

	configID := addConfigNode(t, g, types.Data{types.KeyExecuted: true, types.KeyOutputNodeID: "image_1"})
	f := o.awaitConfigOutput(ctx, configID)
	assert.True(t, f.isSettled())
	outputID, err := f.result()
	assert.Nil(t, err)
	assert.Equal(t, "image_1", outputID)

	imageID, err := g.AddNode(ctx, types.NodeImage, types.Position{}, types.Data{types.KeyURL: "test://1", types.KeyLoading: false})
	require.Nil(t, err)
	nf := o.awaitOutputReady(ctx, imageID)
	assert.True(t, nf.isSettled())
	node, err := nf.result()
	assert.Nil(t, err)
	assert.Equal(t, imageID, node.ID)

	subscribes, releases := g.counts()
	assert.Equal(t, 0, subscribes)
	assert.Equal(t, 0, releases)
	assert.Equal(t, 0, sess.waits.size())
	assert.True(t, hasLog(sess.progress(), types.LogSuccess, "output node: image_1"))
}

func TestObserverResolveOnChange(t *testing.T) {
	ctx := context.Background()
	g := newCountingGraph()
	o, sess := newTestObserver(g, time.Minute)

	configID := addConfigNode(t, g, types.Data{})
	f := o.awaitConfigOutput(ctx, configID)
	assert.False(t, f.isSettled())
	assert.Equal(t, 1, sess.waits.size())
	assert.Equal(t, 1, g.Subscriptions())

	// unrelated mutations are ignored
	require.Nil(t, g.UpdateNode(ctx, configID, types.Data{types.KeyExecuted: true}))
	assert.False(t, f.isSettled())

	require.Nil(t, g.UpdateNode(ctx, configID, types.Data{types.KeyOutputNodeID: "image_2"}))
	outputID, err := await(ctx, sess.abandoned(), f)
	assert.Nil(t, err)
	assert.Equal(t, "image_2", outputID)

	require.Nil(t, g.UpdateNode(ctx, configID, types.Data{types.KeyError: "late"}))

	subscribes, releases := g.counts()
	assert.Equal(t, 1, subscribes)
	assert.Equal(t, 1, releases)
	assert.Equal(t, 0, g.Subscriptions())
	assert.Equal(t, 0, sess.waits.size())
}

func TestObserverBackendError(t *testing.T) {
	ctx := context.Background()
	g := newCountingGraph()
	o, sess := newTestObserver(g, time.Minute)

	imageID, err := g.AddNode(ctx, types.NodeImage, types.Position{}, types.Data{types.KeyLoading: true})
	require.Nil(t, err)
	f := o.awaitOutputReady(ctx, imageID)

	require.Nil(t, g.UpdateNode(ctx, imageID, types.Data{types.KeyError: "content policy violation"}))
	_, err = await(ctx, sess.abandoned(), f)
	assert.NotNil(t, err)
	assert.True(t, types.IsBackendError(err))
	assert.Equal(t, "content policy violation", err.Error())

	_, releases := g.counts()
	assert.Equal(t, 1, releases)

	// an error already present rejects without subscribing
	configID := addConfigNode(t, g, types.Data{types.KeyError: "quota exceeded", types.KeyExecuted: true, types.KeyOutputNodeID: "x"})
	cf := o.awaitConfigOutput(ctx, configID)
	assert.True(t, cf.isSettled())
	_, err = cf.result()
	assert.Equal(t, "quota exceeded", err.Error())

	subscribes, _ := g.counts()
	assert.Equal(t, 1, subscribes)
}

func TestObserverTimeout(t *testing.T) {
	ctx := context.Background()
	g := newCountingGraph()
	o, sess := newTestObserver(g, 30*time.Millisecond)

	configID := addConfigNode(t, g, types.Data{})
	start := time.Now()
	_, err := await(ctx, sess.abandoned(), o.awaitConfigOutput(ctx, configID))
	assert.True(t, time.Since(start) >= 30*time.Millisecond)
	assert.True(t, types.IsStageTimeout(err))
	assert.Contains(t, err.Error(), configID)

	// a completion after the timeout changes nothing
	require.Nil(t, g.UpdateNode(ctx, configID, types.Data{types.KeyExecuted: true, types.KeyOutputNodeID: "late"}))

	subscribes, releases := g.counts()
	assert.Equal(t, 1, subscribes)
	assert.Equal(t, 1, releases)
	assert.Equal(t, 0, sess.waits.size())
	assert.False(t, hasLog(sess.progress(), types.LogSuccess, "late"))
}

func TestObserverCancelAll(t *testing.T) {
	ctx := context.Background()
	g := newCountingGraph()
	o, sess := newTestObserver(g, 50*time.Millisecond)

	futures := make([]*future[string], 0)
	ids := make([]string, 0)
	for i := 0; i < 3; i++ {
		id := addConfigNode(t, g, types.Data{types.KeyLabel: fmt.Sprintf("config %d", i)})
		ids = append(ids, id)
		futures = append(futures, o.awaitConfigOutput(ctx, id))
	}
	assert.Equal(t, 3, sess.waits.size())

	sess.abandon()
	assert.Equal(t, 0, sess.waits.size())
	assert.Equal(t, 0, g.Subscriptions())

	for _, id := range ids {
		require.Nil(t, g.UpdateNode(ctx, id, types.Data{types.KeyExecuted: true, types.KeyOutputNodeID: "out"}))
	}
	// past the timeout as well, nothing settles
	time.Sleep(80 * time.Millisecond)
	for _, f := range futures {
		assert.False(t, f.isSettled())
	}

	subscribes, releases := g.counts()
	assert.Equal(t, 3, subscribes)
	assert.Equal(t, 3, releases)

	_, err := await(ctx, sess.abandoned(), futures[0])
	assert.True(t, types.IsAbandoned(err))
	assert.Equal(t, 0, sess.waits.cancelAll())
}

func TestObserverContextCancel(t *testing.T) {
	g := newCountingGraph()
	o, sess := newTestObserver(g, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	configID := addConfigNode(t, g, types.Data{})
	f := o.awaitConfigOutput(ctx, configID)
	cancel()

	_, err := await(ctx, sess.abandoned(), f)
	assert.True(t, errors.Is(err, context.Canceled))
	sess.waits.cancelAll()
	_, releases := g.counts()
	assert.Equal(t, 1, releases)
}
