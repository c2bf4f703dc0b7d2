package types

import (
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestBackendErrorKeepsMessage(t *testing.T) {
	err := errors.Trace(NewBackendError("node_1", "quota exceeded"))
	assert.Equal(t, "quota exceeded", err.Error())
	assert.True(t, IsBackendError(err))
	assert.False(t, IsStageTimeout(err))

	var be *BackendError
	assert.True(t, errors.As(err, &be))
	assert.Equal(t, "node_1", be.NodeID)
}

func TestStageTimeoutError(t *testing.T) {
	err := errors.Trace(NewStageTimeoutError("node_2", time.Second, "output node %s timed out after %v", "node_2", time.Second))
	assert.True(t, IsStageTimeout(err))
	assert.Equal(t, "output node node_2 timed out after 1s", err.Error())
}

func TestAbandoned(t *testing.T) {
	err := errors.Annotatef(ErrAbandoned, "waiting on %s", "node_3")
	assert.True(t, IsAbandoned(err))
	assert.False(t, IsAbandoned(NewClassificationErrorf("no JSON object")))
}
