package runtime

import (
	"context"

	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"

	"github.com/warriorguo/canvasflow/store"
	"github.com/warriorguo/canvasflow/types"
	"github.com/warriorguo/canvasflow/utils"
)

const (
	SessionPath = "/session/"
)

/**
 * recorder persists one SessionRecord per execution. Failing to save never
 * fails the execution, it is only logged.
 */
type recorder struct {
	store store.Store
}

func newRecorder(s store.Store) *recorder {
	return &recorder{store: s}
}

func (r *recorder) save(ctx context.Context, record *types.SessionRecord) {
	if r.store == nil {
		return
	}
	b, err := utils.Serialize(record)
	if err != nil {
		log.Errorf("serialize session %s failed: %v", record.SessionID, err)
		return
	}
	if err := r.store.Set(ctx, SessionPath, record.SessionID, b); err != nil {
		log.Errorf("save session %s failed: %v", record.SessionID, err)
	}
}

func (r *recorder) load(ctx context.Context, sessionID string) (*types.SessionRecord, error) {
	if r.store == nil {
		return nil, errors.NotFoundf("session %s", sessionID)
	}
	b, err := r.store.Get(ctx, SessionPath, sessionID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if b == nil {
		return nil, errors.NotFoundf("session %s", sessionID)
	}

	record := &types.SessionRecord{}
	if err := utils.Unserialize(b, record); err != nil {
		return nil, errors.Annotatef(err, "unserialize session %s", sessionID)
	}
	return record, nil
}

func (r *recorder) list(ctx context.Context) ([]string, error) {
	ids := make([]string, 0)
	if r.store == nil {
		return ids, nil
	}
	err := r.store.List(ctx, SessionPath, func(key string) bool {
		ids = append(ids, key)
		return true
	})
	return ids, errors.Trace(err)
}
