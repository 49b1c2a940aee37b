package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fekuna/omnipos-order-service/internal/apperr"
	"github.com/fekuna/omnipos-order-service/internal/auth"
	"github.com/fekuna/omnipos-order-service/internal/model"
)

func TestEmitter_Record(t *testing.T) {
	sink := &mockSink{}
	e := NewEmitter(sink)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return fixed }

	s := auth.Session{ActorID: "u-1", Role: auth.RoleCashier, BranchID: "b-1"}
	err := e.Record(context.Background(), s, ActionOrderStatusChanged, ResourceOrder, "o-1", Transition("pending", "confirmed"))
	require.NoError(t, err)

	require.Len(t, sink.entries, 1)
	entry := sink.entries[0]
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "u-1", entry.ActorID)
	assert.Equal(t, "b-1", entry.BranchID)
	assert.Equal(t, ActionOrderStatusChanged, entry.Action)
	assert.Equal(t, "o-1", entry.ResourceID)
	assert.Equal(t, "confirmed", entry.Details["to"])
	assert.Equal(t, fixed, entry.CreatedAt)
}

func TestEmitter_SinkFailure(t *testing.T) {
	sink := &mockSink{err: errors.New("sink down")}
	e := NewEmitter(sink)

	err := e.Record(context.Background(), auth.System("b-1"), ActionOrderCreated, ResourceOrder, "o-1", nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindExternal, apperr.KindOf(err))
}

type mockSink struct {
	entries []*model.ActivityLog
	err     error
}

func (m *mockSink) Append(_ context.Context, entry *model.ActivityLog) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}
