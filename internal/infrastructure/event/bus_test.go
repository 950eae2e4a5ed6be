package event

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/catalogsync/backend/internal/domain/channel"
	"github.com/catalogsync/backend/internal/domain/shared"
	"github.com/catalogsync/backend/internal/domain/syncrun"
)

type recordingHandler struct {
	types    []string
	received []shared.DomainEvent
	err      error
	panics   bool
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func (h *recordingHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if h.panics {
		panic("handler blew up")
	}
	h.received = append(h.received, event)
	return h.err
}

func completedRunEvent(t *testing.T) *syncrun.RunCompletedEvent {
	t.Helper()
	run, err := syncrun.NewSyncJobRun(uuid.New(), channel.SystemCodeOzon, syncrun.JobTypeCatalogSync)
	require.NoError(t, err)
	run.RecordItem(syncrun.ItemCreated)
	require.NoError(t, run.Complete())
	return syncrun.NewRunCompletedEvent(run)
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers to matching handler", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		handler := &recordingHandler{types: []string{syncrun.EventTypeRunCompleted}}
		bus.Subscribe(handler)

		event := completedRunEvent(t)
		require.NoError(t, bus.Publish(ctx, event))

		require.Len(t, handler.received, 1)
		assert.Equal(t, event.EventID(), handler.received[0].EventID())
	})

	t.Run("wildcard handler receives everything", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		handler := &recordingHandler{}
		bus.Subscribe(handler)

		require.NoError(t, bus.Publish(ctx, completedRunEvent(t)))
		assert.Len(t, handler.received, 1)
	})

	t.Run("unmatched event type is dropped", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		handler := &recordingHandler{types: []string{"something.else"}}
		bus.Subscribe(handler)

		require.NoError(t, bus.Publish(ctx, completedRunEvent(t)))
		assert.Empty(t, handler.received)
	})

	t.Run("failing handler does not block the rest", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		failing := &recordingHandler{
			types: []string{syncrun.EventTypeRunCompleted},
			err:   errors.New("sink unavailable"),
		}
		healthy := &recordingHandler{types: []string{syncrun.EventTypeRunCompleted}}
		bus.Subscribe(failing)
		bus.Subscribe(healthy)

		require.NoError(t, bus.Publish(ctx, completedRunEvent(t)))
		assert.Len(t, healthy.received, 1)
	})

	t.Run("panicking handler is contained", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		panicking := &recordingHandler{
			types:  []string{syncrun.EventTypeRunCompleted},
			panics: true,
		}
		healthy := &recordingHandler{types: []string{syncrun.EventTypeRunCompleted}}
		bus.Subscribe(panicking)
		bus.Subscribe(healthy)

		require.NoError(t, bus.Publish(ctx, completedRunEvent(t)))
		assert.Len(t, healthy.received, 1)
	})
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	handler := &recordingHandler{types: []string{syncrun.EventTypeRunCompleted}}
	bus.Subscribe(handler)
	bus.Unsubscribe(handler)

	require.NoError(t, bus.Publish(context.Background(), completedRunEvent(t)))
	assert.Empty(t, handler.received)
}

func TestRunReportSink(t *testing.T) {
	sink := NewRunReportSink(zap.NewNop())

	assert.Equal(t, []string{syncrun.EventTypeRunCompleted}, sink.EventTypes())
	assert.NoError(t, sink.Handle(context.Background(), completedRunEvent(t)))
}
