package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pimboto/automation-bot-ui/internal/common"
	"github.com/Pimboto/automation-bot-ui/internal/interfaces"
)

func newTestService() interfaces.EventService {
	return NewService(common.GetLogger())
}

func TestSubscribeRejectsNilHandler(t *testing.T) {
	svc := newTestService()
	err := svc.Subscribe(interfaces.EventNotification, nil)
	assert.Error(t, err)
}

func TestPublishSyncDeliversToAllSubscribers(t *testing.T) {
	svc := newTestService()

	var mu sync.Mutex
	received := []string{}

	for _, name := range []string{"a", "b"} {
		n := name
		err := svc.Subscribe(interfaces.EventBatchFinished, func(ctx context.Context, event interfaces.Event) error {
			mu.Lock()
			received = append(received, n)
			mu.Unlock()
			return nil
		})
		require.NoError(t, err)
	}

	err := svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventBatchFinished})
	require.NoError(t, err)
	assert.Len(t, received, 2)
}

func TestPublishSyncAggregatesHandlerErrors(t *testing.T) {
	svc := newTestService()

	require.NoError(t, svc.Subscribe(interfaces.EventMonitorUpdate, func(ctx context.Context, event interfaces.Event) error {
		return errors.New("handler broke")
	}))
	require.NoError(t, svc.Subscribe(interfaces.EventMonitorUpdate, func(ctx context.Context, event interfaces.Event) error {
		return nil
	}))

	err := svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventMonitorUpdate})
	assert.Error(t, err)
}

func TestPublishIsAsynchronous(t *testing.T) {
	svc := newTestService()

	done := make(chan struct{})
	require.NoError(t, svc.Subscribe(interfaces.EventNotification, func(ctx context.Context, event interfaces.Event) error {
		close(done)
		return nil
	}))

	require.NoError(t, svc.Publish(context.Background(), interfaces.Event{Type: interfaces.EventNotification}))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler was never invoked")
	}
}

func TestPublishWithoutSubscribersIsNoop(t *testing.T) {
	svc := newTestService()
	assert.NoError(t, svc.Publish(context.Background(), interfaces.Event{Type: interfaces.EventBatchProgress}))
	assert.NoError(t, svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventBatchProgress}))
}

func TestCloseDropsSubscribers(t *testing.T) {
	svc := newTestService()

	calls := 0
	require.NoError(t, svc.Subscribe(interfaces.EventNotification, func(ctx context.Context, event interfaces.Event) error {
		calls++
		return nil
	}))
	require.NoError(t, svc.Close())

	require.NoError(t, svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventNotification}))
	assert.Zero(t, calls)
}

func TestNotifyPublishesNotificationEvent(t *testing.T) {
	svc := newTestService()

	var got interfaces.Notification
	done := make(chan struct{})
	require.NoError(t, svc.Subscribe(interfaces.EventNotification, func(ctx context.Context, event interfaces.Event) error {
		got = event.Payload.(interfaces.Notification)
		close(done)
		return nil
	}))

	Notify(context.Background(), svc, interfaces.Notification{
		Kind:  interfaces.NotifySuccess,
		Title: "Batch complete",
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("notification was never delivered")
	}
	assert.Equal(t, interfaces.NotifySuccess, got.Kind)
	assert.Equal(t, "Batch complete", got.Title)
}
