package interfaces

import "context"

// EventType identifies a class of panel events.
type EventType string

const (
	// EventNotification carries a Notification payload for the toast sink.
	EventNotification EventType = "notification"
	// EventMonitorUpdate fires after a monitor entry changes (fetch result,
	// add, remove, pause toggle). Payload: session id.
	EventMonitorUpdate EventType = "monitor_update"
	// EventBatchProgress fires on every per-device state change during a
	// batch execution. Payload: map with batch_id, device_udid, status.
	EventBatchProgress EventType = "batch_progress"
	// EventBatchFinished fires once a batch execution resolves.
	EventBatchFinished EventType = "batch_finished"
)

// Event is a single published event.
type Event struct {
	Type    EventType
	Payload interface{}
}

// EventHandler processes one event. Returned errors are logged, never
// propagated to the publisher.
type EventHandler func(ctx context.Context, event Event) error

// EventService is an in-process pub/sub bus. Publish is fire-and-forget;
// PublishSync waits for all handlers.
type EventService interface {
	Subscribe(eventType EventType, handler EventHandler) error
	Publish(ctx context.Context, event Event) error
	PublishSync(ctx context.Context, event Event) error
	Close() error
}

// NotificationKind is the severity of a user-facing notification.
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
	NotifyWarning NotificationKind = "warning"
	NotifyInfo    NotificationKind = "info"
)

// NotificationAction is an optional button rendered on a toast.
type NotificationAction struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Notification is a fire-and-forget message for the external toast
// renderer. The core does not depend on whether it is displayed.
type Notification struct {
	Kind       NotificationKind     `json:"kind"`
	Title      string               `json:"title"`
	Message    string               `json:"message"`
	DeviceUDID string               `json:"device_udid,omitempty"`
	Actions    []NotificationAction `json:"actions,omitempty"`
}
