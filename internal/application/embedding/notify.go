package embedding

import (
	"sync"

	"github.com/turtacn/embedscope/internal/domain/pointcloud"
	"github.com/turtacn/embedscope/internal/infrastructure/monitoring/logging"
)

const (
	NotificationTitle = "An error occurred"
	DismissActionText = "Dismiss"
)

// NotificationAction is the single action offered with a notification.
type NotificationAction struct {
	Text    string `json:"text"`
	OnClick func() `json:"-"`
}

// Notification is a dismissible user-facing error.
type Notification struct {
	Title   string             `json:"title"`
	Message string             `json:"message"`
	Action  NotificationAction `json:"action"`
}

// NotificationSink presents notifications.
type NotificationSink interface {
	Notify(n Notification)
}

// NotificationSinkFunc adapts a function to NotificationSink.
type NotificationSinkFunc func(Notification)

func (f NotificationSinkFunc) Notify(n Notification) { f(n) }

// Notifier watches the store and emits a Notification every time the error
// message becomes set or changes.  Dismissing clears the store error.
type Notifier struct {
	store  *pointcloud.Store
	sink   NotificationSink
	logger logging.Logger

	mu          sync.Mutex
	lastVersion uint64
	lastMessage *string
	unsubscribe func()
}

// NewNotifier subscribes to store.  An error already present is reported
// immediately.
func NewNotifier(store *pointcloud.Store, sink NotificationSink, logger logging.Logger) *Notifier {
	n := &Notifier{
		store:  store,
		sink:   sink,
		logger: logging.OrNop(logger).Named("notifier"),
	}
	n.unsubscribe = store.Subscribe(n.observe)
	n.observe(store.Snapshot())
	return n
}

// Close stops watching the store.
func (n *Notifier) Close() {
	n.unsubscribe()
}

func (n *Notifier) observe(snap pointcloud.Snapshot) {
	n.mu.Lock()
	if snap.Version < n.lastVersion {
		n.mu.Unlock()
		return
	}
	n.lastVersion = snap.Version
	prev := n.lastMessage
	n.lastMessage = snap.ErrorMessage
	fire := snap.ErrorMessage != nil && (prev == nil || *prev != *snap.ErrorMessage)
	n.mu.Unlock()

	if !fire {
		return
	}
	msg := *snap.ErrorMessage
	n.logger.Debug("emitting error notification", logging.String("message", msg))
	n.sink.Notify(Notification{
		Title:   NotificationTitle,
		Message: msg,
		Action:  NotificationAction{Text: DismissActionText, OnClick: n.dismiss},
	})
}

func (n *Notifier) dismiss() {
	n.store.SetErrorMessage(nil)
}

// LogSink writes notifications to a logger.  Headless deployments use it.
type LogSink struct {
	Logger logging.Logger
}

func (s LogSink) Notify(n Notification) {
	logging.OrNop(s.Logger).Warn(n.Title, logging.String("message", n.Message))
}
