package module

// Notifier is a concurrency primitive for informing worker routines about the
// arrival of new work unit(s). Notifiers behave like channels in that they
// can be passed by value and still allow concurrent updates of the same
// internal state.
type Notifier struct {
	// Sending a notification is non-blocking: the buffered channel of capacity
	// one remembers that a notification is outstanding, and notifying an
	// already-notified Notifier is a no-op. Consumers receive from Channel(),
	// which atomically consumes the outstanding notification.
	notifier chan struct{}
}

// NewNotifier instantiates a Notifier.
func NewNotifier() Notifier {
	return Notifier{make(chan struct{}, 1)}
}

// Notify sends a notification
func (n Notifier) Notify() {
	select {
	// to prevent from getting blocked by dropping the notification if
	// there is no handler subscribing the channel.
	case n.notifier <- struct{}{}:
	default:
	}
}

// Channel returns a channel for receiving notifications
func (n Notifier) Channel() <-chan struct{} {
	return n.notifier
}
