package coordinator

import (
	"github.com/google/uuid"
)

// Listener is called with the new snapshot after each successful cycle.
//
// Listeners run on the refresh goroutine, one after another, so they must
// return quickly. They should treat the snapshot as read-only. A listener
// that calls RefreshNow gets the snapshot it is being notified of; it does
// not start another cycle.
type Listener func(*Snapshot)

// Subscription identifies a registered listener.
type Subscription struct {
	id uuid.UUID
}

// ID returns the subscription's identifier.
func (s Subscription) ID() string {
	return s.id.String()
}

// Subscribe registers l. A nil listener is ignored and yields the zero
// Subscription.
func (c *Coordinator) Subscribe(l Listener) Subscription {
	if l == nil {
		return Subscription{}
	}

	sub := Subscription{id: uuid.New()}

	c.subMu.Lock()
	c.subs[sub.id] = l
	n := len(c.subs)
	c.subMu.Unlock()

	c.recorder.SetSubscribers(n)
	return sub
}

// Unsubscribe removes the listener. Unknown or already removed
// subscriptions are ignored.
func (c *Coordinator) Unsubscribe(sub Subscription) {
	c.subMu.Lock()
	delete(c.subs, sub.id)
	n := len(c.subs)
	c.subMu.Unlock()

	c.recorder.SetSubscribers(n)
}

// notify delivers snap to every listener registered when the cycle
// finished. A panicking listener is logged and does not affect the others.
func (c *Coordinator) notify(snap *Snapshot) {
	c.subMu.RLock()
	listeners := make([]Listener, 0, len(c.subs))
	for _, l := range c.subs {
		listeners = append(listeners, l)
	}
	c.subMu.RUnlock()

	for _, l := range listeners {
		c.deliver(l, snap)
	}
}

func (c *Coordinator) deliver(l Listener, snap *Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("snapshot listener panicked", "panic", r)
		}
	}()
	l(snap)
}
