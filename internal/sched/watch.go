package sched

// WatchFunc receives the blocks executed during one tick, in execution
// order across both phases. No block is dropped or duplicated within one
// notification.
type WatchFunc func(blocks []BlockID)

type watchSub struct {
	id int
	fn WatchFunc
}

// WatchEventBus batches and publishes "blocks executed this tick"
// notifications.
//
// The scheduler queries HasSubscribers at tick start and skips building
// the block sequence entirely when nobody observes it. Notify fires at
// most once per tick.
//
// Subscribers are invoked in subscription order. Must be used from the
// host's frame goroutine only.
type WatchEventBus struct {
	subs   []watchSub
	nextID int
}

// NewWatchEventBus creates a bus with no subscribers.
func NewWatchEventBus() *WatchEventBus {
	return &WatchEventBus{nextID: 1}
}

// Subscribe registers a callback and returns a token for Unsubscribe.
func (b *WatchEventBus) Subscribe(fn WatchFunc) int {
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, watchSub{id: id, fn: fn})
	return id
}

// Unsubscribe removes a previously registered callback.
// Unknown tokens are ignored.
func (b *WatchEventBus) Unsubscribe(id int) {
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// HasSubscribers reports whether at least one subscriber is registered.
func (b *WatchEventBus) HasSubscribers() bool {
	return len(b.subs) > 0
}

// Notify fans the executed block sequence out to every subscriber.
// Callers must not notify when HasSubscribers is false.
func (b *WatchEventBus) Notify(blocks []BlockID) {
	for _, s := range b.subs {
		s.fn(blocks)
	}
}
