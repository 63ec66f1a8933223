// Package eventbus implements the in-process click-event publish/
// subscribe bus: process-local, no persistence, no replay, and never
// blocking the publisher.
package eventbus

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ClickRecord is the structured click event published to subscribers.
type ClickRecord struct {
	EventID          string
	Timestamp        string
	LinkID           string
	ShortCode        string
	OwnerID          *string
	IP               string
	UserAgent        string
	Country          *string
	City             *string
	DeviceClass      string
	Platform         *string
	RedirectURL      string
	Reason           string
	TargetingMatched bool
	UTM              map[string]string
	Referer          *string
	Language         *string
}

// Filter restricts delivery to a subscriber; both fields AND together
// when present.
type Filter struct {
	OwnerID *string
	LinkID  *string
}

func (f Filter) matches(rec ClickRecord) bool {
	if f.OwnerID != nil {
		if rec.OwnerID == nil || *rec.OwnerID != *f.OwnerID {
			return false
		}
	}
	if f.LinkID != nil && rec.LinkID != *f.LinkID {
		return false
	}
	return true
}

// Callback receives published click records.
type Callback func(ClickRecord)

// CancelFunc unsubscribes a previously registered callback.
type CancelFunc func()

type subscriber struct {
	id       uint64
	filter   Filter
	callback Callback
	queue    chan ClickRecord
	done     chan struct{}
}

// Bus is a process-local, in-memory publish/subscribe hub for click events.
type Bus struct {
	mu       sync.RWMutex
	subs     map[uint64]*subscriber
	nextID   atomic.Uint64
	log      *zap.Logger
	queueLen int
}

// New constructs an empty Bus. queueLen bounds the per-subscriber
// delivery buffer; publishes never block even if a subscriber's queue is
// full — the record is dropped for that subscriber and logged.
func New(queueLen int, log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	if queueLen <= 0 {
		queueLen = 64
	}
	return &Bus{subs: make(map[uint64]*subscriber), log: log, queueLen: queueLen}
}

// Subscribe registers cb to receive click records matching filter, and
// returns a handle to cancel the subscription. Delivery to this
// subscriber is serialized and runs on its own goroutine so a slow or
// failing subscriber never affects others.
func (b *Bus) Subscribe(filter Filter, cb Callback) CancelFunc {
	id := b.nextID.Add(1)
	sub := &subscriber{
		id:       id,
		filter:   filter,
		callback: cb,
		queue:    make(chan ClickRecord, b.queueLen),
		done:     make(chan struct{}),
	}

	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()

	go b.drain(sub)

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		close(sub.done)
	}
}

func (b *Bus) drain(sub *subscriber) {
	for {
		select {
		case rec := <-sub.queue:
			b.deliverOne(sub, rec)
		case <-sub.done:
			return
		}
	}
}

func (b *Bus) deliverOne(sub *subscriber, rec ClickRecord) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event bus subscriber panicked", zap.Any("recover", r))
		}
	}()
	sub.callback(rec)
}

// Publish fans rec out to every matching subscriber without blocking the
// caller. A subscriber with a full queue drops the record and logs it —
// the bus never blocks the publisher.
func (b *Bus) Publish(rec ClickRecord) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subs {
		if !sub.filter.matches(rec) {
			continue
		}
		select {
		case sub.queue <- rec:
		default:
			b.log.Warn("event bus subscriber queue full, dropping record",
				zap.Uint64("subscriber_id", sub.id), zap.String("link_id", rec.LinkID))
		}
	}
}
