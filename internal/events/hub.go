package events

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Sink receives every published event after local fan-out, e.g. a message
// broker bridge or a chat notification. Each sink is fed from its own queue
// so a slow sink never holds up subscribers. Errors are logged by the hub.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev Event, groups []Group) error
}

// Options tunes the hub. Zero values select defaults.
type Options struct {
	// SubscriberBuffer is the per-subscription channel capacity.
	SubscriberBuffer int
	// Lanes is the number of serial delivery goroutines; an order always maps to the same lane.
	Lanes int
	// LaneDepth is the queue length of each lane.
	LaneDepth int
	// TrackedOrders bounds the last-delivered-version table.
	TrackedOrders int
	// SinkQueue is the number of events buffered per sink.
	SinkQueue   int
	SinkTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.SubscriberBuffer <= 0 {
		o.SubscriberBuffer = 64
	}
	if o.Lanes <= 0 {
		o.Lanes = 8
	}
	if o.LaneDepth <= 0 {
		o.LaneDepth = 256
	}
	if o.TrackedOrders <= 0 {
		o.TrackedOrders = 10000
	}
	if o.SinkQueue <= 0 {
		o.SinkQueue = 256
	}
	if o.SinkTimeout <= 0 {
		o.SinkTimeout = 5 * time.Second
	}
	return o
}

type delivery struct {
	event  Event
	groups []Group
}

// deliveredKey tracks versions per order and group: an event addressed to
// fewer groups must not hide an older one addressed to more.
type deliveredKey struct {
	order uint64
	group Group
}

// groupsPerOrder is how many groups TargetsFor addresses at most.
const groupsPerOrder = 3

type sinkWorker struct {
	sink  Sink
	queue chan delivery
}

// Hub is the process-wide event publisher. Construct it once at startup and
// Close it on shutdown.
type Hub struct {
	opts      Options
	mu        sync.RWMutex
	closed    bool
	groups    map[Group]map[*Subscription]struct{}
	sinks     []sinkWorker
	lanes     []chan delivery
	delivered *lru.Cache[deliveredKey, int64]
	wg        sync.WaitGroup
	sinkWG    sync.WaitGroup
}

// NewHub starts the delivery lanes and one worker per sink.
func NewHub(opts Options, sinks ...Sink) (*Hub, error) {
	opts = opts.withDefaults()
	delivered, err := lru.New[deliveredKey, int64](opts.TrackedOrders * groupsPerOrder)
	if err != nil {
		return nil, err
	}

	h := &Hub{
		opts:      opts,
		groups:    make(map[Group]map[*Subscription]struct{}),
		lanes:     make([]chan delivery, opts.Lanes),
		delivered: delivered,
	}
	for _, sink := range sinks {
		w := sinkWorker{sink: sink, queue: make(chan delivery, opts.SinkQueue)}
		h.sinks = append(h.sinks, w)
		h.sinkWG.Add(1)
		go h.drain(w)
	}
	for i := range h.lanes {
		lane := make(chan delivery, opts.LaneDepth)
		h.lanes[i] = lane
		h.wg.Add(1)
		go h.run(lane)
	}
	return h, nil
}

// Publish enqueues ev for the given groups and returns immediately. It never
// fails; events that cannot be queued are logged and dropped.
func (h *Hub) Publish(ev Event, groups ...Group) {
	if ev.Order == nil || len(groups) == 0 {
		return
	}
	d := delivery{
		event:  Event{Type: ev.Type, Order: ev.Order.Clone()},
		groups: append([]Group(nil), groups...),
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		log.Printf("[Events] hub closed, dropping %s for order %s", ev.Type, ev.Order.OrderNumber)
		return
	}

	lane := h.lanes[ev.Order.ID%uint64(len(h.lanes))]
	select {
	case lane <- d:
	default:
		log.Printf("[Events] lane full, dropping %s for order %s", ev.Type, ev.Order.OrderNumber)
	}
}

// Subscribe registers a subscriber for the union of groups.
func (h *Hub) Subscribe(groups ...Group) *Subscription {
	sub := &Subscription{
		hub:    h,
		groups: append([]Group(nil), groups...),
		ch:     make(chan Event, h.opts.SubscriberBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.closeChannel()
		return sub
	}
	for _, g := range groups {
		members, ok := h.groups[g]
		if !ok {
			members = make(map[*Subscription]struct{})
			h.groups[g] = members
		}
		members[sub] = struct{}{}
	}
	return sub
}

// SubscriberCount reports how many subscriptions currently listen on g.
func (h *Hub) SubscriberCount(g Group) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[g])
}

// Close drains queued events, stops the lanes and closes every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for _, lane := range h.lanes {
		close(lane)
	}
	h.mu.Unlock()

	h.wg.Wait()

	for _, w := range h.sinks {
		close(w.queue)
	}
	h.sinkWG.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	for g, members := range h.groups {
		for sub := range members {
			sub.closeChannel()
		}
		delete(h.groups, g)
	}
}

func (h *Hub) run(lane <-chan delivery) {
	defer h.wg.Done()
	for d := range lane {
		h.deliver(d)
	}
}

func (h *Hub) deliver(d delivery) {
	order := d.event.Order
	fresh := make([]Group, 0, len(d.groups))
	for _, g := range d.groups {
		key := deliveredKey{order: order.ID, group: g}
		if last, ok := h.delivered.Get(key); ok && order.Version <= last {
			log.Printf("[Events] skipping stale %s for order %s in %s (version %d, delivered %d)",
				d.event.Type, order.OrderNumber, g, order.Version, last)
			continue
		}
		h.delivered.Add(key, order.Version)
		fresh = append(fresh, g)
	}
	if len(fresh) == 0 {
		return
	}

	h.mu.RLock()
	targets := make(map[*Subscription]struct{})
	for _, g := range fresh {
		for sub := range h.groups[g] {
			targets[sub] = struct{}{}
		}
	}
	h.mu.RUnlock()

	for sub := range targets {
		if !sub.offer(d.event) {
			log.Printf("[Events] subscriber buffer full, dropped %s for order %s", d.event.Type, order.OrderNumber)
		}
	}

	for _, w := range h.sinks {
		select {
		case w.queue <- delivery{event: d.event, groups: fresh}:
		default:
			log.Printf("[Events] sink %s queue full, dropping %s for order %s", w.sink.Name(), d.event.Type, order.OrderNumber)
		}
	}
}

func (h *Hub) drain(w sinkWorker) {
	defer h.sinkWG.Done()
	for d := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), h.opts.SinkTimeout)
		if err := w.sink.Deliver(ctx, d.event, d.groups); err != nil {
			log.Printf("[Events] sink %s failed for %s on order %s: %v", w.sink.Name(), d.event.Type, d.event.Order.OrderNumber, err)
		}
		cancel()
	}
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, g := range sub.groups {
		if members, ok := h.groups[g]; ok {
			delete(members, sub)
			if len(members) == 0 {
				delete(h.groups, g)
			}
		}
	}
}

// Subscription is one observer's event stream.
type Subscription struct {
	hub     *Hub
	groups  []Group
	ch      chan Event
	mu      sync.Mutex
	closed  bool
	dropped atomic.Uint64
}

// Events is closed when the subscription or the hub is closed.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Dropped counts events lost because the buffer was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close detaches the subscription from the hub.
func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
	s.closeChannel()
}

func (s *Subscription) offer(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- ev:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

func (s *Subscription) closeChannel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
