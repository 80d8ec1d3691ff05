package client

import (
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"
	"github.com/yashUcr773/task-management-app-sub001/src/types"
)

// Wildcard subscribes to every event type.
const Wildcard types.EventType = "*"

// Listener receives dispatched events. A returned error is logged only.
type Listener func(evt types.Event) error

type subscription struct {
	eventType types.EventType
	fn        Listener
}

// Dispatcher fans inbound events out to subscribed listeners.
type Dispatcher struct {
	mu        sync.Mutex
	listeners map[types.EventType][]*subscription

	// serializes Dispatch calls
	dispatchMu sync.Mutex
	logger     zerolog.Logger
}

// NewDispatcher creates an empty dispatch table.
func NewDispatcher(logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		listeners: make(map[types.EventType][]*subscription),
		logger:    logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Subscribe registers fn for eventType, or for every event with Wildcard.
// The returned function removes this registration; calls after the first do nothing.
func (d *Dispatcher) Subscribe(eventType types.EventType, fn Listener) func() {
	sub := &subscription{eventType: eventType, fn: fn}

	d.mu.Lock()
	d.listeners[eventType] = append(d.listeners[eventType], sub)
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { d.remove(sub) })
	}
}

func (d *Dispatcher) remove(sub *subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := d.listeners[sub.eventType]
	i := slices.Index(list, sub)
	if i < 0 {
		return
	}
	list = slices.Delete(slices.Clone(list), i, i+1)
	if len(list) == 0 {
		delete(d.listeners, sub.eventType)
		return
	}
	d.listeners[sub.eventType] = list
}

// Dispatch invokes the listeners for evt.Type followed by the wildcard
// listeners, each group in subscription order.
func (d *Dispatcher) Dispatch(evt types.Event) {
	d.dispatchMu.Lock()
	defer d.dispatchMu.Unlock()

	d.mu.Lock()
	targets := slices.Clone(d.listeners[evt.Type])
	if evt.Type != Wildcard {
		targets = append(targets, d.listeners[Wildcard]...)
	}
	d.mu.Unlock()

	for _, sub := range targets {
		if err := d.invoke(sub, evt); err != nil {
			d.logger.Warn().Err(err).
				Str("event_type", string(evt.Type)).
				Str("listener", string(sub.eventType)).
				Msg("listener failed")
		}
	}
}

// Len returns the number of registrations for eventType.
func (d *Dispatcher) Len(eventType types.EventType) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.listeners[eventType])
}

func (d *Dispatcher) invoke(sub *subscription, evt types.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return sub.fn(evt)
}
