// Package event is an in-process dispatcher for domain notifications such as
// "customer.registered". Listeners run after the originating transaction has
// committed; they must not assume they can veto it.
package event

import (
	"sync"

	"github.com/shashiranjanraj/shop/pkg/logger"
)

// Handler receives an event payload.
type Handler func(payload interface{})

var (
	mu       sync.RWMutex
	handlers = map[string][]Handler{}
	inflight sync.WaitGroup
)

// Listen registers a handler for the given event name.
func Listen(event string, handler Handler) {
	mu.Lock()
	defer mu.Unlock()
	handlers[event] = append(handlers[event], handler)
}

func listeners(event string) []Handler {
	mu.RLock()
	defer mu.RUnlock()
	hs := make([]Handler, len(handlers[event]))
	copy(hs, handlers[event])
	return hs
}

// Fire dispatches an event synchronously to all registered listeners.
func Fire(event string, payload interface{}) {
	for _, h := range listeners(event) {
		call(event, h, payload)
	}
}

// FireAsync dispatches the event to every listener on its own goroutine and
// returns immediately.
func FireAsync(event string, payload interface{}) {
	for _, h := range listeners(event) {
		inflight.Add(1)
		go func(h Handler) {
			defer inflight.Done()
			call(event, h, payload)
		}(h)
	}
}

// Wait blocks until every FireAsync listener started so far has returned.
func Wait() { inflight.Wait() }

// Flush removes all listeners.
func Flush() {
	mu.Lock()
	defer mu.Unlock()
	handlers = map[string][]Handler{}
}

func call(event string, h Handler, payload interface{}) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("event: listener panicked", "event", event, "panic", r)
		}
	}()
	h(payload)
}
