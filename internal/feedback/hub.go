// Package feedback turns session events into fire-and-forget signals the
// UI shell renders as sound and motion. Nothing here may fail or block
// session logic.
package feedback

import (
	"sync"
	"time"
)

// Kind names a feedback signal.
type Kind string

const (
	KindSuccess  Kind = "success"
	KindError    Kind = "error"
	KindFanfare  Kind = "fanfare"
	KindShake    Kind = "shake"
	KindShakeEnd Kind = "shakeEnd"
)

// Event is one feedback pulse delivered to subscribers.
type Event struct {
	Kind Kind `json:"kind"`
}

const defaultShakeReset = 500 * time.Millisecond

// Hub fans feedback events out to subscribers. The shake pulse auto-clears
// after ~500ms, emitting a matching shakeEnd event.
type Hub struct {
	mu          sync.Mutex
	subscribers map[chan Event]struct{}
	shakeReset  time.Duration
	shaking     bool
	shakeTimer  *time.Timer
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[chan Event]struct{}),
		shakeReset:  defaultShakeReset,
	}
}

func (h *Hub) PlaySuccess() { h.emit(KindSuccess) }
func (h *Hub) PlayError()   { h.emit(KindError) }
func (h *Hub) PlayFanfare() { h.emit(KindFanfare) }

// Shake starts the visual shake pulse; restarting an in-flight shake
// extends it.
func (h *Hub) Shake() {
	h.mu.Lock()
	h.shaking = true
	if h.shakeTimer != nil {
		h.shakeTimer.Stop()
	}
	h.shakeTimer = time.AfterFunc(h.shakeReset, func() {
		h.mu.Lock()
		h.shaking = false
		h.mu.Unlock()
		h.emit(KindShakeEnd)
	})
	h.mu.Unlock()
	h.emit(KindShake)
}

// IsShaking reports whether the shake pulse is currently active.
func (h *Hub) IsShaking() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.shaking
}

// Subscribe registers a feedback listener. The caller must invoke the
// returned cancel function to avoid leaks.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *Hub) emit(kind Kind) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subscribers {
		select {
		case ch <- Event{Kind: kind}:
		default:
			// Drop the oldest pending event rather than block a slow client.
			select {
			case <-ch:
			default:
			}
			ch <- Event{Kind: kind}
		}
	}
}
