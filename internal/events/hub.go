// Package events fans video status changes out to in-process subscribers.
package events

import (
	"sync"
	"time"

	"jamesfarrell.me/video-mcq/internal/storage/models"
)

type StatusEvent struct {
	VideoID string        `json:"videoId"`
	Status  models.Status `json:"status"`
	Error   string        `json:"error,omitempty"`
	At      time.Time     `json:"at"`
}

type Publisher interface {
	Publish(ev StatusEvent)
}

// Discard drops every event.
var Discard Publisher = discard{}

type discard struct{}

func (discard) Publish(StatusEvent) {}

const subscriberBuffer = 16

type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan StatusEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan StatusEvent]struct{})}
}

// Publish delivers ev to every subscriber of its video. Slow subscribers miss
// events rather than block the publisher.
func (h *Hub) Publish(ev StatusEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[ev.VideoID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe returns a channel of events for videoID and a function that
// unsubscribes and closes it.
func (h *Hub) Subscribe(videoID string) (<-chan StatusEvent, func()) {
	ch := make(chan StatusEvent, subscriberBuffer)

	h.mu.Lock()
	if h.subs[videoID] == nil {
		h.subs[videoID] = make(map[chan StatusEvent]struct{})
	}
	h.subs[videoID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[videoID], ch)
			if len(h.subs[videoID]) == 0 {
				delete(h.subs, videoID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}
