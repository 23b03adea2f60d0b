package httpapi

import (
	"net/http"
	"staffcore/internal/state"
	"sync"
	"time"
)

const writeWait = 10 * time.Second

var streamKeys = []string{state.KeyAllocations, state.KeyProjects, state.KeyTalents, state.KeyAreas}

// stateMessage is one frame of the events stream.
type stateMessage struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// pending coalesces container updates per key so a slow client only ever
// receives the newest value of each key.
type pending struct {
	mu     sync.Mutex
	values map[string]any
	order  []string
	wake   chan struct{}
}

func newPending() *pending {
	return &pending{values: make(map[string]any), wake: make(chan struct{}, 1)}
}

func (p *pending) put(key string, value any) {
	p.mu.Lock()
	if _, queued := p.values[key]; !queued {
		p.order = append(p.order, key)
	}
	p.values[key] = value
	p.mu.Unlock()
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *pending) drain() []stateMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]stateMessage, 0, len(p.order))
	for _, key := range p.order {
		out = append(out, stateMessage{Key: key, Value: p.values[key]})
	}
	p.values = make(map[string]any)
	p.order = nil
	return out
}

// handleEvents upgrades to a websocket and streams the current value of each
// record key followed by every later update.
func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if h.container == nil {
		writeError(w, http.StatusNotFound, "event stream not configured")
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	queue := newPending()
	stop := h.container.Watch(streamKeys, queue.put)
	defer stop()
	for _, key := range streamKeys {
		if v, ok := h.container.Get(key); ok {
			queue.put(key, v)
		}
	}

	// the read loop only notices the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-queue.wake:
			for _, msg := range queue.drain() {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(msg); err != nil {
					h.logger.Debug("event stream closed", "error", err)
					return
				}
			}
		}
	}
}
