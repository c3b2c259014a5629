package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/rfqflow/internal/logging"
	"github.com/aretw0/rfqflow/pkg/runner"
)

// Event is one server-sent event.
type Event struct {
	Name string
	Data []byte
}

const subscriberBuffer = 64

// StreamManager fans run events out to the SSE subscribers of each thread.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	logger      *slog.Logger
}

// NewStreamManager creates an empty manager.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[string]map[chan Event]struct{}),
		logger:      logging.NewNop(),
	}
}

// Subscribe registers a subscriber for key. The returned func unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(key string) (<-chan Event, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if _, ok := sm.subscribers[key]; !ok {
		sm.subscribers[key] = make(map[chan Event]struct{})
	}
	sm.subscribers[key][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[key]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(sm.subscribers, key)
				}
			}
		})
	}
}

// Publish delivers ev to every subscriber of key. Slow subscribers lose events.
func (sm *StreamManager) Publish(key string, ev Event) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	for ch := range sm.subscribers[key] {
		select {
		case ch <- ev:
		default:
			sm.logger.Warn("SSE client buffer full, dropping event", "stream", key, "event", ev.Name)
		}
	}
}

// Subscribers returns the number of subscribers of key.
func (sm *StreamManager) Subscribers(key string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[key])
}

func streamKey(tenant, threadID string) string {
	return tenant + "/" + threadID
}

type stepPayload struct {
	Kind  runner.Kind `json:"kind"`
	Index int         `json:"index"`
	Node  string      `json:"node,omitempty"`
	Delta any         `json:"delta,omitempty"`
	Error string      `json:"error,omitempty"`
}

type tokenPayload struct {
	Node string `json:"node"`
	Text string `json:"text"`
}

func stepEvent(step runner.Step) Event {
	p := stepPayload{Kind: step.Kind, Index: step.Index, Node: step.Node}
	if !step.Delta.IsEmpty() {
		p.Delta = step.Delta
	}
	name := "step"
	switch step.Kind {
	case runner.Suspended:
		name = "interrupt"
		p.Delta = step.Interrupt
	case runner.Done:
		name = "done"
	case runner.Failed:
		name = "error"
		if step.Err != nil {
			p.Error = step.Err.Error()
		}
	}
	data, _ := json.Marshal(p)
	return Event{Name: name, Data: data}
}

func tokenEvent(node, text string) Event {
	data, _ := json.Marshal(tokenPayload{Node: node, Text: text})
	return Event{Name: "token", Data: data}
}

// threadEvents streams the runs of a thread as server-sent events.
func (s *Server) threadEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported", "")
		return
	}
	threadID := chi.URLParam(r, "id")
	sess := sessionOf(r)
	if _, err := s.owned(r, threadID); err != nil && statusFor(err) != http.StatusNotFound {
		s.fail(w, threadID, err)
		return
	}

	ch, cancel := s.Streams.Subscribe(streamKey(sess.TenantID, threadID))
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	s.logger.Debug("SSE subscribed", "thread_id", threadID)
	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected", "thread_id", threadID)
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, ev.Data)
			flusher.Flush()
		}
	}
}
