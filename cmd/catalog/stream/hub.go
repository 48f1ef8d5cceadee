package stream

import (
	"context"
	"sync"

	"github.com/lyzr/mediacatalog/common/logger"
)

// Message is one encoded catalog event routed by entry id
type Message struct {
	EntryID int64
	Data    []byte
}

// Hub maintains watcher connections and fans catalog events out to them.
// All membership changes happen on the Run goroutine.
type Hub struct {
	// Map: watched entry id (0 = every entry) → clients
	watchers map[int64]map[*Client]struct{}
	mutex    sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	done       chan struct{}

	log *logger.Logger
}

// NewHub creates a new Hub instance
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		watchers:   make(map[int64]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run starts the hub's main loop and blocks until ctx is cancelled.
// Every remaining client is disconnected on exit.
func (h *Hub) Run(ctx context.Context) {
	h.log.Info("event hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			h.log.Info("event hub stopped")
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

// Register adds a client. Returns false when the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client; safe to call after the hub has stopped
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues a message for delivery. Drops it when the hub is saturated.
func (h *Hub) Broadcast(m *Message) bool {
	select {
	case <-h.done:
		return false
	default:
	}

	select {
	case h.broadcast <- m:
		return true
	default:
		h.log.Warn("event hub saturated, dropping event", "entry_id", m.EntryID)
		return false
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	set, ok := h.watchers[client.entryID]
	if !ok {
		set = make(map[*Client]struct{})
		h.watchers[client.entryID] = set
	}
	set[client] = struct{}{}

	h.log.Debug("watcher registered", "entry_id", client.entryID, "watchers", len(set))
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.removeLocked(client)
}

// removeLocked drops client and closes its send channel exactly once
func (h *Hub) removeLocked(client *Client) {
	set := h.watchers[client.entryID]
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	close(client.send)
	if len(set) == 0 {
		delete(h.watchers, client.entryID)
	}
}

func (h *Hub) deliver(message *Message) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	keys := []int64{0}
	if message.EntryID != 0 {
		keys = append(keys, message.EntryID)
	}

	for _, key := range keys {
		for client := range h.watchers[key] {
			select {
			case client.send <- message.Data:
			default:
				h.log.Warn("watcher too slow, disconnecting", "entry_id", client.entryID)
				h.removeLocked(client)
			}
		}
	}
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for _, set := range h.watchers {
		for client := range set {
			h.removeLocked(client)
		}
	}
}

// ConnectionCount returns the number of active watchers
func (h *Hub) ConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	count := 0
	for _, set := range h.watchers {
		count += len(set)
	}
	return count
}
