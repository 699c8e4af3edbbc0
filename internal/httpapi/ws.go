package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/shelfmark/productpipeline/internal/logging"
)

// Keepalive tuning, carried over from the teacher's internal/websocket
// Client (writeWait/pongWait/pingPeriod/maxMessageSize), unchanged since a
// progress viewer has the same connection-liveness needs as a campaign
// dashboard.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ProgressEvent is one update broadcast to a job's subscribers (§6
// websocket progress). Unlike the teacher's WebSocketMessage, this has no
// campaign subscription envelope or sequence-recovery metadata: one
// connection subscribes to exactly one job, via the URL's :job_id.
type ProgressEvent struct {
	JobID             uuid.UUID `json:"job_id"`
	Status            string    `json:"status"`
	PagesProcessed    int       `json:"pages_processed"`
	ProductsFound     int       `json:"products_found"`
	ProductsNew       int       `json:"products_new"`
	ProductsDuplicate int       `json:"products_duplicate"`
	Message           string    `json:"message,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// subscriber is one websocket connection's outbound queue, the way the
// teacher's Client wraps *websocket.Conn with a buffered send channel.
type subscriber struct {
	jobID uuid.UUID
	conn  *websocket.Conn
	send  chan []byte
}

// Hub fans ProgressEvents out to every subscriber of the event's job id,
// replacing the teacher's WebSocketManager's campaign-map/retry-queue/
// event-history machinery with a single map keyed by job id: this surface
// has no reconnect-and-replay requirement, a dropped connection simply
// resubscribes and waits for the next event.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]map[*subscriber]bool

	register   chan *subscriber
	unregister chan *subscriber
	broadcast  chan ProgressEvent

	log *logging.Logger
}

func newHub() *Hub {
	return &Hub{
		subscribers: make(map[uuid.UUID]map[*subscriber]bool),
		register:    make(chan *subscriber),
		unregister:  make(chan *subscriber),
		broadcast:   make(chan ProgressEvent, 64),
		log:         logging.For("httpapi.ws"),
	}
}

// run drives the hub's registration and fan-out loop; call it in its own
// goroutine, the way the teacher runs WebSocketManager.Run().
func (h *Hub) run() {
	for {
		select {
		case sub := <-h.register:
			h.mu.Lock()
			if h.subscribers[sub.jobID] == nil {
				h.subscribers[sub.jobID] = make(map[*subscriber]bool)
			}
			h.subscribers[sub.jobID][sub] = true
			h.mu.Unlock()

		case sub := <-h.unregister:
			h.mu.Lock()
			if subs, ok := h.subscribers[sub.jobID]; ok {
				if _, ok := subs[sub]; ok {
					delete(subs, sub)
					close(sub.send)
					if len(subs) == 0 {
						delete(h.subscribers, sub.jobID)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			payload, err := json.Marshal(event)
			if err != nil {
				h.log.Warn("marshaling progress event failed", "job_id", event.JobID.String(), "error", err.Error())
				continue
			}
			h.mu.RLock()
			for sub := range h.subscribers[event.JobID] {
				select {
				case sub.send <- payload:
				default:
					// Slow consumer; drop rather than block the whole hub.
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast publishes a progress event to every subscriber of event.JobID.
// Safe to call from the scheduler's beats concurrently with client traffic.
func (h *Hub) Broadcast(event ProgressEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	h.broadcast <- event
}

// handleConnection upgrades GET /ws/jobs/:job_id to a websocket connection
// and streams that job's ProgressEvents until the client disconnects.
func (h *Hub) handleConnection(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("job_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "job_id", jobID.String(), "error", err.Error())
		return
	}

	sub := &subscriber{jobID: jobID, conn: conn, send: make(chan []byte, 16)}
	h.register <- sub

	go h.writePump(sub)
	h.readPump(sub)
}

// readPump only exists to detect client disconnects and pongs; this stream
// is one-directional (server -> client), so any inbound payload is dropped
// after refreshing the read deadline.
func (h *Hub) readPump(sub *subscriber) {
	defer func() {
		h.unregister <- sub
		sub.conn.Close()
	}()
	sub.conn.SetReadLimit(maxMessageSize)
	sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		sub.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		sub.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-sub.send:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
