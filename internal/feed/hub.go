package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"foodrankr-web/internal/backend"
	"foodrankr-web/internal/events"
	"foodrankr-web/internal/views"
	"foodrankr-web/pkg/kafka"
)

const writeWait = 10 * time.Second

// The zero CheckOrigin only accepts same-origin upgrades.
var upgrader = websocket.Upgrader{}

// safeConn wraps a websocket.Conn with a write mutex.
// gorilla/websocket allows one concurrent writer; this enforces that.
type safeConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *safeConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

func (c *safeConn) close() { c.ws.Close() }

// Update is pushed to a live feed connection.
type Update struct {
	Generation uint64           `json:"generation"`
	CompanyID  string           `json:"company_id"`
	Ratings    []backend.Rating `json:"ratings"`
	HTML       string           `json:"html"`
	Error      string           `json:"error,omitempty"`
}

// filterRequest is what the browser sends when its company filter changes.
type filterRequest struct {
	CompanyID string `json:"company_id"`
}

type client struct {
	ctx  context.Context
	conn *safeConn
	seq  Sequencer
	wg   sync.WaitGroup

	mu        sync.Mutex
	companyID string
}

func (c *client) filter() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.companyID
}

func (c *client) setFilter(id string) {
	c.mu.Lock()
	c.companyID = id
	c.mu.Unlock()
}

// Hub keeps live feed connections and re-queries them when ratings change.
type Hub struct {
	svc    *Service
	views  *views.Renderer
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates a live feed hub.
func NewHub(svc *Service, v *views.Renderer, logger *zap.Logger) *Hub {
	return &Hub{svc: svc, views: v, logger: logger.Named("feed.ws"), clients: make(map[*client]struct{})}
}

// HandleWS upgrades the connection and serves filter changes until the
// browser disconnects.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("upgrade error", zap.Error(err))
		return
	}

	c := &client{ctx: r.Context(), conn: &safeConn{ws: ws}}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("client connected", zap.Int("clients", h.Count()))

	for {
		var req filterRequest
		if err := ws.ReadJSON(&req); err != nil {
			break
		}
		c.setFilter(req.CompanyID)
		h.mu.RLock()
		h.refresh(c)
		h.mu.RUnlock()
	}

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.seq.Stop()
	c.wg.Wait()
	c.conn.close()
	h.logger.Debug("client disconnected")
}

// Broadcast re-queries every connection whose filter covers companyID. An
// empty companyID refreshes everyone.
func (h *Hub) Broadcast(companyID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if f := c.filter(); companyID == "" || f == "" || f == companyID {
			h.refresh(c)
		}
	}
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Listen refreshes connections whenever a rating.submitted event arrives.
func (h *Hub) Listen(ctx context.Context, bus events.Bus, groupID string) {
	bus.Subscribe(ctx, kafka.TopicRatingSubmitted, groupID, func(data []byte) error {
		var ev events.RatingSubmittedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return err
		}
		h.Broadcast(ev.CompanyID)
		return nil
	})
}

// refresh must be called with h.mu held so a departing client is never
// handed new work after it has drained.
func (h *Hub) refresh(c *client) {
	ctx, gen := c.seq.Begin(c.ctx)
	companyID := c.filter()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ratings, err := h.svc.Ratings(ctx, companyID)
		if ctx.Err() != nil {
			return
		}
		msg := Update{Generation: gen, CompanyID: companyID, Ratings: ratings}
		fragment := "ratings"
		if err != nil {
			h.logger.Warn("live refresh failed", zap.String("company", companyID), zap.Error(err))
			msg.Error, fragment = "unavailable", "unavailable"
		}
		if msg.HTML, err = h.views.Fragment(fragment, ratings); err != nil {
			h.logger.Error("render feed fragment", zap.String("fragment", fragment), zap.Error(err))
		}
		c.seq.Apply(gen, func() {
			if err := c.conn.writeJSON(msg); err != nil {
				h.logger.Debug("write error", zap.Error(err))
			}
		})
	}()
}
