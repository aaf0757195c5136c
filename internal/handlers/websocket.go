package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"sim-broker/internal/engine"
	"sim-broker/pkg/utils"
)

const (
	ChannelOrders  = "orders"
	ChannelFills   = "fills"
	ChannelTicks   = "ticks"
	ChannelCancels = "cancels"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS is handled by the outer router
		return true
	},
}

// Event is the envelope pushed to websocket clients.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type subscribeRequest struct {
	Op      string `json:"op"` // subscribe | unsubscribe
	Channel string `json:"channel"`
}

// Hub streams engine events to websocket clients. It is registered on the engine
// as an order, fill, tick and cancel listener.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	nextID  atomic.Uint64
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]bool)}
}

// Attach registers the hub for every engine event.
func (h *Hub) Attach(e *engine.MatchingEngine) {
	e.OnOrder(h)
	e.OnFill(h)
	e.OnTick(h)
	e.OnCancel(h)
}

func (h *Hub) GotOrder(o engine.Order) {
	h.BroadcastToChannel(ChannelOrders, Event{Type: "order", Data: o})
}

func (h *Hub) GotFill(t engine.Trade) {
	h.BroadcastToChannel(ChannelFills, Event{Type: "fill", Data: t})
}

func (h *Hub) GotTick(t engine.Tick) {
	h.BroadcastToChannel(ChannelTicks, Event{Type: "tick", Data: t})
}

func (h *Hub) GotCancel(id uint64) {
	h.BroadcastToChannel(ChannelCancels, Event{Type: "cancel", Data: map[string]uint64{"id": id}})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastToChannel sends data to every client subscribed to channel. Clients
// whose buffer is full are disconnected.
func (h *Hub) BroadcastToChannel(channel string, data interface{}) {
	message, err := json.Marshal(data)
	if err != nil {
		utils.LogError(err)
		return
	}

	var slow []*Client
	h.mu.RLock()
	for client := range h.clients {
		if !client.IsSubscribed(channel) {
			continue
		}
		select {
		case client.send <- message:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.unregister(c)
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	total := len(h.clients)
	h.mu.Unlock()
	utils.Logger.WithFields(logrus.Fields{"client": c.id, "total": total}).Info("Websocket client connected")
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	total := len(h.clients)
	h.mu.Unlock()
	utils.Logger.WithFields(logrus.Fields{"client": c.id, "total": total}).Info("Websocket client disconnected")
}

// ServeWS upgrades the request and starts the client pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		utils.LogError(err)
		return
	}
	c := &Client{
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, sendBuffer),
		id:            fmt.Sprintf("ws-%d", h.nextID.Add(1)),
		subscriptions: make(map[string]bool),
	}
	h.register(c)
	go c.writePump()
	go c.readPump()
}

// Client is one websocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string

	subsMu        sync.RWMutex
	subscriptions map[string]bool
}

func (c *Client) IsSubscribed(channel string) bool {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	return c.subscriptions[channel]
}

func (c *Client) setSubscribed(channel string, on bool) {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	if on {
		c.subscriptions[channel] = true
	} else {
		delete(c.subscriptions, channel)
	}
}

func (c *Client) reply(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var req subscribeRequest
		if err := c.conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				utils.LogError(err)
			}
			return
		}
		switch req.Channel {
		case ChannelOrders, ChannelFills, ChannelTicks, ChannelCancels:
		default:
			c.reply(Event{Type: "error", Data: "unknown channel " + req.Channel})
			continue
		}
		switch req.Op {
		case "subscribe":
			c.setSubscribed(req.Channel, true)
			c.reply(Event{Type: "subscribed", Data: req.Channel})
		case "unsubscribe":
			c.setSubscribed(req.Channel, false)
			c.reply(Event{Type: "unsubscribed", Data: req.Channel})
		default:
			c.reply(Event{Type: "error", Data: "unknown op " + req.Op})
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
