package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/crowdfund-escrow/backend/internal/events"
	"github.com/crowdfund-escrow/backend/internal/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type wsClient struct {
	conn     *websocket.Conn
	account  string
	campaign string // empty = every campaign
	mu       sync.Mutex
}

// wants reports whether the event goes to this client. Deposits are private
// to the credited account; the rest may be narrowed to one campaign.
func (cl *wsClient) wants(event events.Event) bool {
	if event.Type == events.EventDepositCredited {
		account, _ := event.Payload["account"].(string)
		return account != "" && account == cl.account
	}
	campaign, _ := event.Payload["campaign"].(string)
	return cl.campaign == "" || cl.campaign == campaign
}

func (cl *wsClient) send(data []byte) error {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHub fans escrow events out to connected clients.
type WSHub struct {
	subscriber events.Subscriber
	log        *zap.Logger
	mu         sync.RWMutex
	clients    map[*wsClient]struct{}
}

func NewWSHub(subscriber events.Subscriber, log *zap.Logger) *WSHub {
	return &WSHub{
		subscriber: subscriber,
		log:        log,
		clients:    make(map[*wsClient]struct{}),
	}
}

func (h *WSHub) Start(ctx context.Context) error {
	return h.subscriber.Subscribe(ctx, events.StreamEscrow, h.broadcast)
}

func (h *WSHub) broadcast(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for cl := range h.clients {
		if !cl.wants(event) {
			continue
		}
		if err := cl.send(data); err != nil {
			h.log.Debug("ws send failed", zap.String("account", cl.account), zap.Error(err))
		}
	}
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// HandleWS runs behind AuthMiddleware, so the account is already in Locals.
// ?campaign=<id> narrows the stream to one campaign.
func (h *WSHub) HandleWS(conn *websocket.Conn) {
	account, _ := conn.Locals(middleware.CtxAccount).(string)
	cl := &wsClient{conn: conn, account: account, campaign: conn.Query("campaign")}

	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, cl)
		h.mu.Unlock()
		conn.Close()
	}()

	// Read loop (keep alive / pings)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
