package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"food-marketplace-api/middleware"
	"food-marketplace-api/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type feedMessage[T any] struct {
	Type string `json:"type"`
	Data T      `json:"data"`
}

// RestaurantsFeed streams the restaurant list on every catalog change
func (h *Handler) RestaurantsFeed(c *gin.Context) {
	streamSnapshots(c, h.Logger, "restaurants", h.Catalog.SubscribeToRestaurants)
}

// OrdersFeed streams the caller's orders, or with ?scope=owner the orders of
// the caller's restaurants
func (h *Handler) OrdersFeed(c *gin.Context) {
	userID := middleware.GetUserID(c)
	subscribe := func(ctx context.Context, fn func([]models.Order)) (func(), error) {
		return h.Orders.SubscribeToOrders(ctx, userID, fn)
	}
	if c.Query("scope") == "owner" {
		subscribe = func(ctx context.Context, fn func([]models.Order)) (func(), error) {
			return h.Orders.SubscribeToRestaurantOrders(ctx, userID, fn)
		}
	}
	streamSnapshots(c, h.Logger, "orders", subscribe)
}

// streamSnapshots upgrades the request and writes every snapshot delivered by
// subscribe until the client goes away. Slow clients only see the latest one.
func streamSnapshots[T any](
	c *gin.Context,
	logger *zap.SugaredLogger,
	kind string,
	subscribe func(context.Context, func(T)) (func(), error),
) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	updates := make(chan T, 1)
	var mu sync.Mutex
	push := func(v T) {
		mu.Lock()
		defer mu.Unlock()
		select {
		case <-updates:
		default:
		}
		updates <- v
	}

	unsubscribe, err := subscribe(ctx, push)
	if err != nil {
		logger.Warnw("feed subscription failed", "feed", kind, "error", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscription failed"),
			time.Now().Add(wsWriteWait))
		return
	}
	defer unsubscribe()

	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case v := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(feedMessage[T]{Type: kind, Data: v}); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
