// Package gateway implements the session ingress: the per-client
// websocket loop that performs the token handshake, delivers the INIT
// snapshot, routes inbound place_bid frames into the Auction, and
// observes disconnects.
package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/draftops/auctioneer/internal/auction"
	"github.com/draftops/auctioneer/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	closeInvalidToken    = 4001
	closeAuctionNotFound = 4004

	writeWait = 5 * time.Second

	// bidRateLimit and bidBurst throttle inbound place_bid frames per
	// connection; a leader mashing the bid button faster than this gets
	// its excess frames rejected with an error reply, not a dropped
	// connection.
	bidRateLimit = rate.Limit(4)
	bidBurst     = 8
)

func deadlineNow() time.Time { return time.Now().Add(writeWait) }

// Handler upgrades incoming HTTP requests on the session-ingress route
// to websockets and drives each connection's lifecycle.
type Handler struct {
	manager  *auction.Manager
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewHandler returns a Handler backed by the given Manager.
func NewHandler(manager *auction.Manager, logger *slog.Logger) *Handler {
	return &Handler{
		manager: manager,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type placeBidData struct {
	Amount int `json:"amount"`
}

type errorFrame struct {
	Type string      `json:"type"`
	Data errorDetail `json:"data"`
}

type errorDetail struct {
	Error string `json:"error"`
}

// ServeHTTP implements the connection handshake. The websocket upgrade
// itself always succeeds first — a close code is an in-protocol frame,
// so 4001/4004 can only be delivered after the 101 response completes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	tok := chi.URLParam(r, "token")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("gateway_upgrade_failed", slog.String("error", err.Error()))
		return
	}

	a, _, ok := h.manager.GetAuctionByToken(tok)
	if !ok {
		metrics.GatewayHandshakesTotal.WithLabelValues("auction_not_found").Inc()
		sink := newConnSink(tok, conn)
		sink.closeWithCode(closeAuctionNotFound, "auction not found")
		return
	}

	sink := newConnSink(tok, conn)

	payload, err := a.Connect(tok)
	if err != nil {
		metrics.GatewayHandshakesTotal.WithLabelValues("invalid_token").Inc()
		sink.closeWithCode(closeInvalidToken, err.Error())
		return
	}
	a.Hub().Add(sink)
	metrics.GatewayHandshakesTotal.WithLabelValues("ok").Inc()
	metrics.GatewayConnectionsActive.Inc()

	if frame, marshalErr := json.Marshal(struct {
		Type string             `json:"type"`
		Data auction.InitPayload `json:"data"`
	}{Type: "init", Data: payload}); marshalErr == nil {
		_ = sink.Send(frame)
	}

	h.readLoop(conn, a, tok)

	a.Hub().Remove(sink)
	a.Disconnect(tok)
	metrics.GatewayConnectionsActive.Dec()
}

func (h *Handler) readLoop(conn *websocket.Conn, a *auction.Auction, tok string) {
	limiter := rate.NewLimiter(bidRateLimit, bidBurst)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var frame inboundFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.sendError(conn, "malformed message")
			continue
		}

		if frame.Type != "place_bid" {
			continue // all other inbound types are ignored
		}

		if !limiter.Allow() {
			metrics.GatewayRateLimitedTotal.Inc()
			h.sendError(conn, "too many bids, slow down")
			continue
		}

		var bid placeBidData
		if err := json.Unmarshal(frame.Data, &bid); err != nil {
			h.sendError(conn, "malformed bid: amount required")
			continue
		}

		if err := a.PlaceBid(tok, bid.Amount); err != nil {
			h.sendError(conn, err.Error())
		}
	}
}

func (h *Handler) sendError(conn *websocket.Conn, reason string) {
	frame, err := json.Marshal(errorFrame{Type: "error", Data: errorDetail{Error: reason}})
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(deadlineNow())
	_ = conn.WriteMessage(websocket.TextMessage, frame)
}
