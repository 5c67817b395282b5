package server

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/nowplaying/internal/shared"
	"golang.org/x/net/websocket"
)

const defaultWriteTimeout = 10 * time.Second

// StreamHandler upgrades root requests to websocket subscriptions on a [Hub].
// Implements the [Handler] interface for registration with a [Router].
type StreamHandler struct {
	hub          *Hub
	origins      []string
	writeTimeout time.Duration
	logger       *log.Logger
	ws           websocket.Server
}

// NewStreamHandler creates a [StreamHandler]. An empty origins list accepts any origin.
func NewStreamHandler(hub *Hub, origins []string, logger *log.Logger) *StreamHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	h := &StreamHandler{
		hub:          hub,
		origins:      origins,
		writeTimeout: defaultWriteTimeout,
		logger:       shared.WithLogger(logger, "component", "stream"),
	}
	h.ws = websocket.Server{Handshake: h.handshake, Handler: h.serve}
	return h
}

// Routes returns the HTTP routes this handler serves.
func (h *StreamHandler) Routes() []string {
	return []string{"/{$}"}
}

// ServeHTTP answers plain requests with 426 and hands upgrade requests to the websocket server.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !isUpgrade(r) {
		w.Header().Set("Upgrade", "websocket")
		w.Header().Set("Connection", "Upgrade")
		http.Error(w, "Upgrade Required", http.StatusUpgradeRequired)
		return
	}
	h.ws.ServeHTTP(w, r)
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}

// handshake rejects origins outside the allow-list; the websocket server answers 403.
func (h *StreamHandler) handshake(config *websocket.Config, r *http.Request) error {
	origin, err := websocket.Origin(config, r)
	if err != nil {
		return fmt.Errorf("%w: bad origin: %v", shared.ErrTransport, err)
	}
	config.Origin = origin

	if len(h.origins) == 0 {
		return nil
	}
	if origin == nil || !slices.Contains(h.origins, origin.String()) {
		h.logger.Warn("origin not allowed, rejecting connection", "origin", r.Header.Get("Origin"))
		return fmt.Errorf("%w: origin not allowed", shared.ErrTransport)
	}
	return nil
}

// serve pumps hub events to the connection until either side goes away.
func (h *StreamHandler) serve(conn *websocket.Conn) {
	defer conn.Close()

	logger := shared.WithLogger(h.logger, "remote", conn.Request().RemoteAddr)

	sub, err := h.hub.Subscribe()
	if err != nil {
		logger.Warn("subscription refused", "error", err)
		return
	}
	defer h.hub.Unsubscribe(sub)

	gone := make(chan struct{})
	go h.read(conn, gone, logger)

	for {
		select {
		case <-gone:
			return
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			if err := h.write(conn, event); err != nil {
				logger.Warn("send failed, dropping subscriber", "subscriber", sub.ID, "error", err)
				return
			}
		}
	}
}

func (h *StreamHandler) write(conn *websocket.Conn, event Event) error {
	if err := conn.SetWriteDeadline(time.Now().Add(h.writeTimeout)); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTransport, err)
	}
	if err := websocket.JSON.Send(conn, event); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrTransport, err)
	}
	return nil
}

// read discards inbound frames and closes gone once the peer disconnects.
func (h *StreamHandler) read(conn *websocket.Conn, gone chan<- struct{}, logger *log.Logger) {
	defer close(gone)

	var msg string
	for {
		if err := websocket.Message.Receive(conn, &msg); err != nil {
			logger.Debug("connection closed", "error", err)
			return
		}
	}
}

// HealthHandler reports liveness for container health checks.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
